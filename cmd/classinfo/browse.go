package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wippyai/classmeta/names"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const pageSize = 15

type browseState int

const (
	stateList browseState = iota
	stateDetail
)

type browseModel struct {
	err      error
	s        *session
	report   *ClassReport
	classes  []string
	visible  []string
	filter   textinput.Model
	selected int
	state    browseState
}

type classesMsg struct {
	err     error
	classes []string
}

type reportMsg struct {
	err    error
	report *ClassReport
}

func newBrowseModel(s *session) *browseModel {
	ti := textinput.New()
	ti.Placeholder = "filter"
	ti.Prompt = "/ "
	ti.Width = 40
	ti.Focus()
	return &browseModel{s: s, filter: ti, state: stateList}
}

func (m *browseModel) Init() tea.Cmd {
	return m.loadClasses
}

func (m *browseModel) loadClasses() tea.Msg {
	classes, err := m.s.path.Classes()
	if err != nil {
		return classesMsg{err: err}
	}
	return classesMsg{classes: classes}
}

func (m *browseModel) inspect(name string) tea.Cmd {
	return func() tea.Msg {
		ci, err := m.s.resolve(name)
		if err != nil {
			return reportMsg{err: err}
		}
		r, err := buildReport(ci, true)
		return reportMsg{report: r, err: err}
	}
}

func (m *browseModel) applyFilter() {
	q := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for _, c := range m.classes {
		if q == "" || strings.Contains(strings.ToLower(names.ToDotted(c)), q) {
			m.visible = append(m.visible, c)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "up":
			if m.state == stateList && m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down":
			if m.state == stateList && m.selected < len(m.visible)-1 {
				m.selected++
			}
			return m, nil

		case "enter":
			if m.state == stateList && len(m.visible) > 0 {
				return m, m.inspect(m.visible[m.selected])
			}
			if m.state == stateDetail {
				m.state = stateList
				m.report, m.err = nil, nil
			}
			return m, nil

		case "esc":
			if m.state == stateDetail {
				m.state = stateList
				m.report, m.err = nil, nil
				return m, nil
			}
			return m, tea.Quit
		}

	case classesMsg:
		m.err = msg.err
		m.classes = msg.classes
		m.applyFilter()
		return m, nil

	case reportMsg:
		m.report, m.err = msg.report, msg.err
		m.state = stateDetail
		return m, nil
	}

	if m.state == stateList {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd
	}
	return m, nil
}

func (m *browseModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Class Browser"))
	b.WriteString(fmt.Sprintf(" %d classes\n\n", len(m.classes)))

	switch m.state {
	case stateList:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n\n")
		}
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		start := 0
		if m.selected >= pageSize {
			start = m.selected - pageSize + 1
		}
		for i := start; i < len(m.visible) && i < start+pageSize; i++ {
			name := names.ToDotted(m.visible[i])
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + name))
			} else {
				b.WriteString("  " + name)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("type to filter • ↑/↓ select • enter inspect • esc quit"))

	case stateDetail:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else if m.report != nil {
			var out strings.Builder
			o := &output{w: &out, format: "text", styled: true}
			_ = o.class(m.report)
			b.WriteString(out.String())
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter/esc back • ctrl+c quit"))
	}
	return b.String()
}

func newBrowseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse the class path interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session, _ *output) error {
				p := tea.NewProgram(newBrowseModel(s), tea.WithAltScreen())
				_, err := p.Run()
				return err
			})
		},
	}
}
