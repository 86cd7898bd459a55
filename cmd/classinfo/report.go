package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/term"

	"github.com/wippyai/classmeta/classfile"
	"github.com/wippyai/classmeta/classinfo"
	"github.com/wippyai/classmeta/names"
	"github.com/wippyai/classmeta/typedesc"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98"))
	typeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
)

var cborMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// ClassReport is the serialized form of a resolved class.
type ClassReport struct {
	Name         string             `json:"name" cbor:"name"`
	Variant      string             `json:"variant" cbor:"variant"`
	Super        string             `json:"super,omitempty" cbor:"super,omitempty"`
	Component    string             `json:"component,omitempty" cbor:"component,omitempty"`
	Interfaces   []string           `json:"interfaces,omitempty" cbor:"interfaces,omitempty"`
	Modifiers    []string           `json:"modifiers,omitempty" cbor:"modifiers,omitempty"`
	Constructors []string           `json:"constructors,omitempty" cbor:"constructors,omitempty"`
	Supers       []string           `json:"supers,omitempty" cbor:"supers,omitempty"`
	Annotations  []AnnotationReport `json:"annotations,omitempty" cbor:"annotations,omitempty"`
	Dimensions   int                `json:"dimensions,omitempty" cbor:"dimensions,omitempty"`
	Access       uint16             `json:"access" cbor:"access"`
}

// AnnotationReport describes one annotation occurrence.
type AnnotationReport struct {
	Values    map[string]string `json:"values,omitempty" cbor:"values,omitempty"`
	Desc      string            `json:"desc" cbor:"desc"`
	Target    string            `json:"target" cbor:"target"`
	Retention string            `json:"retention" cbor:"retention"`
	Inherited bool              `json:"inherited,omitempty" cbor:"inherited,omitempty"`
}

// AssignableReport is the result of an assignability query.
type AssignableReport struct {
	Target     string `json:"target" cbor:"target"`
	Source     string `json:"source" cbor:"source"`
	Assignable bool   `json:"assignable" cbor:"assignable"`
}

var modifierNames = []struct {
	name string
	flag uint16
}{
	{"public", classfile.AccPublic},
	{"private", classfile.AccPrivate},
	{"protected", classfile.AccProtected},
	{"static", classfile.AccStatic},
	{"final", classfile.AccFinal},
	{"interface", classfile.AccInterface},
	{"abstract", classfile.AccAbstract},
	{"synthetic", classfile.AccSynthetic},
	{"annotation", classfile.AccAnnotation},
	{"enum", classfile.AccEnum},
}

func modifiers(flags uint16) []string {
	var out []string
	for _, m := range modifierNames {
		if flags&m.flag != 0 {
			out = append(out, m.name)
		}
	}
	return out
}

func buildReport(ci *classinfo.ClassInfo, withSupers bool) (*ClassReport, error) {
	r := &ClassReport{
		Name:       names.ToDotted(ci.InternalName()),
		Variant:    ci.Variant().String(),
		Interfaces: dottedAll(ci.Interfaces()),
		Modifiers:  modifiers(ci.Modifiers()),
		Dimensions: ci.Dimensions(),
		Access:     ci.Modifiers(),
	}
	if s, ok := ci.SuperName(); ok {
		r.Super = names.ToDotted(s)
	}
	if ci.IsArray() {
		ct, err := ci.ComponentType()
		if err != nil {
			return nil, err
		}
		r.Component = ct.ClassName()
	}
	ctors, err := ci.ConstructorTypes()
	if err != nil {
		return nil, err
	}
	for _, params := range ctors {
		r.Constructors = append(r.Constructors, paramList(params))
	}
	if withSupers {
		supers, err := ci.Supers()
		if err != nil {
			return nil, err
		}
		r.Supers = dottedAll(supers.Sorted())
	}
	return r, nil
}

func paramList(params []typedesc.Type) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.ClassName()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func dottedAll(in []string) []string {
	out := make([]string, len(in))
	for i, n := range in {
		out[i] = names.ToDotted(n)
	}
	return out
}

// formatValue renders an element value the way source code spells it.
func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case classfile.EnumValue:
		return typedesc.MustParse(x.Desc).ClassName() + "." + x.Name
	case typedesc.Type:
		return x.ClassName() + ".class"
	case *classfile.Annotation:
		return "@" + typedesc.MustParse(x.Desc).ClassName()
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(x)
	}
}

func annotationValues(a *classfile.Annotation) map[string]string {
	if len(a.Values) == 0 {
		return nil
	}
	out := make(map[string]string, len(a.Values))
	for _, p := range a.Values {
		out[p.Name] = formatValue(p.Value)
	}
	return out
}

// output writes reports in the configured format.
type output struct {
	w      io.Writer
	format string
	styled bool
}

func newOutput(w io.Writer, format string) *output {
	o := &output{w: w, format: format}
	if f, ok := w.(*os.File); ok {
		o.styled = term.IsTerminal(int(f.Fd()))
	}
	return o
}

func (o *output) style(s lipgloss.Style, text string) string {
	if !o.styled {
		return text
	}
	return s.Render(text)
}

// emit writes v as JSON or CBOR, or calls text for the text format.
func (o *output) emit(v any, text func()) error {
	switch o.format {
	case "json":
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "cbor":
		data, err := cborMode.Marshal(v)
		if err != nil {
			return err
		}
		_, err = o.w.Write(data)
		return err
	default:
		text()
		return nil
	}
}

func (o *output) field(label string, value string) {
	fmt.Fprintf(o.w, "%s %s\n", o.style(labelStyle, fmt.Sprintf("%-13s", label+":")), value)
}

func (o *output) class(r *ClassReport) error {
	return o.emit(r, func() {
		o.field("class", o.style(nameStyle, r.Name))
		o.field("backend", r.Variant)
		if len(r.Modifiers) > 0 {
			o.field("modifiers", strings.Join(r.Modifiers, " "))
		}
		if r.Super != "" {
			o.field("super", r.Super)
		}
		if len(r.Interfaces) > 0 {
			o.field("interfaces", strings.Join(r.Interfaces, ", "))
		}
		if r.Dimensions > 0 {
			o.field("dimensions", fmt.Sprint(r.Dimensions))
			o.field("component", o.style(typeStyle, r.Component))
		}
		for _, c := range r.Constructors {
			o.field("constructor", o.style(typeStyle, c))
		}
		for _, s := range r.Supers {
			o.field("supertype", s)
		}
	})
}

func (o *output) supers(name string, supers []string) error {
	return o.emit(supers, func() {
		fmt.Fprintln(o.w, o.style(nameStyle, name))
		for _, s := range supers {
			fmt.Fprintf(o.w, "  %s\n", s)
		}
	})
}

func (o *output) assignable(r AssignableReport) error {
	return o.emit(r, func() {
		verb := "is not"
		if r.Assignable {
			verb = "is"
		}
		fmt.Fprintf(o.w, "%s %s assignable from %s\n", o.style(nameStyle, r.Target), verb, o.style(nameStyle, r.Source))
	})
}

func (o *output) annotations(list []AnnotationReport) error {
	return o.emit(list, func() {
		for _, a := range list {
			line := fmt.Sprintf("%s @%s [%s]", a.Target, typedesc.MustParse(a.Desc).ClassName(), strings.ToLower(a.Retention))
			if a.Inherited {
				line += " inherited"
			}
			fmt.Fprintln(o.w, line)
			keys := make([]string, 0, len(a.Values))
			for k := range a.Values {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(o.w, "    %s = %s\n", k, o.style(typeStyle, a.Values[k]))
			}
		}
	})
}
