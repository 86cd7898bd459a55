// Package names converts between the dotted and slashed spellings of class
// names and applies an optional class-name remapper.
//
// Internal names use '/' as the package separator (java/lang/String); binary
// names use '.' (java.lang.String). Remappers always operate on binary names;
// Registry.Remap accepts either spelling and returns internal names.
package names

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ToDotted converts an internal name to a binary name.
func ToDotted(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}

// ToSlashed converts a binary name to an internal name.
func ToSlashed(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

// Remapper translates between an external naming scheme and runtime names.
// Both methods take and return dotted names and return the input unchanged
// when no mapping applies.
type Remapper interface {
	Map(dotted string) string
	Unmap(dotted string) string
}

// Direction selects Remapper.Map or Remapper.Unmap.
type Direction int

const (
	Apply Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "apply"
}

// Registry holds the remapper discovered for one resolution context.
// Discovery runs at most once; a nil result means no remapping.
type Registry struct {
	discover func() Remapper
	remapper Remapper
	once     sync.Once
}

// NewRegistry creates a registry that calls discover on first use.
// A nil discover function disables remapping.
func NewRegistry(discover func() Remapper) *Registry {
	return &Registry{discover: discover}
}

// Static creates a registry with a fixed remapper, which may be nil.
func Static(r Remapper) *Registry {
	return NewRegistry(func() Remapper { return r })
}

// Remapper returns the discovered remapper, or nil.
func (r *Registry) Remapper() Remapper {
	if r == nil {
		return nil
	}
	r.once.Do(func() {
		if r.discover != nil {
			r.remapper = r.discover()
		}
		Logger().Debug("remapper discovered", zap.Bool("present", r.remapper != nil))
	})
	return r.remapper
}

// Remap translates name in the given direction and returns an internal name.
func (r *Registry) Remap(name string, dir Direction) string {
	rm := r.Remapper()
	if rm == nil {
		return ToSlashed(name)
	}
	dotted := ToDotted(name)
	var out string
	if dir == Reverse {
		out = rm.Unmap(dotted)
	} else {
		out = rm.Map(dotted)
	}
	return ToSlashed(out)
}

// Chain applies remappers in order for Map and in reverse order for Unmap.
type Chain []Remapper

func (c Chain) Map(dotted string) string {
	for _, r := range c {
		dotted = r.Map(dotted)
	}
	return dotted
}

func (c Chain) Unmap(dotted string) string {
	for i := len(c) - 1; i >= 0; i-- {
		dotted = c[i].Unmap(dotted)
	}
	return dotted
}

// Table is an in-memory bijective remapper keyed by dotted names.
type Table struct {
	forward map[string]string
	reverse map[string]string
}

// NewTable builds a table from external to runtime names. Either spelling is
// accepted. ok is false when two entries map to the same runtime name.
func NewTable(pairs map[string]string) (t *Table, dup string, ok bool) {
	t = &Table{forward: make(map[string]string, len(pairs)), reverse: make(map[string]string, len(pairs))}
	for from, to := range pairs {
		from, to = ToDotted(from), ToDotted(to)
		if prev, exists := t.reverse[to]; exists && prev != from {
			return nil, to, false
		}
		t.forward[from] = to
		t.reverse[to] = from
	}
	return t, "", true
}

func (t *Table) Map(dotted string) string {
	if v, ok := t.forward[dotted]; ok {
		return v
	}
	return dotted
}

func (t *Table) Unmap(dotted string) string {
	if v, ok := t.reverse[dotted]; ok {
		return v
	}
	return dotted
}

// Len returns the number of mappings.
func (t *Table) Len() int { return len(t.forward) }
