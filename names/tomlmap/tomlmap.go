// Package tomlmap loads a class-name remapper from a TOML mapping file.
//
//	[classes]
//	"a.b" = "net.example.Widget"
//
//	[packages]
//	"x" = "net.example.internal"
//
// Class entries win over package entries. Package entries rename a package
// prefix and apply to every class below it. Keys and values may use either
// dotted or slashed spelling.
package tomlmap

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/classmeta/errors"
	"github.com/wippyai/classmeta/names"
)

// Mapping is the file layout.
type Mapping struct {
	Classes  map[string]string `toml:"classes"`
	Packages map[string]string `toml:"packages"`
}

// Remapper implements names.Remapper from a Mapping.
type Remapper struct {
	classes  *names.Table
	packages *names.Table
	// prefixes sorted longest first so nested packages win.
	forward []string
	reverse []string
}

var _ names.Remapper = (*Remapper)(nil)

// Load reads and parses a mapping file.
func Load(path string) (*Remapper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load(fmt.Sprintf("cannot read %s", path), err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a mapping document.
func Parse(data []byte) (*Remapper, error) {
	var m Mapping
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "invalid mapping document")
	}
	return New(m)
}

// New builds a remapper from an in-memory mapping. Two entries with the same
// target make the mapping non-invertible and are rejected.
func New(m Mapping) (*Remapper, error) {
	classes, dup, ok := names.NewTable(m.Classes)
	if !ok {
		return nil, duplicate("class", dup)
	}
	packages, dup, ok := names.NewTable(m.Packages)
	if !ok {
		return nil, duplicate("package", dup)
	}
	r := &Remapper{classes: classes, packages: packages}
	for from, to := range m.Packages {
		r.forward = append(r.forward, names.ToDotted(from))
		r.reverse = append(r.reverse, names.ToDotted(to))
	}
	sortLongestFirst(r.forward)
	sortLongestFirst(r.reverse)
	return r, nil
}

func duplicate(what, target string) error {
	return errors.New(errors.PhaseName, errors.KindInvalidArgument).
		Value(target).
		Detail("several %s entries map to %s", what, target).
		Build()
}

// Map translates an external dotted name to its runtime name.
func (r *Remapper) Map(dotted string) string {
	if v := r.classes.Map(dotted); v != dotted {
		return v
	}
	return rewritePackage(dotted, r.forward, r.packages.Map)
}

// Unmap translates a runtime dotted name back to its external name.
func (r *Remapper) Unmap(dotted string) string {
	if v := r.classes.Unmap(dotted); v != dotted {
		return v
	}
	return rewritePackage(dotted, r.reverse, r.packages.Unmap)
}

// Len returns the number of class and package entries.
func (r *Remapper) Len() int { return r.classes.Len() + r.packages.Len() }

func rewritePackage(dotted string, prefixes []string, lookup func(string) string) string {
	for _, p := range prefixes {
		if strings.HasPrefix(dotted, p+".") {
			return lookup(p) + dotted[len(p):]
		}
	}
	return dotted
}

func sortLongestFirst(s []string) {
	slices.SortFunc(s, func(a, b string) int {
		if n := cmp.Compare(len(b), len(a)); n != 0 {
			return n
		}
		return strings.Compare(a, b)
	})
}
