package classinfo

import (
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/wippyai/classmeta"
	"github.com/wippyai/classmeta/classfile"
	"github.com/wippyai/classmeta/errors"
	"github.com/wippyai/classmeta/names"
	"github.com/wippyai/classmeta/typedesc"
)

// Variant tells which backend a ClassInfo reads from.
type Variant uint8

const (
	// Loaded wraps a RuntimeClass held by the host.
	Loaded Variant = iota
	// Parsed wraps a record decoded from class bytes.
	Parsed
	// Primitive is one of the fixed primitive and void singletons.
	Primitive
)

func (v Variant) String() string {
	switch v {
	case Loaded:
		return "loaded"
	case Parsed:
		return "parsed"
	case Primitive:
		return "primitive"
	default:
		return "invalid"
	}
}

// ClassInfo is resolved metadata for one class name. Values are immutable
// apart from memoized superclass, constructor and record cells.
type ClassInfo struct {
	reg        *Registry
	rt         classmeta.RuntimeClass
	rec        *classfile.Class
	prim       typedesc.Type
	superName  string
	name       string
	interfaces []string

	superclass cell[*ClassInfo]
	ctors      cell[[][]typedesc.Type]
	record     cell[*classfile.Class]

	modifiers uint16
	variant   Variant
}

// cell holds a value computed at most once. Failed computations are not
// stored, so a later call retries.
type cell[T any] struct {
	v    T
	mu   sync.Mutex
	done bool
}

func (c *cell[T]) get(fn func() (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return c.v, nil
	}
	v, err := fn()
	if err != nil {
		return v, err
	}
	c.v, c.done = v, true
	return v, nil
}

var primitives = func() map[string]*ClassInfo {
	m := make(map[string]*ClassInfo)
	for _, t := range []typedesc.Type{
		typedesc.VoidType, typedesc.BooleanType, typedesc.CharType, typedesc.ByteType,
		typedesc.ShortType, typedesc.IntType, typedesc.FloatType, typedesc.LongType, typedesc.DoubleType,
	} {
		m[t.ClassName()] = &ClassInfo{
			name:      t.ClassName(),
			prim:      t,
			modifiers: classfile.AccPublic | classfile.AccFinal | classfile.AccAbstract,
			variant:   Primitive,
		}
	}
	return m
}()

// PrimitiveInfo returns the singleton for a primitive keyword such as "int".
func PrimitiveInfo(keyword string) (*ClassInfo, bool) {
	ci, ok := primitives[keyword]
	return ci, ok
}

func newLoaded(reg *Registry, rt classmeta.RuntimeClass) *ClassInfo {
	ci := &ClassInfo{reg: reg, rt: rt, name: names.ToSlashed(rt.Name()), modifiers: rt.Modifiers(), variant: Loaded}
	if s, ok := rt.Super(); ok {
		ci.superName = names.ToSlashed(s.Name())
	}
	for _, i := range rt.Interfaces() {
		ci.interfaces = append(ci.interfaces, names.ToSlashed(i.Name()))
	}
	return ci
}

// newParsed wraps a stored record under its runtime name. Super and
// interface names are remapped the same way so every name a ClassInfo
// exposes is a runtime name.
func newParsed(reg *Registry, rec *classfile.Class) *ClassInfo {
	ci := &ClassInfo{
		reg:       reg,
		rec:       rec,
		name:      reg.runtimeName(rec.Name),
		modifiers: rec.Access,
		variant:   Parsed,
	}
	for _, iname := range rec.Interfaces {
		ci.interfaces = append(ci.interfaces, reg.runtimeName(iname))
	}
	// the class file of an interface names Object as its super
	if !rec.IsInterface() && rec.SuperName != "" {
		ci.superName = reg.runtimeName(rec.SuperName)
	}
	return ci
}

// InternalName returns the canonical slashed name, the descriptor for
// arrays, or the keyword for primitives.
func (c *ClassInfo) InternalName() string { return c.name }

// Variant returns the backend tag.
func (c *ClassInfo) Variant() Variant { return c.variant }

// Runtime returns the host handle of a Loaded class.
func (c *ClassInfo) Runtime() (classmeta.RuntimeClass, bool) { return c.rt, c.rt != nil }

// SuperName returns the superclass name. ok is false for the root class,
// interfaces and primitives.
func (c *ClassInfo) SuperName() (name string, ok bool) { return c.superName, c.superName != "" }

// Interfaces returns the direct interfaces in declaration order.
func (c *ClassInfo) Interfaces() []string { return slices.Clone(c.interfaces) }

// Modifiers returns the access flags.
func (c *ClassInfo) Modifiers() uint16 { return c.modifiers }

// HasModifier reports whether every bit of mask is set.
func (c *ClassInfo) HasModifier(mask uint16) bool { return c.modifiers&mask == mask }

func (c *ClassInfo) IsInterface() bool { return c.HasModifier(classfile.AccInterface) }
func (c *ClassInfo) IsAbstract() bool  { return c.HasModifier(classfile.AccAbstract) }
func (c *ClassInfo) IsPrimitive() bool { return c.variant == Primitive }

// IsEnum reports an enum class: ACC_ENUM set and a direct java/lang/Enum super.
func (c *ClassInfo) IsEnum() bool {
	return c.HasModifier(classfile.AccEnum) && c.superName == classfile.EnumName
}

// IsRoot reports whether c is java/lang/Object.
func (c *ClassInfo) IsRoot() bool { return c.name == classfile.ObjectName }

// IsArray reports whether c is an array class.
func (c *ClassInfo) IsArray() bool { return strings.HasPrefix(c.name, "[") }

// Dimensions returns the array depth, 0 for non-arrays.
func (c *ClassInfo) Dimensions() int {
	n := 0
	for n < len(c.name) && c.name[n] == '[' {
		n++
	}
	return n
}

// Type returns the descriptor type of c.
func (c *ClassInfo) Type() typedesc.Type {
	if c.variant == Primitive {
		return c.prim
	}
	return typedesc.ObjectType(c.name)
}

// ComponentType returns the array type with one dimension removed.
func (c *ClassInfo) ComponentType() (typedesc.Type, error) {
	if !c.IsArray() {
		return typedesc.Type{}, errors.New(errors.PhaseResolve, errors.KindIllegalState).
			Class(c.name).
			Detail("component type of a non-array class").
			Build()
	}
	return c.Type().ComponentType()
}

// ElementType returns the innermost component type of an array.
func (c *ClassInfo) ElementType() (typedesc.Type, error) {
	if !c.IsArray() {
		return typedesc.Type{}, errors.New(errors.PhaseResolve, errors.KindIllegalState).
			Class(c.name).
			Detail("element type of a non-array class").
			Build()
	}
	return c.Type().ElementType(), nil
}

// Superclass resolves the superclass once. It returns nil without error when
// there is none.
func (c *ClassInfo) Superclass() (*ClassInfo, error) {
	if c.superName == "" {
		return nil, nil
	}
	return c.superclass.get(func() (*ClassInfo, error) {
		if c.rt != nil {
			if s, ok := c.rt.Super(); ok {
				return c.reg.OfClass(s), nil
			}
		}
		return c.reg.Of(c.superName)
	})
}

// Supers returns the transitive supertype set. The set is shared through
// the registry and must not be modified.
func (c *ClassInfo) Supers() (Set, error) {
	if c.variant == Primitive {
		return Set{}, nil
	}
	return c.reg.supersOf(c, nil)
}

// ConstructorTypes returns the parameter types of each constructor.
// The result is a fresh copy.
func (c *ClassInfo) ConstructorTypes() ([][]typedesc.Type, error) {
	ctors, err := c.ctors.get(func() ([][]typedesc.Type, error) {
		switch c.variant {
		case Loaded:
			return c.rt.Constructors(), nil
		case Parsed:
			var out [][]typedesc.Type
			for _, m := range c.rec.Constructors() {
				t, err := typedesc.Parse(m.Desc)
				if err != nil {
					return nil, errors.New(errors.PhaseResolve, errors.KindMalformedInput).
						Class(c.name).
						Member(m.Name).
						Cause(err).
						Build()
				}
				out = append(out, t.ArgumentTypes())
			}
			return out, nil
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	out := make([][]typedesc.Type, len(ctors))
	for i, p := range ctors {
		out[i] = slices.Clone(p)
	}
	return out, nil
}

// HasConstructor reports whether a constructor with exactly these
// parameter types exists.
func (c *ClassInfo) HasConstructor(params ...typedesc.Type) (bool, error) {
	ctors, err := c.ConstructorTypes()
	if err != nil {
		return false, err
	}
	for _, p := range ctors {
		if slices.Equal(p, params) {
			return true, nil
		}
	}
	return false, nil
}

// Record returns the class file record. Parsed classes return the record
// they were built from; Loaded classes fetch and parse their stored bytes
// once. Arrays and primitives have no record.
func (c *ClassInfo) Record() (*classfile.Class, error) {
	if c.rec != nil {
		return c.rec, nil
	}
	if c.variant != Loaded || c.IsArray() {
		return nil, errors.New(errors.PhaseResolve, errors.KindIllegalState).
			Class(c.name).
			Detail("%s class has no class file", c.variant).
			Build()
	}
	return c.record.get(func() (*classfile.Class, error) {
		return c.reg.parse(c.name)
	})
}

// IsAssignableFrom reports whether a value of other can be used where c is
// expected.
func (c *ClassInfo) IsAssignableFrom(other *ClassInfo) (bool, error) {
	if c.variant == Loaded && other.variant == Loaded {
		return c.rt.IsAssignableFrom(other.rt), nil
	}
	if c.variant == Primitive || other.variant == Primitive {
		return c.name == other.name, nil
	}
	if other.IsRoot() {
		return c.IsRoot(), nil
	}
	if c.IsRoot() || c.name == other.name || c.name == other.superName || slices.Contains(other.interfaces, c.name) {
		return true, nil
	}
	if !c.IsInterface() && other.IsInterface() {
		return false, nil
	}
	supers, err := other.Supers()
	if err != nil {
		return false, err
	}
	return supers.Has(c.name), nil
}

// Equal reports whether both values denote the same class.
func (c *ClassInfo) Equal(other *ClassInfo) bool {
	return other != nil && c.name == other.name
}

func (c *ClassInfo) String() string { return names.ToDotted(c.name) }

// Set is a set of internal names.
type Set map[string]struct{}

// Has reports membership.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
