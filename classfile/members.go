package classfile

import (
	"strings"

	"github.com/wippyai/classmeta/errors"
	"github.com/wippyai/classmeta/insn"
	"github.com/wippyai/classmeta/typedesc"
)

// FindMethod returns the first method named name, or nil.
func (c *Class) FindMethod(name string) *Method {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// FindMethodDesc returns the method with the given name and descriptor, or nil.
func (c *Class) FindMethodDesc(name, desc string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc == desc {
			return m
		}
	}
	return nil
}

// RequireMethod is FindMethodDesc that fails when the method is missing.
// An empty desc matches any descriptor.
func (c *Class) RequireMethod(name, desc string) (*Method, error) {
	var m *Method
	if desc == "" {
		m = c.FindMethod(name)
	} else {
		m = c.FindMethodDesc(name, desc)
	}
	if m == nil {
		return nil, errors.New(errors.PhaseResolve, errors.KindNotFound).
			Class(c.Name).
			Member(name + desc).
			Detail("no such method").
			Build()
	}
	return m, nil
}

// FindMethodAny tries each candidate name in order, typically a method's
// readable name followed by the name it has after remapping, and returns
// the first match. An empty desc matches any descriptor.
func (c *Class) FindMethodAny(names []string, desc string) *Method {
	for _, name := range names {
		var m *Method
		if desc == "" {
			m = c.FindMethod(name)
		} else {
			m = c.FindMethodDesc(name, desc)
		}
		if m != nil {
			return m
		}
	}
	return nil
}

// RequireMethodAny is FindMethodAny that fails when no candidate matches.
func (c *Class) RequireMethodAny(names []string, desc string) (*Method, error) {
	if m := c.FindMethodAny(names, desc); m != nil {
		return m, nil
	}
	return nil, errors.New(errors.PhaseResolve, errors.KindNotFound).
		Class(c.Name).
		Member(strings.Join(names, "|") + desc).
		Detail("no method under any of %d names", len(names)).
		Build()
}

// FindField returns the field named name, or nil.
func (c *Class) FindField(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Constructors returns the instance initializers in declaration order.
func (c *Class) Constructors() []*Method {
	var out []*Method
	for _, m := range c.Methods {
		if m.IsConstructor() {
			out = append(out, m)
		}
	}
	return out
}

// RootConstructors returns the constructors that do not delegate to another
// constructor of the same class. Every instance creation runs exactly one of them.
// Constructors without decoded code are treated as roots.
func (c *Class) RootConstructors() []*Method {
	var out []*Method
	for _, m := range c.Constructors() {
		if !c.delegates(m) {
			out = append(out, m)
		}
	}
	return out
}

func (c *Class) delegates(m *Method) bool {
	if m.Instructions == nil {
		return false
	}
	for n := m.Instructions.First(); n != nil; n = n.Next() {
		if n.Opcode != insn.INVOKESPECIAL {
			continue
		}
		if mi, ok := n.Imm.(insn.MethodImm); ok && mi.Owner == c.Name && mi.Name == ConstructorName {
			return true
		}
	}
	return false
}

// MethodsWith returns the methods carrying an annotation of type desc, visible or not.
func (c *Class) MethodsWith(desc string) []*Method {
	var out []*Method
	for _, m := range c.Methods {
		if HasAnnotation(m.Annotations(), desc) {
			out = append(out, m)
		}
	}
	return out
}

// FieldsWith returns the fields carrying an annotation of type desc, visible or not.
func (c *Class) FieldsWith(desc string) []*Field {
	var out []*Field
	for _, f := range c.Fields {
		if HasAnnotation(f.Annotations(), desc) {
			out = append(out, f)
		}
	}
	return out
}

// FindAnnotation returns the first annotation of type desc, or nil.
func FindAnnotation(list []*Annotation, desc string) *Annotation {
	for _, a := range list {
		if a.Desc == desc {
			return a
		}
	}
	return nil
}

// HasAnnotation reports whether list holds an annotation of type desc.
func HasAnnotation(list []*Annotation, desc string) bool {
	return FindAnnotation(list, desc) != nil
}

// FindLastReturn returns the last return instruction of m matching its declared
// return type.
func FindLastReturn(m *Method) (*insn.Node, error) {
	t, err := typedesc.Parse(m.Desc)
	if err != nil {
		return nil, err
	}
	if m.Instructions != nil {
		if n := insn.FindLastOp(m.Instructions, insn.ReturnOpcode(t.ReturnType())); n != nil {
			return n, nil
		}
	}
	return nil, errors.New(errors.PhaseInsn, errors.KindInvalidArgument).
		Member(m.Name + m.Desc).
		Detail("method has no %s instruction", insn.OpName(insn.ReturnOpcode(t.ReturnType()))).
		Build()
}
