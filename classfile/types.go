package classfile

import (
	"github.com/wippyai/classmeta/insn"
)

// Class is the decoded record of one class file.
type Class struct {
	Name       string   // internal name, slash separated
	SuperName  string   // empty for java/lang/Object and module-info
	Signature  string   // generic signature, if any
	SourceFile string   // empty when debug info was skipped or absent
	Interfaces []string // declaration order

	Fields  []*Field
	Methods []*Method

	VisibleAnnotations   []*Annotation
	InvisibleAnnotations []*Annotation

	// Attributes holds class attributes the reader does not decode, verbatim.
	// Constant pool indices inside them are not rewritten by Encode.
	Attributes []Attribute

	Minor  uint16
	Major  uint16
	Access uint16
}

// Field is a decoded field_info.
type Field struct {
	Name      string
	Desc      string
	Signature string

	// Value is the ConstantValue: int32, float32, int64, float64 or string. Nil when absent.
	Value any

	VisibleAnnotations   []*Annotation
	InvisibleAnnotations []*Annotation
	Attributes           []Attribute

	Access uint16
}

// Method is a decoded method_info.
type Method struct {
	Name       string
	Desc       string
	Signature  string
	Exceptions []string

	// Instructions is nil when the method has no Code attribute or code was skipped.
	Instructions *insn.List
	TryCatch     []TryCatch

	// AnnotationDefault is the default element value of an annotation type member.
	AnnotationDefault any
	HasDefault        bool

	VisibleAnnotations   []*Annotation
	InvisibleAnnotations []*Annotation
	Attributes           []Attribute

	Access    uint16
	MaxStack  uint16
	MaxLocals uint16
}

// TryCatch is one exception table entry. Type is empty for a catch-all handler.
type TryCatch struct {
	Start   *insn.Node
	End     *insn.Node
	Handler *insn.Node
	Type    string
}

// Attribute is an undecoded attribute.
type Attribute struct {
	Name string
	Data []byte
}

// Annotation is one annotation instance.
//
// Element values are represented as:
//
//	B int8, C uint16, D float64, F float32, I int32, J int64, S int16, Z bool,
//	s string, e EnumValue, c typedesc.Type, @ *Annotation, [ []any
type Annotation struct {
	Desc   string
	Values []ElementValuePair
}

// ElementValuePair is one name=value element of an annotation.
type ElementValuePair struct {
	Value any
	Name  string
}

// EnumValue is an enum constant element value.
type EnumValue struct {
	Desc string
	Name string
}

// Get returns the explicit value of element name.
func (a *Annotation) Get(name string) (any, bool) {
	for _, p := range a.Values {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Set replaces or appends the value of element name.
func (a *Annotation) Set(name string, value any) {
	for i := range a.Values {
		if a.Values[i].Name == name {
			a.Values[i].Value = value
			return
		}
	}
	a.Values = append(a.Values, ElementValuePair{Name: name, Value: value})
}

// Annotations returns the visible then the invisible annotations.
func (c *Class) Annotations() []*Annotation {
	return joinAnnotations(c.VisibleAnnotations, c.InvisibleAnnotations)
}

// Annotations returns the visible then the invisible annotations.
func (f *Field) Annotations() []*Annotation {
	return joinAnnotations(f.VisibleAnnotations, f.InvisibleAnnotations)
}

// Annotations returns the visible then the invisible annotations.
func (m *Method) Annotations() []*Annotation {
	return joinAnnotations(m.VisibleAnnotations, m.InvisibleAnnotations)
}

// IsInterface reports whether the class is an interface or annotation type.
func (c *Class) IsInterface() bool { return c.Access&AccInterface != 0 }

// IsConstructor reports whether m is an instance initializer.
func (m *Method) IsConstructor() bool { return m.Name == ConstructorName }

// IsStatic reports whether m is static.
func (m *Method) IsStatic() bool { return m.Access&AccStatic != 0 }

func joinAnnotations(visible, invisible []*Annotation) []*Annotation {
	out := make([]*Annotation, 0, len(visible)+len(invisible))
	out = append(out, visible...)
	return append(out, invisible...)
}
