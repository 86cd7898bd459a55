// Package classtest builds synthetic class files for tests.
package classtest

import (
	"fmt"

	"github.com/wippyai/classmeta/classfile"
	"github.com/wippyai/classmeta/insn"
)

// Annotation meta types.
const (
	RetentionDesc       = "Ljava/lang/annotation/Retention;"
	RetentionPolicyDesc = "Ljava/lang/annotation/RetentionPolicy;"
	TargetDesc          = "Ljava/lang/annotation/Target;"
	ElementTypeDesc     = "Ljava/lang/annotation/ElementType;"
	InheritedDesc       = "Ljava/lang/annotation/Inherited;"
	AnnotationName      = "java/lang/annotation/Annotation"
)

// Builder assembles a classfile.Class.
type Builder struct {
	c *classfile.Class
}

// Class starts a public class extending java/lang/Object.
func Class(name string) *Builder {
	return &Builder{c: &classfile.Class{
		Name:      name,
		SuperName: classfile.ObjectName,
		Access:    classfile.AccPublic | classfile.AccSuper,
	}}
}

// Interface starts a public interface.
func Interface(name string) *Builder {
	return &Builder{c: &classfile.Class{
		Name:      name,
		SuperName: classfile.ObjectName,
		Access:    classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract,
	}}
}

// Object builds java/lang/Object with a no-arg constructor.
func Object() *Builder {
	b := &Builder{c: &classfile.Class{
		Name:   classfile.ObjectName,
		Access: classfile.AccPublic | classfile.AccSuper,
	}}
	return b.Method(&classfile.Method{
		Access:       classfile.AccPublic,
		Name:         classfile.ConstructorName,
		Desc:         "()V",
		Instructions: insn.NewList(insn.NewInsn(insn.RETURN, nil)),
		MaxLocals:    1,
	})
}

// Super sets the superclass. An empty name leaves it absent.
func (b *Builder) Super(name string) *Builder {
	b.c.SuperName = name
	return b
}

// Implements appends direct interfaces.
func (b *Builder) Implements(names ...string) *Builder {
	b.c.Interfaces = append(b.c.Interfaces, names...)
	return b
}

// Access replaces the access flags.
func (b *Builder) Access(flags uint16) *Builder {
	b.c.Access = flags
	return b
}

// Annotate attaches a class annotation.
func (b *Builder) Annotate(visible bool, a *classfile.Annotation) *Builder {
	if visible {
		b.c.VisibleAnnotations = append(b.c.VisibleAnnotations, a)
	} else {
		b.c.InvisibleAnnotations = append(b.c.InvisibleAnnotations, a)
	}
	return b
}

// Field adds a field.
func (b *Builder) Field(f *classfile.Field) *Builder {
	b.c.Fields = append(b.c.Fields, f)
	return b
}

// Method adds a method.
func (b *Builder) Method(m *classfile.Method) *Builder {
	b.c.Methods = append(b.c.Methods, m)
	return b
}

// Constructor adds a constructor with the given parameter descriptors that
// calls the superclass no-arg constructor.
func (b *Builder) Constructor(params ...string) *Builder {
	return b.Method(&classfile.Method{
		Access: classfile.AccPublic,
		Name:   classfile.ConstructorName,
		Desc:   methodDesc(params),
		Instructions: insn.NewList(
			insn.NewInsn(insn.ALOAD, insn.VarImm{Index: 0}),
			insn.NewInsn(insn.INVOKESPECIAL, insn.MethodImm{Owner: b.c.SuperName, Name: classfile.ConstructorName, Desc: "()V"}),
			insn.NewInsn(insn.RETURN, nil),
		),
		MaxStack:  1,
		MaxLocals: uint16(len(params) + 1),
	})
}

// DelegatingConstructor adds a constructor that calls this(target...).
// The target's arguments are pushed as nulls or zeros.
func (b *Builder) DelegatingConstructor(params []string, target []string) *Builder {
	l := insn.NewList(insn.NewInsn(insn.ALOAD, insn.VarImm{Index: 0}))
	for _, p := range target {
		switch p {
		case "J":
			l.Add(insn.NewInsn(insn.LCONST_0, nil))
		case "F":
			l.Add(insn.NewInsn(insn.FCONST_0, nil))
		case "D":
			l.Add(insn.NewInsn(insn.DCONST_0, nil))
		case "Z", "B", "C", "S", "I":
			l.Add(insn.NewInsn(insn.ICONST_0, nil))
		default:
			l.Add(insn.NewInsn(insn.ACONST_NULL, nil))
		}
	}
	l.Add(insn.NewInsn(insn.INVOKESPECIAL, insn.MethodImm{Owner: b.c.Name, Name: classfile.ConstructorName, Desc: methodDesc(target)}))
	l.Add(insn.NewInsn(insn.RETURN, nil))
	return b.Method(&classfile.Method{
		Access:       classfile.AccPublic,
		Name:         classfile.ConstructorName,
		Desc:         methodDesc(params),
		Instructions: l,
		MaxStack:     uint16(len(target)*2 + 1),
		MaxLocals:    uint16(len(params)*2 + 1),
	})
}

// Build returns the class record.
func (b *Builder) Build() *classfile.Class {
	return b.c
}

// Bytes encodes the class and panics on failure.
func (b *Builder) Bytes() []byte {
	data, err := b.c.Encode()
	if err != nil {
		panic(fmt.Sprintf("classtest: encode %s: %v", b.c.Name, err))
	}
	return data
}

// Ann builds an annotation from alternating element names and values.
func Ann(desc string, kv ...any) *classfile.Annotation {
	a := &classfile.Annotation{Desc: desc}
	for i := 0; i+1 < len(kv); i += 2 {
		a.Set(kv[i].(string), kv[i+1])
	}
	return a
}

// AnnotationType describes an annotation interface to generate.
type AnnotationType struct {
	Name      string
	Retention string   // SOURCE, CLASS or RUNTIME; empty omits @Retention
	Targets   []string // ElementType constants; nil omits @Target
	Inherited bool
	Elements  []Element
}

// Element is one annotation member.
type Element struct {
	Default    any
	Name       string
	Desc       string
	HasDefault bool
}

// Build generates the annotation interface.
func (t AnnotationType) Build() *Builder {
	b := Interface(t.Name).
		Access(classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract | classfile.AccAnnotation).
		Implements(AnnotationName)
	if t.Retention != "" {
		b.Annotate(true, Ann(RetentionDesc, "value", classfile.EnumValue{Desc: RetentionPolicyDesc, Name: t.Retention}))
	}
	if t.Targets != nil {
		vals := make([]any, len(t.Targets))
		for i, tg := range t.Targets {
			vals[i] = classfile.EnumValue{Desc: ElementTypeDesc, Name: tg}
		}
		b.Annotate(true, Ann(TargetDesc, "value", vals))
	}
	if t.Inherited {
		b.Annotate(true, Ann(InheritedDesc))
	}
	for _, e := range t.Elements {
		b.Method(&classfile.Method{
			Access:            classfile.AccPublic | classfile.AccAbstract,
			Name:              e.Name,
			Desc:              "()" + e.Desc,
			AnnotationDefault: e.Default,
			HasDefault:        e.HasDefault,
		})
	}
	return b
}

func methodDesc(params []string) string {
	d := "("
	for _, p := range params {
		d += p
	}
	return d + ")V"
}
