package annotation

import (
	"github.com/wippyai/classmeta/classfile"
	"github.com/wippyai/classmeta/errors"
	"github.com/wippyai/classmeta/typedesc"
)

// Meta-annotation descriptors read by KindFromClass.
const (
	RetentionDesc = "Ljava/lang/annotation/Retention;"
	TargetDesc    = "Ljava/lang/annotation/Target;"
	InheritedDesc = "Ljava/lang/annotation/Inherited;"
)

// Retention is how far an annotation survives compilation.
type Retention uint8

const (
	// Class retention is the default: stored in the class file as an
	// invisible annotation.
	Class Retention = iota
	// Source annotations are discarded by the compiler.
	Source
	// Runtime annotations are stored as visible annotations.
	Runtime
)

func (r Retention) String() string {
	switch r {
	case Class:
		return "CLASS"
	case Source:
		return "SOURCE"
	case Runtime:
		return "RUNTIME"
	default:
		return "invalid"
	}
}

// ParseRetention parses a RetentionPolicy constant name.
func ParseRetention(s string) (Retention, bool) {
	switch s {
	case "CLASS":
		return Class, true
	case "SOURCE":
		return Source, true
	case "RUNTIME":
		return Runtime, true
	}
	return 0, false
}

// Target is an ElementType constant name.
type Target string

const (
	TargetType           Target = "TYPE"
	TargetField          Target = "FIELD"
	TargetMethod         Target = "METHOD"
	TargetParameter      Target = "PARAMETER"
	TargetConstructor    Target = "CONSTRUCTOR"
	TargetLocalVariable  Target = "LOCAL_VARIABLE"
	TargetAnnotationType Target = "ANNOTATION_TYPE"
	TargetPackage        Target = "PACKAGE"
	TargetTypeParameter  Target = "TYPE_PARAMETER"
	TargetTypeUse        Target = "TYPE_USE"
)

// Kind describes an annotation interface.
type Kind struct {
	// Defaults holds member default values by member name.
	Defaults  map[string]any
	Desc      string
	Targets   []Target // nil means applicable everywhere
	Retention Retention
	Inherited bool
}

// Applies reports whether the kind may annotate one of the given targets.
func (k Kind) Applies(targets ...Target) bool {
	if k.Targets == nil {
		return true
	}
	for _, want := range targets {
		for _, t := range k.Targets {
			if t == want {
				return true
			}
		}
	}
	return false
}

// Default returns the declared default for a member.
func (k Kind) Default(name string) (any, bool) {
	v, ok := k.Defaults[name]
	return v, ok
}

// KindFromClass derives a Kind from the class file of an annotation
// interface.
func KindFromClass(c *classfile.Class) (Kind, error) {
	if c.Access&classfile.AccAnnotation == 0 {
		return Kind{}, errors.New(errors.PhaseAnnotation, errors.KindInvalidArgument).
			Class(c.Name).
			Detail("not an annotation interface").
			Build()
	}
	k := Kind{Desc: typedesc.ObjectType(c.Name).Descriptor(), Retention: Class}
	all := c.Annotations()

	if a := classfile.FindAnnotation(all, RetentionDesc); a != nil {
		v, _ := a.Get("value")
		ev, ok := v.(classfile.EnumValue)
		if !ok {
			return Kind{}, malformedMeta(c.Name, "@Retention value")
		}
		r, ok := ParseRetention(ev.Name)
		if !ok {
			return Kind{}, malformedMeta(c.Name, "retention policy "+ev.Name)
		}
		k.Retention = r
	}

	if a := classfile.FindAnnotation(all, TargetDesc); a != nil {
		v, _ := a.Get("value")
		list, ok := v.([]any)
		if !ok {
			return Kind{}, malformedMeta(c.Name, "@Target value")
		}
		k.Targets = make([]Target, 0, len(list))
		for _, item := range list {
			ev, ok := item.(classfile.EnumValue)
			if !ok {
				return Kind{}, malformedMeta(c.Name, "@Target element")
			}
			k.Targets = append(k.Targets, Target(ev.Name))
		}
	}

	k.Inherited = classfile.HasAnnotation(all, InheritedDesc)

	for _, m := range c.Methods {
		if !m.HasDefault {
			continue
		}
		if k.Defaults == nil {
			k.Defaults = make(map[string]any)
		}
		k.Defaults[m.Name] = m.AnnotationDefault
	}
	return k, nil
}

func malformedMeta(class, what string) error {
	return errors.New(errors.PhaseAnnotation, errors.KindMalformedInput).
		Class(class).
		Detail("unexpected %s", what).
		Build()
}
