// Package annotation finds annotations on classes, fields and methods,
// honoring retention, target applicability and @Inherited.
package annotation

import (
	stderrors "errors"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/classmeta/classfile"
	"github.com/wippyai/classmeta/classinfo"
	"github.com/wippyai/classmeta/errors"
)

// Classes resolves class names. *classinfo.Registry implements it.
type Classes interface {
	Of(name string) (*classinfo.ClassInfo, error)
}

// Options controls a lookup.
type Options struct {
	// Inherited walks the superclass chain for class lookups when the kind
	// is itself @Inherited.
	Inherited bool
}

// Resolver performs annotation lookups.
type Resolver struct {
	classes Classes
	kinds   map[string]Kind
	mu      sync.RWMutex
}

// NewResolver creates a resolver. classes may be nil when no inheritance
// walk and no descriptor-based kind lookup is needed.
func NewResolver(classes Classes) *Resolver {
	return &Resolver{classes: classes, kinds: make(map[string]Kind)}
}

// Kind returns the Kind for an annotation descriptor by reading the
// annotation interface's class file. Results are cached.
func (r *Resolver) Kind(desc string) (Kind, error) {
	r.mu.RLock()
	k, ok := r.kinds[desc]
	r.mu.RUnlock()
	if ok {
		return k, nil
	}
	if r.classes == nil {
		return Kind{}, errors.IllegalState(errors.PhaseAnnotation, "no class resolver configured")
	}
	ci, err := r.classes.Of(descName(desc))
	if err != nil {
		return Kind{}, err
	}
	rec, err := ci.Record()
	if err != nil {
		return Kind{}, err
	}
	k, err = KindFromClass(rec)
	if err != nil {
		return Kind{}, err
	}
	r.mu.Lock()
	r.kinds[desc] = k
	r.mu.Unlock()
	return k, nil
}

// FindOnClass looks up kind on a class. A kind not applicable to types
// yields nil without error. Source retention is an UnsupportedRetention
// error.
func (r *Resolver) FindOnClass(c *classfile.Class, kind Kind, opts Options) (*classfile.Annotation, error) {
	if kind.Retention == Source {
		return nil, errors.UnsupportedRetention(kind.Desc)
	}
	targets := []Target{TargetType}
	if c.Access&classfile.AccAnnotation != 0 {
		targets = append(targets, TargetAnnotationType)
	}
	if !kind.Applies(targets...) {
		return nil, nil
	}
	if a := pick(kind, c.VisibleAnnotations, c.InvisibleAnnotations); a != nil {
		return a, nil
	}
	if !opts.Inherited || !kind.Inherited || c.IsInterface() || c.SuperName == "" {
		return nil, nil
	}
	if r.classes == nil {
		return nil, errors.IllegalState(errors.PhaseAnnotation, "inherited lookup needs a class resolver")
	}

	ci, err := r.classes.Of(c.SuperName)
	for depth := 1; ; depth++ {
		if err != nil {
			return nil, err
		}
		// the root class never carries an inherited annotation
		if ci == nil || ci.IsRoot() {
			return nil, nil
		}
		var rec *classfile.Class
		if rec, err = ci.Record(); err != nil {
			if ci.Variant() != classinfo.Loaded || stderrors.Is(err, errors.ErrMalformedInput) {
				return nil, err
			}
			Logger().Debug("skipping loaded class without class file",
				zap.String("annotation", kind.Desc),
				zap.String("class", ci.InternalName()),
				zap.Error(err))
		} else if a := pick(kind, rec.VisibleAnnotations, rec.InvisibleAnnotations); a != nil {
			Logger().Debug("inherited annotation found",
				zap.String("annotation", kind.Desc),
				zap.String("class", c.Name),
				zap.String("declared_on", rec.Name),
				zap.Int("depth", depth))
			return a, nil
		}
		ci, err = ci.Superclass()
	}
}

// FindOnField looks up kind on a field.
func (r *Resolver) FindOnField(f *classfile.Field, kind Kind) (*classfile.Annotation, error) {
	if kind.Retention == Source {
		return nil, errors.UnsupportedRetention(kind.Desc)
	}
	if !kind.Applies(TargetField) {
		return nil, nil
	}
	return pick(kind, f.VisibleAnnotations, f.InvisibleAnnotations), nil
}

// FindOnMethod looks up kind on a method or constructor.
func (r *Resolver) FindOnMethod(m *classfile.Method, kind Kind) (*classfile.Annotation, error) {
	if kind.Retention == Source {
		return nil, errors.UnsupportedRetention(kind.Desc)
	}
	target := TargetMethod
	if m.IsConstructor() {
		target = TargetConstructor
	}
	if !kind.Applies(target) {
		return nil, nil
	}
	return pick(kind, m.VisibleAnnotations, m.InvisibleAnnotations), nil
}

// HasOnClass reports whether FindOnClass finds kind.
func (r *Resolver) HasOnClass(c *classfile.Class, kind Kind, opts Options) (bool, error) {
	a, err := r.FindOnClass(c, kind, opts)
	return a != nil, err
}

// HasOnField reports whether FindOnField finds kind.
func (r *Resolver) HasOnField(f *classfile.Field, kind Kind) (bool, error) {
	a, err := r.FindOnField(f, kind)
	return a != nil, err
}

// HasOnMethod reports whether FindOnMethod finds kind.
func (r *Resolver) HasOnMethod(m *classfile.Method, kind Kind) (bool, error) {
	a, err := r.FindOnMethod(m, kind)
	return a != nil, err
}

// FieldsWith returns the fields of c carrying kind.
func (r *Resolver) FieldsWith(c *classfile.Class, kind Kind) ([]*classfile.Field, error) {
	var out []*classfile.Field
	for _, f := range c.Fields {
		ok, err := r.HasOnField(f, kind)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// MethodsWith returns the methods of c carrying kind.
func (r *Resolver) MethodsWith(c *classfile.Class, kind Kind) ([]*classfile.Method, error) {
	var out []*classfile.Method
	for _, m := range c.Methods {
		ok, err := r.HasOnMethod(m, kind)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// Property returns the explicit value of key, else the kind's default, else
// fallback.
func Property(a *classfile.Annotation, key string, kind Kind, fallback any) any {
	if a != nil {
		if v, ok := a.Get(key); ok {
			return v
		}
	}
	if v, ok := kind.Default(key); ok {
		return v
	}
	return fallback
}

// pick reads the list matching the kind's retention.
func pick(kind Kind, visible, invisible []*classfile.Annotation) *classfile.Annotation {
	if kind.Retention == Runtime {
		return classfile.FindAnnotation(visible, kind.Desc)
	}
	return classfile.FindAnnotation(invisible, kind.Desc)
}

func descName(desc string) string {
	if len(desc) > 2 && desc[0] == 'L' && desc[len(desc)-1] == ';' {
		return desc[1 : len(desc)-1]
	}
	return desc
}
