package classfile

import (
	"fmt"

	"github.com/wippyai/classmeta/classfile/internal/binary"
	"github.com/wippyai/classmeta/errors"
	"github.com/wippyai/classmeta/typedesc"
)

// Options selects which parts of a class file Parse skips.
type Options struct {
	SkipCode   bool // leave Method.Instructions nil
	SkipDebug  bool // drop SourceFile and LineNumberTable
	SkipFrames bool // drop StackMapTable frame markers
}

// ThinOptions is the metadata-only mode used for class resolution.
var ThinOptions = Options{SkipCode: true, SkipDebug: true, SkipFrames: true}

// ParseThin parses structure, annotations and signatures without method bodies.
func ParseThin(data []byte) (*Class, error) {
	return Parse(data, ThinOptions)
}

// ParseFull parses everything the reader understands.
func ParseFull(data []byte) (*Class, error) {
	return Parse(data, Options{})
}

// pendingCode defers Code decoding until BootstrapMethods has been read.
type pendingCode struct {
	method *Method
	data   []byte
}

type decoder struct {
	r       *binary.Reader
	cp      *constantPool
	opts    Options
	pending []pendingCode
}

// Parse decodes a class file. Every failure is reported as malformed input.
func Parse(data []byte, opts Options) (*Class, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU4()
	if err != nil {
		return nil, errors.Malformed("truncated header", r.WrapError("header", err))
	}
	if magic != Magic {
		return nil, errors.New(errors.PhaseParse, errors.KindMalformedInput).
			Value(magic).
			Detail("bad magic 0x%08X", magic).
			Build()
	}

	c := &Class{}
	if c.Minor, err = r.ReadU2(); err != nil {
		return nil, errors.Malformed("truncated header", r.WrapError("header", err))
	}
	if c.Major, err = r.ReadU2(); err != nil {
		return nil, errors.Malformed("truncated header", r.WrapError("header", err))
	}

	cp, err := readConstantPool(r)
	if err != nil {
		return nil, errors.Malformed("invalid constant pool", r.WrapError("constant pool", err))
	}

	d := &decoder{r: r, cp: cp, opts: opts}
	if err := d.readClass(c); err != nil {
		return nil, errors.New(errors.PhaseParse, errors.KindMalformedInput).
			Class(c.Name).
			Detail("invalid class structure").
			Cause(err).
			Build()
	}
	return c, nil
}

func (d *decoder) readClass(c *Class) error {
	r := d.r
	var err error
	if c.Access, err = r.ReadU2(); err != nil {
		return r.WrapError("access flags", err)
	}
	this, err := r.ReadU2()
	if err != nil {
		return r.WrapError("this class", err)
	}
	if c.Name, err = d.cp.className(this); err != nil {
		return r.WrapError("this class", err)
	}
	super, err := r.ReadU2()
	if err != nil {
		return r.WrapError("super class", err)
	}
	if c.SuperName, err = d.cp.optClassName(super); err != nil {
		return r.WrapError("super class", err)
	}

	n, err := r.ReadU2()
	if err != nil {
		return r.WrapError("interfaces", err)
	}
	c.Interfaces = make([]string, n)
	for i := range c.Interfaces {
		idx, err := r.ReadU2()
		if err != nil {
			return r.WrapError("interfaces", err)
		}
		if c.Interfaces[i], err = d.cp.className(idx); err != nil {
			return r.WrapError("interfaces", err)
		}
	}

	if n, err = r.ReadU2(); err != nil {
		return r.WrapError("fields", err)
	}
	c.Fields = make([]*Field, n)
	for i := range c.Fields {
		if c.Fields[i], err = d.readField(); err != nil {
			return err
		}
	}

	if n, err = r.ReadU2(); err != nil {
		return r.WrapError("methods", err)
	}
	c.Methods = make([]*Method, n)
	for i := range c.Methods {
		if c.Methods[i], err = d.readMethod(); err != nil {
			return err
		}
	}

	if err := d.readClassAttributes(c); err != nil {
		return err
	}

	for _, p := range d.pending {
		if err := d.readCode(p.method, p.data); err != nil {
			return fmt.Errorf("method %s%s: %w", p.method.Name, p.method.Desc, err)
		}
	}
	return nil
}

// attributes iterates attribute_info entries, passing each body to fn.
func (d *decoder) attributes(section string, fn func(name string, data []byte) error) error {
	r := d.r
	n, err := r.ReadU2()
	if err != nil {
		return r.WrapError(section, err)
	}
	for i := 0; i < int(n); i++ {
		nameIdx, err := r.ReadU2()
		if err != nil {
			return r.WrapError(section, err)
		}
		name, err := d.cp.utf8(nameIdx)
		if err != nil {
			return r.WrapError(section, err)
		}
		size, err := r.ReadU4()
		if err != nil {
			return r.WrapError(section, err)
		}
		data, err := r.ReadBytes(int(size))
		if err != nil {
			return r.WrapError(section, err)
		}
		if err := fn(name, data); err != nil {
			return r.WrapError(section+" attribute "+name, err)
		}
	}
	return nil
}

func (d *decoder) readField() (*Field, error) {
	r := d.r
	f := &Field{}
	var err error
	if f.Access, err = r.ReadU2(); err != nil {
		return nil, r.WrapError("field", err)
	}
	if f.Name, f.Desc, err = d.nameDesc(); err != nil {
		return nil, r.WrapError("field", err)
	}
	err = d.attributes("field", func(name string, data []byte) error {
		var err error
		switch name {
		case AttrConstantValue:
			idx, err := u2At(data)
			if err != nil {
				return err
			}
			f.Value, err = d.cp.constantValue(idx)
			return err
		case AttrSignature:
			f.Signature, err = d.utf8At(data)
		case AttrRuntimeVisibleAnnotations:
			f.VisibleAnnotations, err = d.annotations(data)
		case AttrRuntimeInvisibleAnnotations:
			f.InvisibleAnnotations, err = d.annotations(data)
		default:
			f.Attributes = append(f.Attributes, Attribute{Name: name, Data: data})
		}
		return err
	})
	return f, err
}

func (d *decoder) readMethod() (*Method, error) {
	r := d.r
	m := &Method{}
	var err error
	if m.Access, err = r.ReadU2(); err != nil {
		return nil, r.WrapError("method", err)
	}
	if m.Name, m.Desc, err = d.nameDesc(); err != nil {
		return nil, r.WrapError("method", err)
	}
	err = d.attributes("method", func(name string, data []byte) error {
		var err error
		switch name {
		case AttrCode:
			if !d.opts.SkipCode {
				d.pending = append(d.pending, pendingCode{method: m, data: data})
			}
		case AttrExceptions:
			m.Exceptions, err = d.classList(data)
		case AttrSignature:
			m.Signature, err = d.utf8At(data)
		case AttrAnnotationDefault:
			ar := binary.NewReader(data)
			m.AnnotationDefault, err = d.elementValue(ar)
			m.HasDefault = err == nil
		case AttrRuntimeVisibleAnnotations:
			m.VisibleAnnotations, err = d.annotations(data)
		case AttrRuntimeInvisibleAnnotations:
			m.InvisibleAnnotations, err = d.annotations(data)
		default:
			m.Attributes = append(m.Attributes, Attribute{Name: name, Data: data})
		}
		return err
	})
	return m, err
}

func (d *decoder) readClassAttributes(c *Class) error {
	return d.attributes("class", func(name string, data []byte) error {
		var err error
		switch name {
		case AttrSourceFile:
			if !d.opts.SkipDebug {
				c.SourceFile, err = d.utf8At(data)
			}
		case AttrSignature:
			c.Signature, err = d.utf8At(data)
		case AttrBootstrapMethods:
			err = d.readBootstrapMethods(data)
		case AttrRuntimeVisibleAnnotations:
			c.VisibleAnnotations, err = d.annotations(data)
		case AttrRuntimeInvisibleAnnotations:
			c.InvisibleAnnotations, err = d.annotations(data)
		default:
			c.Attributes = append(c.Attributes, Attribute{Name: name, Data: data})
		}
		return err
	})
}

func (d *decoder) readBootstrapMethods(data []byte) error {
	r := binary.NewReader(data)
	n, err := r.ReadU2()
	if err != nil {
		return err
	}
	d.cp.bootstrap = make([]bootstrapMethod, n)
	for i := range d.cp.bootstrap {
		bm := &d.cp.bootstrap[i]
		if bm.handle, err = r.ReadU2(); err != nil {
			return err
		}
		argc, err := r.ReadU2()
		if err != nil {
			return err
		}
		bm.args = make([]uint16, argc)
		for j := range bm.args {
			if bm.args[j], err = r.ReadU2(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *decoder) nameDesc() (string, string, error) {
	nameIdx, err := d.r.ReadU2()
	if err != nil {
		return "", "", err
	}
	descIdx, err := d.r.ReadU2()
	if err != nil {
		return "", "", err
	}
	name, err := d.cp.utf8(nameIdx)
	if err != nil {
		return "", "", err
	}
	desc, err := d.cp.utf8(descIdx)
	return name, desc, err
}

func (d *decoder) utf8At(data []byte) (string, error) {
	idx, err := u2At(data)
	if err != nil {
		return "", err
	}
	return d.cp.utf8(idx)
}

func (d *decoder) classList(data []byte) ([]string, error) {
	r := binary.NewReader(data)
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		idx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		if out[i], err = d.cp.className(idx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func u2At(data []byte) (uint16, error) {
	return binary.NewReader(data).ReadU2()
}

func (d *decoder) annotations(data []byte) ([]*Annotation, error) {
	r := binary.NewReader(data)
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	out := make([]*Annotation, n)
	for i := range out {
		if out[i], err = d.annotation(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *decoder) annotation(r *binary.Reader) (*Annotation, error) {
	typeIdx, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	a := &Annotation{}
	if a.Desc, err = d.cp.utf8(typeIdx); err != nil {
		return nil, err
	}
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	a.Values = make([]ElementValuePair, n)
	for i := range a.Values {
		nameIdx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		if a.Values[i].Name, err = d.cp.utf8(nameIdx); err != nil {
			return nil, err
		}
		if a.Values[i].Value, err = d.elementValue(r); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (d *decoder) elementValue(r *binary.Reader) (any, error) {
	tag, err := r.ReadU1()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 'B', 'C', 'I', 'S', 'Z':
		idx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		e, err := d.cp.entry(idx, TagInteger)
		if err != nil {
			return nil, err
		}
		v := int32(uint32(e.num))
		switch tag {
		case 'B':
			return int8(v), nil
		case 'C':
			return uint16(v), nil
		case 'S':
			return int16(v), nil
		case 'Z':
			return v != 0, nil
		}
		return v, nil
	case 'D', 'F', 'J':
		idx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		want := TagDouble
		if tag == 'F' {
			want = TagFloat
		} else if tag == 'J' {
			want = TagLong
		}
		if _, err := d.cp.entry(idx, want); err != nil {
			return nil, err
		}
		return d.cp.loadable(idx)
	case 's':
		idx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		return d.cp.utf8(idx)
	case 'e':
		typeIdx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		var ev EnumValue
		if ev.Desc, err = d.cp.utf8(typeIdx); err != nil {
			return nil, err
		}
		if ev.Name, err = d.cp.utf8(nameIdx); err != nil {
			return nil, err
		}
		return ev, nil
	case 'c':
		idx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		desc, err := d.cp.utf8(idx)
		if err != nil {
			return nil, err
		}
		return typedesc.Parse(desc)
	case '@':
		return d.annotation(r)
	case '[':
		n, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		out := make([]any, n)
		for i := range out {
			if out[i], err = d.elementValue(r); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown element value tag %q", tag)
	}
}
