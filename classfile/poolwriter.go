package classfile

import (
	"fmt"
	"math"
	"slices"

	"github.com/wippyai/classmeta/classfile/internal/binary"
	"github.com/wippyai/classmeta/insn"
	"github.com/wippyai/classmeta/typedesc"
)

type poolKey struct {
	s1, s2, s3 string
	n          uint64
	tag        uint8
}

// poolWriter interns constants and serializes them in insertion order.
type poolWriter struct {
	index     map[poolKey]uint16
	w         *binary.Writer
	next      uint16
	bootstrap []bootstrapEntry
}

type bootstrapEntry struct {
	handle uint16
	args   []uint16
}

func newPoolWriter() *poolWriter {
	return &poolWriter{index: make(map[poolKey]uint16), w: binary.NewWriter(), next: 1}
}

func (p *poolWriter) add(k poolKey, write func(w *binary.Writer)) (uint16, error) {
	if idx, ok := p.index[k]; ok {
		return idx, nil
	}
	slots := uint16(1)
	if k.tag == TagLong || k.tag == TagDouble {
		slots = 2
	}
	if int(p.next)+int(slots) > math.MaxUint16 {
		return 0, fmt.Errorf("constant pool overflow")
	}
	idx := p.next
	p.w.U1(k.tag)
	write(p.w)
	p.index[k] = idx
	p.next += slots
	return idx, nil
}

func (p *poolWriter) utf8(s string) (uint16, error) {
	enc := binary.EncodeModifiedUTF8(s)
	if len(enc) > math.MaxUint16 {
		return 0, fmt.Errorf("string constant of %d bytes too long", len(enc))
	}
	return p.add(poolKey{tag: TagUtf8, s1: s}, func(w *binary.Writer) {
		w.U2(uint16(len(enc)))
		w.WriteBytes(enc)
	})
}

// ref adds an entry that points at one utf8 constant.
func (p *poolWriter) ref(tag uint8, s string) (uint16, error) {
	u, err := p.utf8(s)
	if err != nil {
		return 0, err
	}
	return p.add(poolKey{tag: tag, s1: s}, func(w *binary.Writer) { w.U2(u) })
}

func (p *poolWriter) class(name string) (uint16, error) { return p.ref(TagClass, name) }

func (p *poolWriter) str(s string) (uint16, error) { return p.ref(TagString, s) }

func (p *poolWriter) nameAndType(name, desc string) (uint16, error) {
	n, err := p.utf8(name)
	if err != nil {
		return 0, err
	}
	d, err := p.utf8(desc)
	if err != nil {
		return 0, err
	}
	return p.add(poolKey{tag: TagNameAndType, s1: name, s2: desc}, func(w *binary.Writer) {
		w.U2(n)
		w.U2(d)
	})
}

func (p *poolWriter) member(tag uint8, owner, name, desc string) (uint16, error) {
	c, err := p.class(owner)
	if err != nil {
		return 0, err
	}
	nt, err := p.nameAndType(name, desc)
	if err != nil {
		return 0, err
	}
	return p.add(poolKey{tag: tag, s1: owner, s2: name, s3: desc}, func(w *binary.Writer) {
		w.U2(c)
		w.U2(nt)
	})
}

func (p *poolWriter) number(tag uint8, bits uint64) (uint16, error) {
	return p.add(poolKey{tag: tag, n: bits}, func(w *binary.Writer) {
		if tag == TagLong || tag == TagDouble {
			w.U8(bits)
		} else {
			w.U4(uint32(bits))
		}
	})
}

func (p *poolWriter) handle(h insn.Handle) (uint16, error) {
	tag := TagMethodref
	switch {
	case h.Tag <= 4:
		tag = TagFieldref
	case h.Interface:
		tag = TagInterfaceMethodref
	}
	ref, err := p.member(tag, h.Owner, h.Name, h.Desc)
	if err != nil {
		return 0, err
	}
	return p.add(poolKey{tag: TagMethodHandle, s1: h.Owner, s2: h.Name, s3: h.Desc, n: uint64(ref)<<8 | uint64(h.Tag)},
		func(w *binary.Writer) {
			w.U1(h.Tag)
			w.U2(ref)
		})
}

// bootstrapMethod interns a bootstrap method table entry.
func (p *poolWriter) bootstrapMethod(h insn.Handle, args []any) (uint16, error) {
	hi, err := p.handle(h)
	if err != nil {
		return 0, err
	}
	e := bootstrapEntry{handle: hi, args: make([]uint16, len(args))}
	for i, a := range args {
		if e.args[i], err = p.loadable(a); err != nil {
			return 0, err
		}
	}
	for i, b := range p.bootstrap {
		if b.handle == e.handle && slices.Equal(b.args, e.args) {
			return uint16(i), nil
		}
	}
	p.bootstrap = append(p.bootstrap, e)
	return uint16(len(p.bootstrap) - 1), nil
}

func (p *poolWriter) dynamic(tag uint8, name, desc string, h insn.Handle, args []any) (uint16, error) {
	bsm, err := p.bootstrapMethod(h, args)
	if err != nil {
		return 0, err
	}
	nt, err := p.nameAndType(name, desc)
	if err != nil {
		return 0, err
	}
	return p.add(poolKey{tag: tag, s1: name, s2: desc, n: uint64(bsm)}, func(w *binary.Writer) {
		w.U2(bsm)
		w.U2(nt)
	})
}

// loadable interns an ldc operand or bootstrap argument.
func (p *poolWriter) loadable(v any) (uint16, error) {
	switch c := v.(type) {
	case int32:
		return p.number(TagInteger, uint64(uint32(c)))
	case float32:
		return p.number(TagFloat, uint64(math.Float32bits(c)))
	case int64:
		return p.number(TagLong, uint64(c))
	case float64:
		return p.number(TagDouble, math.Float64bits(c))
	case string:
		return p.str(c)
	case typedesc.Type:
		switch c.Sort() {
		case typedesc.Method:
			return p.ref(TagMethodType, c.Descriptor())
		case typedesc.Object, typedesc.Array:
			return p.class(c.InternalName())
		default:
			return 0, fmt.Errorf("primitive type %s is not a loadable constant", c)
		}
	case insn.Handle:
		return p.handle(c)
	case insn.ConstantDynamic:
		return p.dynamic(TagDynamic, c.Name, c.Desc, c.Bootstrap, c.Args)
	default:
		return 0, fmt.Errorf("unsupported constant %T", v)
	}
}

// isWide reports whether v needs ldc2_w.
func isWide(v any) bool {
	switch c := v.(type) {
	case int64, float64:
		return true
	case insn.ConstantDynamic:
		return c.Desc == "J" || c.Desc == "D"
	}
	return false
}
