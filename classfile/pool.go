package classfile

import (
	"fmt"
	"math"

	"github.com/wippyai/classmeta/classfile/internal/binary"
	"github.com/wippyai/classmeta/insn"
	"github.com/wippyai/classmeta/typedesc"
)

// cpEntry is one decoded constant pool slot. Index operands live in a and b.
type cpEntry struct {
	str string
	num uint64
	a   uint16
	b   uint16
	tag uint8
}

type constantPool struct {
	entries []cpEntry
	// bootstrap is filled from the BootstrapMethods attribute before code is decoded.
	bootstrap []bootstrapMethod
}

type bootstrapMethod struct {
	handle uint16
	args   []uint16
}

func readConstantPool(r *binary.Reader) (*constantPool, error) {
	count, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	cp := &constantPool{entries: make([]cpEntry, count)}
	for i := 1; i < int(count); i++ {
		tag, err := r.ReadU1()
		if err != nil {
			return nil, err
		}
		e := cpEntry{tag: tag}
		switch tag {
		case TagUtf8:
			if e.str, err = r.ReadModifiedUTF8(); err != nil {
				return nil, err
			}
		case TagInteger, TagFloat:
			v, err := r.ReadU4()
			if err != nil {
				return nil, err
			}
			e.num = uint64(v)
		case TagLong, TagDouble:
			if e.num, err = r.ReadU8(); err != nil {
				return nil, err
			}
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			if e.a, err = r.ReadU2(); err != nil {
				return nil, err
			}
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType,
			TagDynamic, TagInvokeDynamic:
			if e.a, err = r.ReadU2(); err != nil {
				return nil, err
			}
			if e.b, err = r.ReadU2(); err != nil {
				return nil, err
			}
		case TagMethodHandle:
			kind, err := r.ReadU1()
			if err != nil {
				return nil, err
			}
			e.a = uint16(kind)
			if e.b, err = r.ReadU2(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("constant %d: unknown tag %d", i, tag)
		}
		cp.entries[i] = e
		if tag == TagLong || tag == TagDouble {
			i++
		}
	}
	return cp, nil
}

func (cp *constantPool) entry(i uint16, tags ...uint8) (cpEntry, error) {
	if i == 0 || int(i) >= len(cp.entries) || cp.entries[i].tag == 0 {
		return cpEntry{}, fmt.Errorf("constant pool index %d out of range", i)
	}
	e := cp.entries[i]
	for _, t := range tags {
		if e.tag == t {
			return e, nil
		}
	}
	return cpEntry{}, fmt.Errorf("constant %d has tag %d, want one of %v", i, e.tag, tags)
}

func (cp *constantPool) utf8(i uint16) (string, error) {
	e, err := cp.entry(i, TagUtf8)
	return e.str, err
}

func (cp *constantPool) className(i uint16) (string, error) {
	e, err := cp.entry(i, TagClass)
	if err != nil {
		return "", err
	}
	return cp.utf8(e.a)
}

// optClassName resolves a class index where zero means absent.
func (cp *constantPool) optClassName(i uint16) (string, error) {
	if i == 0 {
		return "", nil
	}
	return cp.className(i)
}

func (cp *constantPool) nameAndType(i uint16) (name, desc string, err error) {
	e, err := cp.entry(i, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = cp.utf8(e.a); err != nil {
		return "", "", err
	}
	desc, err = cp.utf8(e.b)
	return name, desc, err
}

// member resolves a Fieldref, Methodref or InterfaceMethodref.
func (cp *constantPool) member(i uint16) (owner, name, desc string, itf bool, err error) {
	e, err := cp.entry(i, TagFieldref, TagMethodref, TagInterfaceMethodref)
	if err != nil {
		return "", "", "", false, err
	}
	if owner, err = cp.className(e.a); err != nil {
		return "", "", "", false, err
	}
	name, desc, err = cp.nameAndType(e.b)
	return owner, name, desc, e.tag == TagInterfaceMethodref, err
}

func (cp *constantPool) handle(i uint16) (insn.Handle, error) {
	e, err := cp.entry(i, TagMethodHandle)
	if err != nil {
		return insn.Handle{}, err
	}
	owner, name, desc, itf, err := cp.member(e.b)
	if err != nil {
		return insn.Handle{}, err
	}
	return insn.Handle{Owner: owner, Name: name, Desc: desc, Tag: uint8(e.a), Interface: itf}, nil
}

func (cp *constantPool) bootstrapArgs(idx uint16) (insn.Handle, []any, error) {
	if int(idx) >= len(cp.bootstrap) {
		return insn.Handle{}, nil, fmt.Errorf("bootstrap method %d out of range", idx)
	}
	bm := cp.bootstrap[idx]
	h, err := cp.handle(bm.handle)
	if err != nil {
		return insn.Handle{}, nil, err
	}
	args := make([]any, len(bm.args))
	for j, a := range bm.args {
		if args[j], err = cp.loadable(a); err != nil {
			return insn.Handle{}, nil, err
		}
	}
	return h, args, nil
}

// loadable decodes a constant usable by ldc or as a bootstrap argument.
func (cp *constantPool) loadable(i uint16) (any, error) {
	e, err := cp.entry(i, TagInteger, TagFloat, TagLong, TagDouble, TagString,
		TagClass, TagMethodType, TagMethodHandle, TagDynamic)
	if err != nil {
		return nil, err
	}
	switch e.tag {
	case TagInteger:
		return int32(uint32(e.num)), nil
	case TagFloat:
		return math.Float32frombits(uint32(e.num)), nil
	case TagLong:
		return int64(e.num), nil
	case TagDouble:
		return math.Float64frombits(e.num), nil
	case TagString:
		return cp.utf8(e.a)
	case TagClass:
		name, err := cp.utf8(e.a)
		if err != nil {
			return nil, err
		}
		return typedesc.ObjectType(name), nil
	case TagMethodType:
		desc, err := cp.utf8(e.a)
		if err != nil {
			return nil, err
		}
		return typedesc.Parse(desc)
	case TagMethodHandle:
		return cp.handle(i)
	default:
		name, desc, err := cp.nameAndType(e.b)
		if err != nil {
			return nil, err
		}
		h, args, err := cp.bootstrapArgs(e.a)
		if err != nil {
			return nil, err
		}
		return insn.ConstantDynamic{Name: name, Desc: desc, Bootstrap: h, Args: args}, nil
	}
}

// constantValue decodes a ConstantValue attribute operand.
func (cp *constantPool) constantValue(i uint16) (any, error) {
	e, err := cp.entry(i, TagInteger, TagFloat, TagLong, TagDouble, TagString)
	if err != nil {
		return nil, err
	}
	if e.tag == TagString {
		return cp.utf8(e.a)
	}
	return cp.loadable(i)
}
