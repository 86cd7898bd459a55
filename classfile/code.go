package classfile

import (
	"fmt"

	"github.com/wippyai/classmeta/classfile/internal/binary"
	"github.com/wippyai/classmeta/insn"
)

// codeReader turns one Code attribute into an instruction list.
type codeReader struct {
	cp     *constantPool
	labels map[int]*insn.Node
	lines  map[int][]*insn.Node
	frames map[int]*insn.Node
	insns  map[int]*insn.Node
	length int
}

func (cr *codeReader) labelAt(off int) (*insn.Node, error) {
	if off < 0 || off > cr.length {
		return nil, fmt.Errorf("branch target %d outside code of length %d", off, cr.length)
	}
	if l, ok := cr.labels[off]; ok {
		return l, nil
	}
	l := insn.NewLabel()
	cr.labels[off] = l
	return l, nil
}

func (d *decoder) readCode(m *Method, data []byte) error {
	r := binary.NewReader(data)
	var err error
	if m.MaxStack, err = r.ReadU2(); err != nil {
		return err
	}
	if m.MaxLocals, err = r.ReadU2(); err != nil {
		return err
	}
	length, err := r.ReadU4()
	if err != nil {
		return err
	}
	code, err := r.ReadBytes(int(length))
	if err != nil {
		return err
	}

	cr := &codeReader{
		cp:     d.cp,
		labels: make(map[int]*insn.Node),
		lines:  make(map[int][]*insn.Node),
		frames: make(map[int]*insn.Node),
		insns:  make(map[int]*insn.Node),
		length: int(length),
	}
	if err := cr.decodeInstructions(code); err != nil {
		return err
	}

	handlers, err := r.ReadU2()
	if err != nil {
		return err
	}
	m.TryCatch = make([]TryCatch, handlers)
	for i := range m.TryCatch {
		var pcs [4]uint16
		for j := range pcs {
			if pcs[j], err = r.ReadU2(); err != nil {
				return err
			}
		}
		tc := &m.TryCatch[i]
		if tc.Start, err = cr.labelAt(int(pcs[0])); err != nil {
			return err
		}
		if tc.End, err = cr.labelAt(int(pcs[1])); err != nil {
			return err
		}
		if tc.Handler, err = cr.labelAt(int(pcs[2])); err != nil {
			return err
		}
		if tc.Type, err = d.cp.optClassName(pcs[3]); err != nil {
			return err
		}
	}

	n, err := r.ReadU2()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		nameIdx, err := r.ReadU2()
		if err != nil {
			return err
		}
		name, err := d.cp.utf8(nameIdx)
		if err != nil {
			return err
		}
		size, err := r.ReadU4()
		if err != nil {
			return err
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return err
		}
		switch {
		case name == AttrLineNumberTable && !d.opts.SkipDebug:
			err = cr.readLines(body)
		case name == AttrStackMapTable && !d.opts.SkipFrames:
			err = cr.readFrames(body)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	m.Instructions = cr.assemble()
	return nil
}

// assemble lays out labels, line markers, frames and instructions by offset.
func (cr *codeReader) assemble() *insn.List {
	l := insn.NewList()
	for off := 0; off <= cr.length; off++ {
		if lb, ok := cr.labels[off]; ok {
			l.Add(lb)
		}
		for _, ln := range cr.lines[off] {
			l.Add(ln)
		}
		if f, ok := cr.frames[off]; ok {
			l.Add(f)
		}
		if n, ok := cr.insns[off]; ok {
			l.Add(n)
		}
	}
	return l
}

func (cr *codeReader) readLines(data []byte) error {
	r := binary.NewReader(data)
	n, err := r.ReadU2()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		pc, err := r.ReadU2()
		if err != nil {
			return err
		}
		line, err := r.ReadU2()
		if err != nil {
			return err
		}
		start, err := cr.labelAt(int(pc))
		if err != nil {
			return err
		}
		cr.lines[int(pc)] = append(cr.lines[int(pc)],
			insn.NewInsn(insn.OpLine, insn.LineImm{Start: start, Line: line}))
	}
	return nil
}

// readFrames records frame positions and shapes; verification types are skipped.
func (cr *codeReader) readFrames(data []byte) error {
	r := binary.NewReader(data)
	n, err := r.ReadU2()
	if err != nil {
		return err
	}
	off := -1
	for i := 0; i < int(n); i++ {
		ft, err := r.ReadU1()
		if err != nil {
			return err
		}
		var delta int
		var kind uint8
		switch {
		case ft < 64:
			delta, kind = int(ft), insn.FrameSame
		case ft < 128:
			delta, kind = int(ft-64), insn.FrameSameLocals1
			if err := skipVerificationTypes(r, 1); err != nil {
				return err
			}
		case ft < 247:
			return fmt.Errorf("reserved frame type %d", ft)
		default:
			d, err := r.ReadU2()
			if err != nil {
				return err
			}
			delta = int(d)
			switch {
			case ft == 247:
				kind = insn.FrameSameLocals1
				err = skipVerificationTypes(r, 1)
			case ft < 251:
				kind = insn.FrameChop
			case ft == 251:
				kind = insn.FrameSame
			case ft < 255:
				kind = insn.FrameAppend
				err = skipVerificationTypes(r, int(ft-251))
			default:
				kind = insn.FrameFull
				err = skipFullFrame(r)
			}
			if err != nil {
				return err
			}
		}
		off += delta + 1
		if off > cr.length {
			return fmt.Errorf("frame offset %d outside code", off)
		}
		cr.frames[off] = insn.NewInsn(insn.OpFrame, insn.FrameImm{Type: kind})
		if _, err := cr.labelAt(off); err != nil {
			return err
		}
	}
	return nil
}

func skipFullFrame(r *binary.Reader) error {
	for i := 0; i < 2; i++ {
		n, err := r.ReadU2()
		if err != nil {
			return err
		}
		if err := skipVerificationTypes(r, int(n)); err != nil {
			return err
		}
	}
	return nil
}

func skipVerificationTypes(r *binary.Reader, n int) error {
	for i := 0; i < n; i++ {
		tag, err := r.ReadU1()
		if err != nil {
			return err
		}
		switch {
		case tag == 7 || tag == 8:
			if err := r.Skip(2); err != nil {
				return err
			}
		case tag > 8:
			return fmt.Errorf("unknown verification type %d", tag)
		}
	}
	return nil
}

func (cr *codeReader) decodeInstructions(code []byte) error {
	r := binary.NewReader(code)
	for r.Len() > 0 {
		off := r.Position()
		b, _ := r.ReadU1()
		op := int(b)
		n, err := cr.decodeOne(r, off, op)
		if err != nil {
			return fmt.Errorf("offset %d (%s): %w", off, insn.OpName(op), err)
		}
		cr.insns[off] = n
	}
	return nil
}

func (cr *codeReader) jump(r *binary.Reader, off int, op int, wide bool) (*insn.Node, error) {
	var rel int
	if wide {
		v, err := r.ReadS4()
		if err != nil {
			return nil, err
		}
		rel = int(v)
	} else {
		v, err := r.ReadS2()
		if err != nil {
			return nil, err
		}
		rel = int(v)
	}
	target, err := cr.labelAt(off + rel)
	if err != nil {
		return nil, err
	}
	return insn.NewInsn(op, insn.JumpImm{Label: target}), nil
}

func (cr *codeReader) decodeOne(r *binary.Reader, off int, op int) (*insn.Node, error) {
	switch {
	case op <= insn.DCONST_1:
		return insn.NewInsn(op, nil), nil
	case op == insn.BIPUSH:
		v, err := r.ReadS1()
		return insn.NewInsn(op, insn.IntImm{Value: int32(v)}), err
	case op == insn.SIPUSH:
		v, err := r.ReadS2()
		return insn.NewInsn(op, insn.IntImm{Value: int32(v)}), err
	case op == insn.LDC:
		idx, err := r.ReadU1()
		if err != nil {
			return nil, err
		}
		return cr.ldc(uint16(idx))
	case op == insn.LDC_W || op == insn.LDC2_W:
		idx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		return cr.ldc(idx)
	case op >= insn.ILOAD && op <= insn.ALOAD, op >= insn.ISTORE && op <= insn.ASTORE, op == insn.RET:
		idx, err := r.ReadU1()
		return insn.NewInsn(op, insn.VarImm{Index: uint16(idx)}), err
	case op >= insn.ILOAD_0 && op <= insn.ALOAD_3:
		k := op - insn.ILOAD_0
		return insn.NewInsn(insn.ILOAD+k/4, insn.VarImm{Index: uint16(k % 4)}), nil
	case op >= insn.ISTORE_0 && op <= insn.ASTORE_3:
		k := op - insn.ISTORE_0
		return insn.NewInsn(insn.ISTORE+k/4, insn.VarImm{Index: uint16(k % 4)}), nil
	case op == insn.IINC:
		idx, err := r.ReadU1()
		if err != nil {
			return nil, err
		}
		incr, err := r.ReadS1()
		return insn.NewInsn(op, insn.IincImm{Index: uint16(idx), Incr: int16(incr)}), err
	case op >= insn.IFEQ && op <= insn.JSR, op == insn.IFNULL, op == insn.IFNONNULL:
		return cr.jump(r, off, op, false)
	case op == insn.GOTO_W:
		return cr.jump(r, off, insn.GOTO, true)
	case op == insn.JSR_W:
		return cr.jump(r, off, insn.JSR, true)
	case op == insn.TABLESWITCH:
		return cr.tableSwitch(r, off)
	case op == insn.LOOKUPSWITCH:
		return cr.lookupSwitch(r, off)
	case op >= insn.GETSTATIC && op <= insn.PUTFIELD:
		idx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		owner, name, desc, _, err := cr.cp.member(idx)
		return insn.NewInsn(op, insn.FieldImm{Owner: owner, Name: name, Desc: desc}), err
	case op >= insn.INVOKEVIRTUAL && op <= insn.INVOKEINTERFACE:
		idx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		if op == insn.INVOKEINTERFACE {
			if err := r.Skip(2); err != nil {
				return nil, err
			}
		}
		owner, name, desc, itf, err := cr.cp.member(idx)
		return insn.NewInsn(op, insn.MethodImm{Owner: owner, Name: name, Desc: desc, Interface: itf}), err
	case op == insn.INVOKEDYNAMIC:
		idx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		if err := r.Skip(2); err != nil {
			return nil, err
		}
		e, err := cr.cp.entry(idx, TagInvokeDynamic)
		if err != nil {
			return nil, err
		}
		name, desc, err := cr.cp.nameAndType(e.b)
		if err != nil {
			return nil, err
		}
		h, args, err := cr.cp.bootstrapArgs(e.a)
		if err != nil {
			return nil, err
		}
		return insn.NewInsn(op, insn.InvokeDynamicImm{Name: name, Desc: desc, Bootstrap: h, Args: args}), nil
	case op == insn.NEW || op == insn.ANEWARRAY || op == insn.CHECKCAST || op == insn.INSTANCEOF:
		idx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		name, err := cr.cp.className(idx)
		return insn.NewInsn(op, insn.TypeImm{Desc: name}), err
	case op == insn.NEWARRAY:
		v, err := r.ReadU1()
		return insn.NewInsn(op, insn.IntImm{Value: int32(v)}), err
	case op == insn.WIDE:
		return cr.wide(r)
	case op == insn.MULTIANEWARRAY:
		idx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		dims, err := r.ReadU1()
		if err != nil {
			return nil, err
		}
		name, err := cr.cp.className(idx)
		return insn.NewInsn(op, insn.MultiANewArrayImm{Desc: name, Dims: dims}), err
	case op > insn.JSR_W:
		return nil, fmt.Errorf("invalid opcode 0x%02x", op)
	default:
		// Remaining opcodes up to monitorexit carry no operands.
		return insn.NewInsn(op, nil), nil
	}
}

func (cr *codeReader) ldc(idx uint16) (*insn.Node, error) {
	v, err := cr.cp.loadable(idx)
	if err != nil {
		return nil, err
	}
	return insn.NewInsn(insn.LDC, insn.LdcImm{Value: v}), nil
}

func (cr *codeReader) wide(r *binary.Reader) (*insn.Node, error) {
	b, err := r.ReadU1()
	if err != nil {
		return nil, err
	}
	op := int(b)
	idx, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	switch {
	case op == insn.IINC:
		incr, err := r.ReadS2()
		return insn.NewInsn(op, insn.IincImm{Index: idx, Incr: incr}), err
	case op >= insn.ILOAD && op <= insn.ALOAD, op >= insn.ISTORE && op <= insn.ASTORE, op == insn.RET:
		return insn.NewInsn(op, insn.VarImm{Index: idx}), nil
	default:
		return nil, fmt.Errorf("invalid wide opcode 0x%02x", op)
	}
}

func switchPadding(r *binary.Reader, off int) error {
	return r.Skip((4 - (off+1)%4) % 4)
}

func (cr *codeReader) tableSwitch(r *binary.Reader, off int) (*insn.Node, error) {
	if err := switchPadding(r, off); err != nil {
		return nil, err
	}
	var hdr [3]int32
	for i := range hdr {
		v, err := r.ReadS4()
		if err != nil {
			return nil, err
		}
		hdr[i] = v
	}
	lo, hi := hdr[1], hdr[2]
	if hi < lo {
		return nil, fmt.Errorf("tableswitch high %d below low %d", hi, lo)
	}
	dflt, err := cr.labelAt(off + int(hdr[0]))
	if err != nil {
		return nil, err
	}
	count := int(int64(hi) - int64(lo) + 1)
	if count > r.Len()/4 {
		return nil, binary.ErrTruncated
	}
	labels := make([]*insn.Node, count)
	for i := range labels {
		rel, err := r.ReadS4()
		if err != nil {
			return nil, err
		}
		if labels[i], err = cr.labelAt(off + int(rel)); err != nil {
			return nil, err
		}
	}
	return insn.NewInsn(insn.TABLESWITCH, insn.TableSwitchImm{Default: dflt, Labels: labels, Min: lo, Max: hi}), nil
}

func (cr *codeReader) lookupSwitch(r *binary.Reader, off int) (*insn.Node, error) {
	if err := switchPadding(r, off); err != nil {
		return nil, err
	}
	rel, err := r.ReadS4()
	if err != nil {
		return nil, err
	}
	dflt, err := cr.labelAt(off + int(rel))
	if err != nil {
		return nil, err
	}
	n, err := r.ReadS4()
	if err != nil {
		return nil, err
	}
	if n < 0 || int(n) > r.Len()/8 {
		return nil, binary.ErrTruncated
	}
	keys := make([]int32, n)
	labels := make([]*insn.Node, n)
	for i := range keys {
		if keys[i], err = r.ReadS4(); err != nil {
			return nil, err
		}
		rel, err := r.ReadS4()
		if err != nil {
			return nil, err
		}
		if labels[i], err = cr.labelAt(off + int(rel)); err != nil {
			return nil, err
		}
	}
	return insn.NewInsn(insn.LOOKUPSWITCH, insn.LookupSwitchImm{Default: dflt, Keys: keys, Labels: labels}), nil
}
