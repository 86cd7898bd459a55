package classfile

import (
	"fmt"
	"math"

	"github.com/wippyai/classmeta/classfile/internal/binary"
	"github.com/wippyai/classmeta/errors"
	"github.com/wippyai/classmeta/insn"
	"github.com/wippyai/classmeta/typedesc"
)

// Encode writes c as a class file. The constant pool is rebuilt from scratch and
// code is re-assembled from label positions. Frame markers are not written, so
// the result carries no StackMapTable.
func (c *Class) Encode() ([]byte, error) {
	e := &encoder{pool: newPoolWriter()}
	body, err := e.class(c)
	if err != nil {
		return nil, errors.New(errors.PhaseEncode, errors.KindInvalidArgument).
			Class(c.Name).
			Detail("cannot encode class").
			Cause(err).
			Build()
	}

	w := binary.NewWriter()
	w.U4(Magic)
	minor, major := c.Minor, c.Major
	if major == 0 {
		minor, major = DefaultMinor, DefaultMajor
	}
	w.U2(minor)
	w.U2(major)
	w.U2(e.pool.next)
	w.WriteBytes(e.pool.w.Bytes())
	w.WriteBytes(body)
	return w.Bytes(), nil
}

type encoder struct {
	pool *poolWriter
}

func (e *encoder) class(c *Class) ([]byte, error) {
	w := binary.NewWriter()
	w.U2(c.Access)
	this, err := e.pool.class(c.Name)
	if err != nil {
		return nil, err
	}
	w.U2(this)
	var super uint16
	if c.SuperName != "" {
		if super, err = e.pool.class(c.SuperName); err != nil {
			return nil, err
		}
	}
	w.U2(super)
	if err := e.classList(w, c.Interfaces); err != nil {
		return nil, err
	}

	w.U2(uint16(len(c.Fields)))
	for _, f := range c.Fields {
		if err := e.field(w, f); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	w.U2(uint16(len(c.Methods)))
	for _, m := range c.Methods {
		if err := e.method(w, m); err != nil {
			return nil, fmt.Errorf("method %s%s: %w", m.Name, m.Desc, err)
		}
	}

	attrs := newAttrList()
	if c.SourceFile != "" {
		if err := attrs.utf8(e.pool, AttrSourceFile, c.SourceFile); err != nil {
			return nil, err
		}
	}
	if err := e.common(attrs, c.Signature, c.VisibleAnnotations, c.InvisibleAnnotations); err != nil {
		return nil, err
	}
	// Code was encoded above, so the bootstrap table is complete.
	if len(e.pool.bootstrap) > 0 {
		bw := binary.NewWriter()
		bw.U2(uint16(len(e.pool.bootstrap)))
		for _, b := range e.pool.bootstrap {
			bw.U2(b.handle)
			bw.U2(uint16(len(b.args)))
			for _, a := range b.args {
				bw.U2(a)
			}
		}
		attrs.add(AttrBootstrapMethods, bw.Bytes())
	}
	attrs.raw(c.Attributes)
	if err := attrs.write(w, e.pool); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (e *encoder) classList(w *binary.Writer, names []string) error {
	w.U2(uint16(len(names)))
	for _, n := range names {
		idx, err := e.pool.class(n)
		if err != nil {
			return err
		}
		w.U2(idx)
	}
	return nil
}

func (e *encoder) memberHeader(w *binary.Writer, access uint16, name, desc string) error {
	w.U2(access)
	n, err := e.pool.utf8(name)
	if err != nil {
		return err
	}
	d, err := e.pool.utf8(desc)
	if err != nil {
		return err
	}
	w.U2(n)
	w.U2(d)
	return nil
}

func (e *encoder) field(w *binary.Writer, f *Field) error {
	if err := e.memberHeader(w, f.Access, f.Name, f.Desc); err != nil {
		return err
	}
	attrs := newAttrList()
	if f.Value != nil {
		idx, err := e.constantValue(f.Value)
		if err != nil {
			return err
		}
		aw := binary.NewWriter()
		aw.U2(idx)
		attrs.add(AttrConstantValue, aw.Bytes())
	}
	if err := e.common(attrs, f.Signature, f.VisibleAnnotations, f.InvisibleAnnotations); err != nil {
		return err
	}
	attrs.raw(f.Attributes)
	return attrs.write(w, e.pool)
}

func (e *encoder) constantValue(v any) (uint16, error) {
	switch c := v.(type) {
	case int32, float32, int64, float64, string:
		return e.pool.loadable(c)
	case bool:
		if c {
			return e.pool.loadable(int32(1))
		}
		return e.pool.loadable(int32(0))
	default:
		return 0, fmt.Errorf("unsupported constant value %T", v)
	}
}

func (e *encoder) method(w *binary.Writer, m *Method) error {
	if err := e.memberHeader(w, m.Access, m.Name, m.Desc); err != nil {
		return err
	}
	attrs := newAttrList()
	if m.Instructions != nil {
		code, err := e.code(m)
		if err != nil {
			return err
		}
		attrs.add(AttrCode, code)
	}
	if len(m.Exceptions) > 0 {
		aw := binary.NewWriter()
		if err := e.classList(aw, m.Exceptions); err != nil {
			return err
		}
		attrs.add(AttrExceptions, aw.Bytes())
	}
	if m.HasDefault {
		aw := binary.NewWriter()
		if err := e.elementValue(aw, m.AnnotationDefault); err != nil {
			return err
		}
		attrs.add(AttrAnnotationDefault, aw.Bytes())
	}
	if err := e.common(attrs, m.Signature, m.VisibleAnnotations, m.InvisibleAnnotations); err != nil {
		return err
	}
	attrs.raw(m.Attributes)
	return attrs.write(w, e.pool)
}

// common adds the Signature and annotation attributes shared by classes, fields and methods.
func (e *encoder) common(attrs *attrList, sig string, visible, invisible []*Annotation) error {
	if sig != "" {
		if err := attrs.utf8(e.pool, AttrSignature, sig); err != nil {
			return err
		}
	}
	if len(visible) > 0 {
		data, err := e.annotations(visible)
		if err != nil {
			return err
		}
		attrs.add(AttrRuntimeVisibleAnnotations, data)
	}
	if len(invisible) > 0 {
		data, err := e.annotations(invisible)
		if err != nil {
			return err
		}
		attrs.add(AttrRuntimeInvisibleAnnotations, data)
	}
	return nil
}

func (e *encoder) annotations(list []*Annotation) ([]byte, error) {
	w := binary.NewWriter()
	w.U2(uint16(len(list)))
	for _, a := range list {
		if err := e.annotation(w, a); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func (e *encoder) annotation(w *binary.Writer, a *Annotation) error {
	t, err := e.pool.utf8(a.Desc)
	if err != nil {
		return err
	}
	w.U2(t)
	w.U2(uint16(len(a.Values)))
	for _, p := range a.Values {
		n, err := e.pool.utf8(p.Name)
		if err != nil {
			return err
		}
		w.U2(n)
		if err := e.elementValue(w, p.Value); err != nil {
			return fmt.Errorf("annotation %s element %s: %w", a.Desc, p.Name, err)
		}
	}
	return nil
}

func (e *encoder) elementValue(w *binary.Writer, v any) error {
	var tag byte
	var idx uint16
	var err error
	switch c := v.(type) {
	case int8:
		tag = 'B'
		idx, err = e.pool.number(TagInteger, uint64(uint32(int32(c))))
	case uint16:
		tag = 'C'
		idx, err = e.pool.number(TagInteger, uint64(c))
	case int16:
		tag = 'S'
		idx, err = e.pool.number(TagInteger, uint64(uint32(int32(c))))
	case int32:
		tag = 'I'
		idx, err = e.pool.loadable(c)
	case bool:
		tag = 'Z'
		var b uint64
		if c {
			b = 1
		}
		idx, err = e.pool.number(TagInteger, b)
	case int64:
		tag = 'J'
		idx, err = e.pool.loadable(c)
	case float32:
		tag = 'F'
		idx, err = e.pool.loadable(c)
	case float64:
		tag = 'D'
		idx, err = e.pool.loadable(c)
	case string:
		tag = 's'
		idx, err = e.pool.utf8(c)
	case typedesc.Type:
		tag = 'c'
		idx, err = e.pool.utf8(c.Descriptor())
	case EnumValue:
		t, err := e.pool.utf8(c.Desc)
		if err != nil {
			return err
		}
		n, err := e.pool.utf8(c.Name)
		if err != nil {
			return err
		}
		w.U1('e')
		w.U2(t)
		w.U2(n)
		return nil
	case *Annotation:
		w.U1('@')
		return e.annotation(w, c)
	case []any:
		w.U1('[')
		w.U2(uint16(len(c)))
		for _, item := range c {
			if err := e.elementValue(w, item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported element value %T", v)
	}
	if err != nil {
		return err
	}
	w.U1(tag)
	w.U2(idx)
	return nil
}

// attrList collects attributes before their count is known.
type attrList struct {
	names []string
	data  [][]byte
}

func newAttrList() *attrList { return &attrList{} }

func (a *attrList) add(name string, data []byte) {
	a.names = append(a.names, name)
	a.data = append(a.data, data)
}

// utf8 adds an attribute whose body is a single utf8 constant index.
func (a *attrList) utf8(p *poolWriter, name, v string) error {
	idx, err := p.utf8(v)
	if err != nil {
		return err
	}
	w := binary.NewWriter()
	w.U2(idx)
	a.add(name, w.Bytes())
	return nil
}

func (a *attrList) raw(attrs []Attribute) {
	for _, at := range attrs {
		a.add(at.Name, at.Data)
	}
}

func (a *attrList) write(w *binary.Writer, p *poolWriter) error {
	w.U2(uint16(len(a.names)))
	for i, name := range a.names {
		n, err := p.utf8(name)
		if err != nil {
			return err
		}
		w.U2(n)
		w.U4(uint32(len(a.data[i])))
		w.WriteBytes(a.data[i])
	}
	return nil
}

// code assembles the Code attribute in two passes: sizes and offsets, then bytes.
func (e *encoder) code(m *Method) ([]byte, error) {
	offsets := make(map[*insn.Node]int)
	pos := 0
	for n := m.Instructions.First(); n != nil; n = n.Next() {
		if n.Opcode == insn.OpLabel {
			offsets[n] = pos
			continue
		}
		size, err := e.insnSize(n, pos)
		if err != nil {
			return nil, fmt.Errorf("%s at %d: %w", insn.OpName(n.Opcode), pos, err)
		}
		pos += size
	}
	if pos > math.MaxUint16 {
		return nil, fmt.Errorf("code of %d bytes too long", pos)
	}

	cw := binary.NewWriter()
	lines := binary.NewWriter()
	lineCount := 0
	for n := m.Instructions.First(); n != nil; n = n.Next() {
		switch n.Opcode {
		case insn.OpLabel, insn.OpFrame:
			continue
		case insn.OpLine:
			ln, ok := n.Imm.(insn.LineImm)
			if !ok {
				return nil, fmt.Errorf("line marker without LineImm")
			}
			start, ok := offsets[ln.Start]
			if !ok {
				return nil, fmt.Errorf("line %d starts at a label outside the method", ln.Line)
			}
			lines.U2(uint16(start))
			lines.U2(ln.Line)
			lineCount++
			continue
		}
		if err := e.writeInsn(cw, n, cw.Len(), offsets); err != nil {
			return nil, fmt.Errorf("%s at %d: %w", insn.OpName(n.Opcode), cw.Len(), err)
		}
	}

	w := binary.NewWriter()
	w.U2(m.MaxStack)
	w.U2(m.MaxLocals)
	w.U4(uint32(cw.Len()))
	w.WriteBytes(cw.Bytes())

	w.U2(uint16(len(m.TryCatch)))
	for _, tc := range m.TryCatch {
		for _, lb := range []*insn.Node{tc.Start, tc.End, tc.Handler} {
			off, ok := offsets[lb]
			if !ok {
				return nil, fmt.Errorf("exception table label outside the method")
			}
			w.U2(uint16(off))
		}
		var t uint16
		if tc.Type != "" {
			var err error
			if t, err = e.pool.class(tc.Type); err != nil {
				return nil, err
			}
		}
		w.U2(t)
	}

	attrs := newAttrList()
	if lineCount > 0 {
		lw := binary.NewWriter()
		lw.U2(uint16(lineCount))
		lw.WriteBytes(lines.Bytes())
		attrs.add(AttrLineNumberTable, lw.Bytes())
	}
	if err := attrs.write(w, e.pool); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func payload[T any](n *insn.Node) (T, error) {
	v, ok := n.Imm.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("payload %T, want %T", n.Imm, zero)
	}
	return v, nil
}

func padding(pos int) int { return (4 - (pos+1)%4) % 4 }

func (e *encoder) insnSize(n *insn.Node, pos int) (int, error) {
	switch n.Kind() {
	case insn.KindLine, insn.KindFrame:
		return 0, nil
	case insn.KindInsn:
		return 1, nil
	case insn.KindInt:
		if n.Opcode == insn.SIPUSH {
			return 3, nil
		}
		return 2, nil
	case insn.KindVar:
		v, err := payload[insn.VarImm](n)
		if err != nil {
			return 0, err
		}
		switch {
		case v.Index < 4 && n.Opcode != insn.RET:
			return 1, nil
		case v.Index <= math.MaxUint8:
			return 2, nil
		}
		return 4, nil
	case insn.KindIinc:
		v, err := payload[insn.IincImm](n)
		if err != nil {
			return 0, err
		}
		if v.Index <= math.MaxUint8 && v.Incr >= math.MinInt8 && v.Incr <= math.MaxInt8 {
			return 3, nil
		}
		return 6, nil
	case insn.KindLdc:
		v, err := payload[insn.LdcImm](n)
		if err != nil {
			return 0, err
		}
		idx, err := e.pool.loadable(v.Value)
		if err != nil {
			return 0, err
		}
		if !isWide(v.Value) && idx <= math.MaxUint8 {
			return 2, nil
		}
		return 3, nil
	case insn.KindType, insn.KindField, insn.KindJump:
		return 3, nil
	case insn.KindMethod:
		if n.Opcode == insn.INVOKEINTERFACE {
			return 5, nil
		}
		return 3, nil
	case insn.KindInvokeDynamic:
		return 5, nil
	case insn.KindMultiANewArray:
		return 4, nil
	case insn.KindTableSwitch:
		v, err := payload[insn.TableSwitchImm](n)
		if err != nil {
			return 0, err
		}
		return 1 + padding(pos) + 12 + 4*len(v.Labels), nil
	case insn.KindLookupSwitch:
		v, err := payload[insn.LookupSwitchImm](n)
		if err != nil {
			return 0, err
		}
		return 1 + padding(pos) + 8 + 8*len(v.Keys), nil
	}
	return 0, fmt.Errorf("unknown instruction kind")
}

func labelOffset(offsets map[*insn.Node]int, lb *insn.Node, pos int) (int, error) {
	off, ok := offsets[lb]
	if !ok {
		return 0, fmt.Errorf("branch target is not a label of this method")
	}
	return off - pos, nil
}

func (e *encoder) writeInsn(w *binary.Writer, n *insn.Node, pos int, offsets map[*insn.Node]int) error {
	op := n.Opcode
	switch n.Kind() {
	case insn.KindInsn:
		w.U1(byte(op))
	case insn.KindInt:
		v, err := payload[insn.IntImm](n)
		if err != nil {
			return err
		}
		w.U1(byte(op))
		if op == insn.SIPUSH {
			w.U2(uint16(int16(v.Value)))
		} else {
			w.U1(byte(v.Value))
		}
	case insn.KindVar:
		v, _ := payload[insn.VarImm](n)
		switch {
		case v.Index < 4 && op >= insn.ILOAD && op <= insn.ALOAD:
			w.U1(byte(insn.ILOAD_0 + (op-insn.ILOAD)*4 + int(v.Index)))
		case v.Index < 4 && op >= insn.ISTORE && op <= insn.ASTORE:
			w.U1(byte(insn.ISTORE_0 + (op-insn.ISTORE)*4 + int(v.Index)))
		case v.Index <= math.MaxUint8:
			w.U1(byte(op))
			w.U1(byte(v.Index))
		default:
			w.U1(insn.WIDE)
			w.U1(byte(op))
			w.U2(v.Index)
		}
	case insn.KindIinc:
		v, _ := payload[insn.IincImm](n)
		if v.Index <= math.MaxUint8 && v.Incr >= math.MinInt8 && v.Incr <= math.MaxInt8 {
			w.U1(insn.IINC)
			w.U1(byte(v.Index))
			w.U1(byte(int8(v.Incr)))
		} else {
			w.U1(insn.WIDE)
			w.U1(insn.IINC)
			w.U2(v.Index)
			w.U2(uint16(v.Incr))
		}
	case insn.KindLdc:
		v, _ := payload[insn.LdcImm](n)
		idx, err := e.pool.loadable(v.Value)
		if err != nil {
			return err
		}
		switch {
		case isWide(v.Value):
			w.U1(insn.LDC2_W)
			w.U2(idx)
		case idx <= math.MaxUint8:
			w.U1(insn.LDC)
			w.U1(byte(idx))
		default:
			w.U1(insn.LDC_W)
			w.U2(idx)
		}
	case insn.KindType:
		v, err := payload[insn.TypeImm](n)
		if err != nil {
			return err
		}
		idx, err := e.pool.class(v.Desc)
		if err != nil {
			return err
		}
		w.U1(byte(op))
		w.U2(idx)
	case insn.KindField:
		v, err := payload[insn.FieldImm](n)
		if err != nil {
			return err
		}
		idx, err := e.pool.member(TagFieldref, v.Owner, v.Name, v.Desc)
		if err != nil {
			return err
		}
		w.U1(byte(op))
		w.U2(idx)
	case insn.KindMethod:
		v, err := payload[insn.MethodImm](n)
		if err != nil {
			return err
		}
		tag := TagMethodref
		if v.Interface || op == insn.INVOKEINTERFACE {
			tag = TagInterfaceMethodref
		}
		idx, err := e.pool.member(tag, v.Owner, v.Name, v.Desc)
		if err != nil {
			return err
		}
		w.U1(byte(op))
		w.U2(idx)
		if op == insn.INVOKEINTERFACE {
			mt, err := typedesc.Parse(v.Desc)
			if err != nil {
				return err
			}
			count := 1
			for _, a := range mt.ArgumentTypes() {
				count += a.Size()
			}
			w.U1(byte(count))
			w.U1(0)
		}
	case insn.KindInvokeDynamic:
		v, err := payload[insn.InvokeDynamicImm](n)
		if err != nil {
			return err
		}
		idx, err := e.pool.dynamic(TagInvokeDynamic, v.Name, v.Desc, v.Bootstrap, v.Args)
		if err != nil {
			return err
		}
		w.U1(insn.INVOKEDYNAMIC)
		w.U2(idx)
		w.U2(0)
	case insn.KindJump:
		v, err := payload[insn.JumpImm](n)
		if err != nil {
			return err
		}
		rel, err := labelOffset(offsets, v.Label, pos)
		if err != nil {
			return err
		}
		if rel < math.MinInt16 || rel > math.MaxInt16 {
			return errors.InvalidArgument(errors.PhaseEncode, fmt.Sprintf("jump offset %d exceeds 16 bits", rel))
		}
		w.U1(byte(op))
		w.U2(uint16(int16(rel)))
	case insn.KindTableSwitch:
		v, _ := payload[insn.TableSwitchImm](n)
		if int64(v.Max)-int64(v.Min)+1 != int64(len(v.Labels)) {
			return fmt.Errorf("tableswitch range %d..%d does not match %d labels", v.Min, v.Max, len(v.Labels))
		}
		w.U1(insn.TABLESWITCH)
		w.WriteBytes(make([]byte, padding(pos)))
		if err := writeTarget(w, offsets, v.Default, pos); err != nil {
			return err
		}
		w.U4(uint32(v.Min))
		w.U4(uint32(v.Max))
		for _, lb := range v.Labels {
			if err := writeTarget(w, offsets, lb, pos); err != nil {
				return err
			}
		}
	case insn.KindLookupSwitch:
		v, _ := payload[insn.LookupSwitchImm](n)
		if len(v.Keys) != len(v.Labels) {
			return fmt.Errorf("lookupswitch has %d keys and %d labels", len(v.Keys), len(v.Labels))
		}
		w.U1(insn.LOOKUPSWITCH)
		w.WriteBytes(make([]byte, padding(pos)))
		if err := writeTarget(w, offsets, v.Default, pos); err != nil {
			return err
		}
		w.U4(uint32(len(v.Keys)))
		for i, k := range v.Keys {
			w.U4(uint32(k))
			if err := writeTarget(w, offsets, v.Labels[i], pos); err != nil {
				return err
			}
		}
	case insn.KindMultiANewArray:
		v, err := payload[insn.MultiANewArrayImm](n)
		if err != nil {
			return err
		}
		idx, err := e.pool.class(v.Desc)
		if err != nil {
			return err
		}
		w.U1(insn.MULTIANEWARRAY)
		w.U2(idx)
		w.U1(v.Dims)
	default:
		return fmt.Errorf("unexpected node kind")
	}
	return nil
}

func writeTarget(w *binary.Writer, offsets map[*insn.Node]int, lb *insn.Node, pos int) error {
	rel, err := labelOffset(offsets, lb, pos)
	if err != nil {
		return err
	}
	w.U4(uint32(int32(rel)))
	return nil
}
