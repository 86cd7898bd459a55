package classfile_test

import (
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/wippyai/classmeta/classfile"
	"github.com/wippyai/classmeta/errors"
	"github.com/wippyai/classmeta/insn"
	"github.com/wippyai/classmeta/internal/classtest"
	"github.com/wippyai/classmeta/typedesc"
)

func sampleClass() *classfile.Class {
	start, end, handler, loop, exit := insn.NewLabel(), insn.NewLabel(), insn.NewLabel(), insn.NewLabel(), insn.NewLabel()
	c0, c1, dflt := insn.NewLabel(), insn.NewLabel(), insn.NewLabel()

	body := insn.NewList(
		start,
		insn.NewInsn(insn.OpLine, insn.LineImm{Start: start, Line: 7}),
		insn.NewInsn(insn.ILOAD, insn.VarImm{Index: 1}),
		insn.NewInsn(insn.TABLESWITCH, insn.TableSwitchImm{Min: 0, Max: 1, Default: dflt, Labels: []*insn.Node{c0, c1}}),
		c0,
		insn.NewInsn(insn.LDC, insn.LdcImm{Value: "zero"}),
		insn.NewInsn(insn.ASTORE, insn.VarImm{Index: 300}),
		insn.NewInsn(insn.GOTO, insn.JumpImm{Label: loop}),
		c1,
		insn.NewInsn(insn.LDC, insn.LdcImm{Value: int64(1) << 40}),
		insn.NewInsn(insn.LSTORE, insn.VarImm{Index: 2}),
		dflt,
		loop,
		insn.NewInsn(insn.IINC, insn.IincImm{Index: 1, Incr: 1000}),
		insn.NewInsn(insn.ILOAD, insn.VarImm{Index: 1}),
		insn.NewInsn(insn.LOOKUPSWITCH, insn.LookupSwitchImm{Default: exit, Keys: []int32{5, 10}, Labels: []*insn.Node{loop, exit}}),
		end,
		handler,
		insn.NewInsn(insn.INVOKEINTERFACE, insn.MethodImm{Owner: "a/Sink", Name: "put", Desc: "(JLjava/lang/Object;)V", Interface: true}),
		insn.NewInsn(insn.INVOKEDYNAMIC, insn.InvokeDynamicImm{
			Name: "run", Desc: "()Ljava/lang/Runnable;",
			Bootstrap: insn.Handle{Tag: 6, Owner: "java/lang/invoke/LambdaMetafactory", Name: "metafactory", Desc: "()V"},
			Args:      []any{typedesc.MustParse("()V"), int32(3)},
		}),
		insn.NewInsn(insn.GETSTATIC, insn.FieldImm{Owner: "a/Sample", Name: "COUNT", Desc: "I"}),
		insn.NewInsn(insn.MULTIANEWARRAY, insn.MultiANewArrayImm{Desc: "[[I", Dims: 2}),
		insn.NewInsn(insn.LDC, insn.LdcImm{Value: typedesc.ObjectType("a/Sample")}),
		exit,
		insn.NewInsn(insn.RETURN, nil),
	)

	c := classtest.Class("a/Sample").
		Implements("java/io/Serializable", "a/Marker").
		Annotate(true, classtest.Ann("La/Visible;",
			"b", int8(-3), "c", uint16('x'), "s", int16(-300), "i", int32(42), "z", true,
			"j", int64(-7), "f", float32(1.5), "d", 2.25, "str", "hi",
			"e", classfile.EnumValue{Desc: "La/Color;", Name: "RED"},
			"cls", typedesc.MustParse("[Ljava/lang/String;"),
			"nested", classtest.Ann("La/Inner;", "v", int32(1)),
			"arr", []any{int32(1), int32(2)},
		)).
		Annotate(false, classtest.Ann("La/Hidden;")).
		Field(&classfile.Field{Access: classfile.AccPublic | classfile.AccStatic | classfile.AccFinal, Name: "COUNT", Desc: "I", Value: int32(9)}).
		Field(&classfile.Field{Name: "label", Desc: "Ljava/lang/String;", Signature: "TT;",
			InvisibleAnnotations: []*classfile.Annotation{classtest.Ann("La/Tag;")}}).
		Constructor().
		Method(&classfile.Method{
			Access:             classfile.AccPublic,
			Name:               "run",
			Desc:               "(I)V",
			Exceptions:         []string{"java/io/IOException"},
			Instructions:       body,
			TryCatch:           []classfile.TryCatch{{Start: start, End: end, Handler: handler, Type: "java/lang/Exception"}},
			MaxStack:           4,
			MaxLocals:          301,
			VisibleAnnotations: []*classfile.Annotation{classtest.Ann("La/Tag;")},
		}).
		Build()
	c.SourceFile = "Sample.java"
	c.Signature = "<T:Ljava/lang/Object;>Ljava/lang/Object;"
	return c
}

func mustRoundTrip(t *testing.T, c *classfile.Class, opts classfile.Options) *classfile.Class {
	t.Helper()
	data, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	parsed, err := classfile.Parse(data, opts)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return parsed
}

func TestRoundTripStructure(t *testing.T) {
	parsed := mustRoundTrip(t, sampleClass(), classfile.Options{})

	if parsed.Name != "a/Sample" || parsed.SuperName != "java/lang/Object" {
		t.Errorf("identity = %s extends %s", parsed.Name, parsed.SuperName)
	}
	if !reflect.DeepEqual(parsed.Interfaces, []string{"java/io/Serializable", "a/Marker"}) {
		t.Errorf("interfaces = %v", parsed.Interfaces)
	}
	if parsed.Access != classfile.AccPublic|classfile.AccSuper {
		t.Errorf("access = %#x", parsed.Access)
	}
	if parsed.Major != classfile.DefaultMajor {
		t.Errorf("major = %d", parsed.Major)
	}
	if parsed.SourceFile != "Sample.java" || parsed.Signature == "" {
		t.Errorf("source %q signature %q", parsed.SourceFile, parsed.Signature)
	}
	if len(parsed.Fields) != 2 || parsed.Fields[0].Value != int32(9) || parsed.Fields[1].Signature != "TT;" {
		t.Errorf("fields = %+v", parsed.Fields)
	}
	if !classfile.HasAnnotation(parsed.Fields[1].InvisibleAnnotations, "La/Tag;") {
		t.Error("field annotation lost")
	}
	run := parsed.FindMethodDesc("run", "(I)V")
	if run == nil {
		t.Fatal("run method missing")
	}
	if !reflect.DeepEqual(run.Exceptions, []string{"java/io/IOException"}) {
		t.Errorf("exceptions = %v", run.Exceptions)
	}
	if run.MaxStack != 4 || run.MaxLocals != 301 {
		t.Errorf("max stack/locals = %d/%d", run.MaxStack, run.MaxLocals)
	}
}

func TestRoundTripAnnotations(t *testing.T) {
	parsed := mustRoundTrip(t, sampleClass(), classfile.ThinOptions)

	if len(parsed.VisibleAnnotations) != 1 || len(parsed.InvisibleAnnotations) != 1 {
		t.Fatalf("annotations = %d visible, %d invisible", len(parsed.VisibleAnnotations), len(parsed.InvisibleAnnotations))
	}
	a := parsed.VisibleAnnotations[0]
	want := map[string]any{
		"b":   int8(-3),
		"c":   uint16('x'),
		"s":   int16(-300),
		"i":   int32(42),
		"z":   true,
		"j":   int64(-7),
		"f":   float32(1.5),
		"d":   2.25,
		"str": "hi",
		"e":   classfile.EnumValue{Desc: "La/Color;", Name: "RED"},
		"cls": typedesc.MustParse("[Ljava/lang/String;"),
		"arr": []any{int32(1), int32(2)},
	}
	for k, v := range want {
		got, ok := a.Get(k)
		if !ok {
			t.Errorf("element %s missing", k)
			continue
		}
		if !reflect.DeepEqual(got, v) {
			t.Errorf("element %s = %#v, want %#v", k, got, v)
		}
	}
	nested, _ := a.Get("nested")
	if n, ok := nested.(*classfile.Annotation); !ok || n.Desc != "La/Inner;" {
		t.Errorf("nested = %#v", nested)
	}
	if _, ok := a.Get("absent"); ok {
		t.Error("absent element reported present")
	}
}

func TestRoundTripCode(t *testing.T) {
	orig := sampleClass()
	parsed := mustRoundTrip(t, orig, classfile.Options{})

	want := orig.FindMethod("run").Instructions
	got := parsed.FindMethod("run").Instructions
	if got == nil {
		t.Fatal("instructions not decoded")
	}

	// Compare instructions only; label placement may be merged by the decoder.
	var wantOps, gotOps []*insn.Node
	for n := want.First(); n != nil; n = n.Next() {
		if n.Opcode >= 0 {
			wantOps = append(wantOps, n)
		}
	}
	for n := got.First(); n != nil; n = n.Next() {
		if n.Opcode >= 0 {
			gotOps = append(gotOps, n)
		}
	}
	if len(wantOps) != len(gotOps) {
		t.Fatalf("instruction count = %d, want %d", len(gotOps), len(wantOps))
	}
	for i := range wantOps {
		if !insn.Equal(wantOps[i], gotOps[i], false) {
			t.Errorf("instruction %d: got %s %#v, want %s %#v", i,
				insn.OpName(gotOps[i].Opcode), gotOps[i].Imm, insn.OpName(wantOps[i].Opcode), wantOps[i].Imm)
		}
	}

	line := insn.FindFirstOp(got, insn.OpLine)
	if line == nil || line.Imm.(insn.LineImm).Line != 7 {
		t.Errorf("line marker = %v", line)
	}

	tc := parsed.FindMethod("run").TryCatch
	if len(tc) != 1 || tc[0].Type != "java/lang/Exception" {
		t.Fatalf("try/catch = %+v", tc)
	}
	if got.Index(tc[0].Handler) < 0 || got.Index(tc[0].Start) < 0 {
		t.Error("exception labels are not part of the list")
	}

	// The goto in case 0 targets the label before the iinc.
	gotoNode := insn.FindFirstOp(got, insn.GOTO)
	target := gotoNode.Imm.(insn.JumpImm).Label
	if got.Index(target) < 0 {
		t.Fatal("jump target not in list")
	}
	next := target
	for next != nil && next.Opcode < 0 {
		next = next.Next()
	}
	if next == nil || next.Opcode != insn.IINC {
		t.Errorf("goto lands on %v", next)
	}
}

func TestParseThinSkipsCode(t *testing.T) {
	parsed := mustRoundTrip(t, sampleClass(), classfile.ThinOptions)
	for _, m := range parsed.Methods {
		if m.Instructions != nil {
			t.Errorf("%s: instructions decoded in thin mode", m.Name)
		}
	}
	if parsed.SourceFile != "" {
		t.Errorf("SourceFile = %q in thin mode", parsed.SourceFile)
	}
	if !classfile.HasAnnotation(parsed.FindMethod("run").VisibleAnnotations, "La/Tag;") {
		t.Error("method annotations must survive thin parsing")
	}
}

func TestParseSkipDebug(t *testing.T) {
	parsed := mustRoundTrip(t, sampleClass(), classfile.Options{SkipDebug: true})
	run := parsed.FindMethod("run")
	if run.Instructions == nil {
		t.Fatal("code skipped")
	}
	if insn.FindFirstOp(run.Instructions, insn.OpLine) != nil {
		t.Error("line markers present with SkipDebug")
	}
}

func TestParseMalformed(t *testing.T) {
	good := classtest.Class("a/B").Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte{0xCA, 0xFE, 0xBA, 0xBF}, good[4:]...)},
		{"truncated header", good[:6]},
		{"truncated pool", good[:12]},
		{"truncated body", good[:len(good)-3]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := classfile.ParseThin(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if !stderrors.Is(err, errors.ErrMalformedInput) {
				t.Errorf("error %v is not malformed_input", err)
			}
		})
	}
}

func rawCode(code ...byte) []byte {
	out := []byte{0, 2, 0, 2, 0, 0, 0, byte(len(code))}
	out = append(out, code...)
	return append(out, 0, 0, 0, 0)
}

func TestParseBadOpcode(t *testing.T) {
	data := classtest.Class("a/Bad").Method(&classfile.Method{
		Name:       "m",
		Desc:       "()V",
		Attributes: []classfile.Attribute{{Name: classfile.AttrCode, Data: rawCode(0xff)}},
	}).Bytes()

	if _, err := classfile.ParseThin(data); err != nil {
		t.Fatalf("thin parse must not decode code: %v", err)
	}
	_, err := classfile.ParseFull(data)
	if !stderrors.Is(err, errors.ErrMalformedInput) {
		t.Fatalf("err = %v, want malformed_input", err)
	}
}

func TestParseShortForms(t *testing.T) {
	// iload_0, istore_3, aload_2, wide iinc 1 -2, ireturn
	code := rawCode(0x1a, 0x3e, 0x2c, 0xc4, 0x84, 0x00, 0x01, 0xff, 0xfe, 0xac)
	data := classtest.Class("a/Short").Method(&classfile.Method{
		Access:     classfile.AccStatic,
		Name:       "m",
		Desc:       "(I)I",
		Attributes: []classfile.Attribute{{Name: classfile.AttrCode, Data: code}},
	}).Bytes()

	c, err := classfile.ParseFull(data)
	if err != nil {
		t.Fatal(err)
	}
	l := c.FindMethod("m").Instructions
	wantOps := []int{insn.ILOAD, insn.ISTORE, insn.ALOAD, insn.IINC, insn.IRETURN}
	if !reflect.DeepEqual(l.Opcodes(), wantOps) {
		t.Fatalf("opcodes = %v, want %v", l.Opcodes(), wantOps)
	}
	if v := l.Get(1).Imm.(insn.VarImm); v.Index != 3 {
		t.Errorf("istore_3 slot = %d", v.Index)
	}
	if v := l.Get(2).Imm.(insn.VarImm); v.Index != 2 {
		t.Errorf("aload_2 slot = %d", v.Index)
	}
	if v := l.Get(3).Imm.(insn.IincImm); v.Index != 1 || v.Incr != -2 {
		t.Errorf("wide iinc = %+v", v)
	}

	ret, err := classfile.FindLastReturn(c.FindMethod("m"))
	if err != nil || ret != l.Last() {
		t.Errorf("FindLastReturn = %v, %v", ret, err)
	}
}

func TestFindLastReturnMissing(t *testing.T) {
	m := &classfile.Method{Name: "m", Desc: "()I", Instructions: insn.NewList(insn.NewInsn(insn.RETURN, nil))}
	_, err := classfile.FindLastReturn(m)
	if !stderrors.Is(err, errors.ErrInvalidArgument) {
		t.Fatalf("err = %v, want invalid_argument", err)
	}
}

func TestRootConstructors(t *testing.T) {
	data := classtest.Class("a/Point").
		Constructor().
		Constructor("I", "I").
		DelegatingConstructor([]string{"I"}, []string{"I", "I"}).
		Bytes()

	c, err := classfile.ParseFull(data)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(c.Constructors()); n != 3 {
		t.Fatalf("constructors = %d", n)
	}
	roots := c.RootConstructors()
	if len(roots) != 2 {
		t.Fatalf("root constructors = %d, want 2", len(roots))
	}
	for _, r := range roots {
		if r.Desc == "(I)V" {
			t.Error("delegating constructor reported as root")
		}
	}
}

func TestMembersWithAnnotation(t *testing.T) {
	c := classtest.Class("a/Svc").
		Field(&classfile.Field{Name: "x", Desc: "I", VisibleAnnotations: []*classfile.Annotation{classtest.Ann("La/Inject;")}}).
		Field(&classfile.Field{Name: "y", Desc: "I"}).
		Method(&classfile.Method{Name: "a", Desc: "()V", InvisibleAnnotations: []*classfile.Annotation{classtest.Ann("La/Hook;")}}).
		Method(&classfile.Method{Name: "b", Desc: "()V"}).
		Build()

	if fs := c.FieldsWith("La/Inject;"); len(fs) != 1 || fs[0].Name != "x" {
		t.Errorf("FieldsWith = %v", fs)
	}
	if ms := c.MethodsWith("La/Hook;"); len(ms) != 1 || ms[0].Name != "a" {
		t.Errorf("MethodsWith = %v", ms)
	}
	if _, err := c.RequireMethod("missing", ""); !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("RequireMethod err = %v", err)
	}
	if m, err := c.RequireMethod("b", "()V"); err != nil || m.Name != "b" {
		t.Errorf("RequireMethod = %v, %v", m, err)
	}
}

func TestFindMethodAny(t *testing.T) {
	c := classtest.Class("a/b").
		Method(&classfile.Method{Name: "c", Desc: "(I)V"}).
		Method(&classfile.Method{Name: "tick", Desc: "()V"}).
		Build()

	tests := []struct {
		name  string
		names []string
		desc  string
		want  string
		wdesc string
	}{
		{"readable name", []string{"tick", "c"}, "", "tick", "()V"},
		{"remapped name", []string{"update", "c"}, "", "c", "(I)V"},
		{"descriptor filters", []string{"tick", "c"}, "(I)V", "c", "(I)V"},
		{"none", []string{"update", "d"}, "", "", ""},
		{"descriptor mismatch", []string{"tick"}, "(J)V", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := c.FindMethodAny(tt.names, tt.desc)
			if tt.want == "" {
				if m != nil {
					t.Fatalf("FindMethodAny = %s%s, want nil", m.Name, m.Desc)
				}
				return
			}
			if m == nil || m.Name != tt.want || m.Desc != tt.wdesc {
				t.Fatalf("FindMethodAny = %v, want %s%s", m, tt.want, tt.wdesc)
			}
		})
	}

	if m, err := c.RequireMethodAny([]string{"update", "c"}, "(I)V"); err != nil || m.Name != "c" {
		t.Errorf("RequireMethodAny = %v, %v", m, err)
	}
	_, err := c.RequireMethodAny([]string{"update", "d"}, "")
	if !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("RequireMethodAny err = %v", err)
	}
}

func TestEncodeRejectsFarJump(t *testing.T) {
	target := insn.NewLabel()
	l := insn.NewList(insn.NewInsn(insn.GOTO, insn.JumpImm{Label: target}))
	for i := 0; i < 40000; i++ {
		l.Add(insn.NewInsn(insn.NOP, nil))
	}
	l.Add(target)
	l.Add(insn.NewInsn(insn.RETURN, nil))

	c := classtest.Class("a/Far").Method(&classfile.Method{Name: "m", Desc: "()V", Instructions: l}).Build()
	if _, err := c.Encode(); !stderrors.Is(err, errors.ErrInvalidArgument) {
		t.Fatalf("err = %v, want invalid_argument", err)
	}
}
