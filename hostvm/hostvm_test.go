package hostvm_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/classmeta/classfile"
	"github.com/wippyai/classmeta/classinfo"
	"github.com/wippyai/classmeta/classpath"
	"github.com/wippyai/classmeta/errors"
	"github.com/wippyai/classmeta/hostvm"
	"github.com/wippyai/classmeta/internal/classtest"
	"github.com/wippyai/classmeta/names"
	"github.com/wippyai/classmeta/typedesc"
)

func source() classpath.Map {
	m := classpath.Map{}
	for _, b := range []*classtest.Builder{
		classtest.Object(),
		classtest.Interface("java/lang/Cloneable"),
		classtest.Interface("java/io/Serializable"),
		classtest.Interface("p/I"),
		classtest.Class("p/A").Constructor().Constructor("I", "Ljava/lang/String;"),
		classtest.Class("p/B").Super("p/A").Implements("p/I").Constructor(),
	} {
		c := b.Build()
		m[c.Name] = b.Bytes()
	}
	return m
}

func TestLoadLinksSupertypes(t *testing.T) {
	vm := hostvm.New(source(), nil)

	assert.False(t, vm.IsLoaded("p.B"))
	b, err := vm.Load("p.B")
	require.NoError(t, err)
	assert.Equal(t, "p/B", b.Name())
	assert.ElementsMatch(t, []string{"java/lang/Object", "p/A", "p/I", "p/B"}, vm.Loaded())

	super, ok := b.Super()
	require.True(t, ok)
	assert.Equal(t, "p/A", super.Name())
	require.Len(t, b.Interfaces(), 1)
	assert.Equal(t, "p/I", b.Interfaces()[0].Name())

	i, err := vm.Load("p/I")
	require.NoError(t, err)
	_, ok = i.Super()
	assert.False(t, ok, "interfaces have no runtime superclass")

	rc, ok := vm.FindLoaded("p.A")
	require.True(t, ok)
	assert.Equal(t, [][]typedesc.Type{{}, {typedesc.IntType, typedesc.ObjectType("java/lang/String")}}, normalize(rc.Constructors()))
}

func normalize(in [][]typedesc.Type) [][]typedesc.Type {
	for i := range in {
		if in[i] == nil {
			in[i] = []typedesc.Type{}
		}
	}
	return in
}

func TestAssignability(t *testing.T) {
	vm := hostvm.New(source(), nil)
	load := func(n string) *hostvm.Class {
		c, err := vm.Load(n)
		require.NoError(t, err)
		return c
	}
	object, a, b, i := load("java/lang/Object"), load("p/A"), load("p/B"), load("p/I")

	tests := []struct {
		target, from *hostvm.Class
		want         bool
	}{
		{a, b, true},
		{i, b, true},
		{object, b, true},
		{object, i, true},
		{b, a, false},
		{a, i, false},
		{b, b, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.target.IsAssignableFrom(tt.from), "%s <- %s", tt.target, tt.from)
	}

	other := hostvm.New(source(), nil)
	foreign, err := other.Load("p/B")
	require.NoError(t, err)
	assert.False(t, a.IsAssignableFrom(foreign))
}

func TestArrays(t *testing.T) {
	vm := hostvm.New(source(), nil)

	ints2, err := vm.Load("[[I")
	require.NoError(t, err)
	assert.True(t, ints2.IsArray())
	comp, ok := ints2.ComponentType()
	require.True(t, ok)
	assert.Equal(t, "[I", comp.Name())
	root, _ := comp.ComponentType()
	assert.Equal(t, "int", root.Name())

	bs, err := vm.ForName("[Lp.B;")
	require.NoError(t, err)
	as, err := vm.Load("[Lp/A;")
	require.NoError(t, err)
	object, _ := vm.Load("java/lang/Object")
	cloneable, _ := vm.Load("java/lang/Cloneable")

	assert.True(t, as.IsAssignableFrom(bs))
	assert.False(t, bs.IsAssignableFrom(as))
	assert.True(t, object.IsAssignableFrom(ints2))
	assert.True(t, cloneable.IsAssignableFrom(ints2))

	longs, err := vm.Load("[J")
	require.NoError(t, err)
	ints, err := vm.Load("[I")
	require.NoError(t, err)
	assert.False(t, ints.IsAssignableFrom(longs))
}

func TestMissingClass(t *testing.T) {
	vm := hostvm.New(source(), nil)
	_, err := vm.ForName("p.Missing")
	assert.True(t, stderrors.Is(err, errors.ErrClassNotFound))

	orphan := classtest.Class("p/Orphan").Super("p/Gone").Bytes()
	_, err = vm.Define(orphan)
	assert.True(t, stderrors.Is(err, errors.ErrClassNotFound))
	assert.False(t, vm.IsLoaded("p/Orphan"))

	_, err = hostvm.New(nil, nil).ClassBytes("p.A")
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestDefineTwice(t *testing.T) {
	vm := hostvm.New(source(), nil)
	data := classtest.Class("q/C").Bytes()
	_, err := vm.Define(data)
	require.NoError(t, err)
	_, err = vm.Define(data)
	assert.True(t, stderrors.Is(err, errors.ErrIllegalState))
}

func TestRenamedClasses(t *testing.T) {
	tbl, _, ok := names.NewTable(map[string]string{"p.A": "runtime.Alpha"})
	require.True(t, ok)
	vm := hostvm.New(source(), &hostvm.Config{Names: names.Static(tbl)})

	b, err := vm.Load("p/B")
	require.NoError(t, err)
	super, _ := b.Super()
	assert.Equal(t, "runtime/Alpha", super.Name())

	_, ok = vm.FindLoaded("p.A")
	assert.False(t, ok)
	_, ok = vm.FindLoaded("runtime.Alpha")
	assert.True(t, ok)

	data, err := vm.ClassBytes("p.A")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestMalformedConstructorDescriptor(t *testing.T) {
	m := source()
	bad := classtest.Class("p/Bad").Method(&classfile.Method{
		Access: classfile.AccPublic,
		Name:   classfile.ConstructorName,
		Desc:   "(Q)V",
	})
	m["p/Bad"] = bad.Bytes()
	vm := hostvm.New(m, nil)

	_, err := vm.Load("p/Bad")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrMalformedInput))
	assert.False(t, vm.IsLoaded("p/Bad"))

	// the thin path reports the same failure for the same bytes
	reg := classinfo.NewRegistry(vm, classinfo.Options{})
	ci, err := reg.Of("p/Bad")
	require.NoError(t, err)
	_, err = ci.ConstructorTypes()
	assert.True(t, stderrors.Is(err, errors.ErrMalformedInput))
}
