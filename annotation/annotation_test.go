package annotation_test

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/classmeta/annotation"
	"github.com/wippyai/classmeta/classfile"
	"github.com/wippyai/classmeta/classinfo"
	"github.com/wippyai/classmeta/classpath"
	"github.com/wippyai/classmeta/errors"
	"github.com/wippyai/classmeta/hostvm"
	"github.com/wippyai/classmeta/internal/classtest"
)

const (
	markerDesc  = "Lp/Marker;"
	visibleDesc = "Lp/Visible;"
	sourceDesc  = "Lp/Source;"
	fieldDesc   = "Lp/FieldOnly;"
)

func fixture(t *testing.T) (*annotation.Resolver, *classinfo.Registry, classpath.Map) {
	t.Helper()
	m := classpath.Map{}
	put := func(b *classtest.Builder) {
		m[b.Build().Name] = b.Bytes()
	}
	put(classtest.Object())
	put(classtest.Interface(classtest.AnnotationName))
	put(classtest.AnnotationType{
		Name:      "p/Marker",
		Retention: "CLASS",
		Targets:   []string{"TYPE"},
		Inherited: true,
		Elements: []classtest.Element{
			{Name: "value", Desc: "Ljava/lang/String;", Default: "none", HasDefault: true},
			{Name: "level", Desc: "I"},
		},
	}.Build())
	put(classtest.AnnotationType{Name: "p/Visible", Retention: "RUNTIME"}.Build())
	put(classtest.AnnotationType{Name: "p/Source", Retention: "SOURCE"}.Build())
	put(classtest.AnnotationType{Name: "p/FieldOnly", Retention: "RUNTIME", Targets: []string{"FIELD"}}.Build())

	put(classtest.Class("p/Grand").Annotate(false, classtest.Ann(markerDesc, "value", "grand")))
	put(classtest.Class("p/Parent").Super("p/Grand"))
	put(classtest.Class("p/Kid").Super("p/Parent").
		Annotate(true, classtest.Ann(visibleDesc)).
		Field(&classfile.Field{
			Name: "f", Desc: "I", Access: classfile.AccPrivate,
			VisibleAnnotations: []*classfile.Annotation{classtest.Ann(fieldDesc)},
		}).
		Field(&classfile.Field{Name: "g", Desc: "I"}).
		Constructor())

	reg := classinfo.NewRegistry(hostvm.New(m, nil), classinfo.Options{})
	return annotation.NewResolver(reg), reg, m
}

func record(t *testing.T, reg *classinfo.Registry, name string) *classfile.Class {
	t.Helper()
	ci, err := reg.Of(name)
	require.NoError(t, err)
	rec, err := ci.Record()
	require.NoError(t, err)
	return rec
}

func TestKindFromClass(t *testing.T) {
	r, reg, _ := fixture(t)

	k, err := r.Kind(markerDesc)
	require.NoError(t, err)
	assert.Equal(t, markerDesc, k.Desc)
	assert.Equal(t, annotation.Class, k.Retention)
	assert.Equal(t, []annotation.Target{annotation.TargetType}, k.Targets)
	assert.True(t, k.Inherited)
	assert.Equal(t, map[string]any{"value": "none"}, k.Defaults)

	v, err := r.Kind(visibleDesc)
	require.NoError(t, err)
	assert.Equal(t, annotation.Runtime, v.Retention)
	assert.Nil(t, v.Targets)
	assert.False(t, v.Inherited)

	_, err = annotation.KindFromClass(record(t, reg, "p/Grand"))
	assert.True(t, stderrors.Is(err, errors.ErrInvalidArgument))

	_, err = r.Kind("Lp/Missing;")
	assert.True(t, stderrors.Is(err, errors.ErrClassNotFound))
}

func TestDefaultRetentionIsClass(t *testing.T) {
	rec := classtest.AnnotationType{Name: "p/Plain"}.Build().Build()
	k, err := annotation.KindFromClass(rec)
	require.NoError(t, err)
	assert.Equal(t, annotation.Class, k.Retention)
	assert.True(t, k.Applies(annotation.TargetMethod))
}

func TestInheritedWalksTwoLinks(t *testing.T) {
	r, reg, _ := fixture(t)
	k, err := r.Kind(markerDesc)
	require.NoError(t, err)
	kid := record(t, reg, "p/Kid")

	a, err := r.FindOnClass(kid, k, annotation.Options{Inherited: true})
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "grand", annotation.Property(a, "value", k, "fallback"))

	a, err = r.FindOnClass(kid, k, annotation.Options{})
	require.NoError(t, err)
	assert.Nil(t, a, "no walk without the option")

	ok, err := r.HasOnClass(record(t, reg, "p/Grand"), k, annotation.Options{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNonInheritedKindStopsLocally(t *testing.T) {
	r, reg, _ := fixture(t)
	k, err := r.Kind(markerDesc)
	require.NoError(t, err)
	k.Inherited = false

	a, err := r.FindOnClass(record(t, reg, "p/Kid"), k, annotation.Options{Inherited: true})
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestChainExhausted(t *testing.T) {
	r, reg, _ := fixture(t)
	k, err := r.Kind(markerDesc)
	require.NoError(t, err)

	a, err := r.FindOnClass(record(t, reg, "p/Visible"), k, annotation.Options{Inherited: true})
	require.NoError(t, err)
	assert.Nil(t, a)

	other := classtest.Class("p/Lonely").Build()
	a, err = r.FindOnClass(other, k, annotation.Options{Inherited: true})
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestMissingSuperclassFails(t *testing.T) {
	r, _, _ := fixture(t)
	k, err := r.Kind(markerDesc)
	require.NoError(t, err)

	orphan := classtest.Class("p/Orphan").Super("p/Gone").Build()
	_, err = r.FindOnClass(orphan, k, annotation.Options{Inherited: true})
	assert.True(t, stderrors.Is(err, errors.ErrClassNotFound))
}

func TestRetentionSelectsList(t *testing.T) {
	r, reg, _ := fixture(t)
	kid := record(t, reg, "p/Kid")

	visible, err := r.Kind(visibleDesc)
	require.NoError(t, err)
	ok, err := r.HasOnClass(kid, visible, annotation.Options{})
	require.NoError(t, err)
	assert.True(t, ok)

	visible.Retention = annotation.Class
	ok, err = r.HasOnClass(kid, visible, annotation.Options{})
	require.NoError(t, err)
	assert.False(t, ok, "class retention reads the invisible list")
}

func TestSourceRetentionRejected(t *testing.T) {
	r, reg, _ := fixture(t)
	k, err := r.Kind(sourceDesc)
	require.NoError(t, err)
	kid := record(t, reg, "p/Kid")

	_, err = r.FindOnClass(kid, k, annotation.Options{})
	assert.True(t, stderrors.Is(err, errors.ErrUnsupportedRetention))
	_, err = r.FindOnField(kid.Fields[0], k)
	assert.True(t, stderrors.Is(err, errors.ErrUnsupportedRetention))
	_, err = r.FindOnMethod(kid.Methods[0], k)
	assert.True(t, stderrors.Is(err, errors.ErrUnsupportedRetention))
}

func TestTargetMismatchIsNotFound(t *testing.T) {
	r, reg, _ := fixture(t)
	kid := record(t, reg, "p/Kid")
	fieldOnly, err := r.Kind(fieldDesc)
	require.NoError(t, err)

	a, err := r.FindOnClass(kid, fieldOnly, annotation.Options{})
	require.NoError(t, err)
	assert.Nil(t, a)
	a, err = r.FindOnMethod(kid.Methods[0], fieldOnly)
	require.NoError(t, err)
	assert.Nil(t, a)

	fields, err := r.FieldsWith(kid, fieldOnly)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "f", fields[0].Name)

	methods, err := r.MethodsWith(kid, fieldOnly)
	require.NoError(t, err)
	assert.Empty(t, methods)
}

func TestProperty(t *testing.T) {
	k := annotation.Kind{Desc: markerDesc, Defaults: map[string]any{"value": "dflt"}}
	explicit := classtest.Ann(markerDesc, "value", "set")

	tests := []struct {
		ann  *classfile.Annotation
		key  string
		want any
	}{
		{explicit, "value", "set"},
		{classtest.Ann(markerDesc), "value", "dflt"},
		{nil, "value", "dflt"},
		{explicit, "level", int32(7)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, annotation.Property(tt.ann, tt.key, k, int32(7)))
	}
}

func TestNoClassResolver(t *testing.T) {
	r := annotation.NewResolver(nil)
	_, err := r.Kind(markerDesc)
	assert.True(t, stderrors.Is(err, errors.ErrIllegalState))

	k := annotation.Kind{Desc: markerDesc, Inherited: true}
	_, err = r.FindOnClass(classtest.Class("p/X").Build(), k, annotation.Options{Inherited: true})
	assert.True(t, stderrors.Is(err, errors.ErrIllegalState))
}

func TestRetentionNames(t *testing.T) {
	for _, r := range []annotation.Retention{annotation.Class, annotation.Source, annotation.Runtime} {
		got, ok := annotation.ParseRetention(r.String())
		assert.True(t, ok)
		assert.Equal(t, r, got)
	}
	_, ok := annotation.ParseRetention("NEVER")
	assert.False(t, ok)
}

// nativeHost hides the class files of platform classes, which the host can
// still load.
type nativeHost struct {
	*hostvm.VM
}

func (h nativeHost) ClassBytes(dotted string) ([]byte, error) {
	if strings.HasPrefix(dotted, "java.") {
		return nil, errors.NotFound(errors.PhaseLoad, "class file", dotted)
	}
	return h.VM.ClassBytes(dotted)
}

func TestInheritedWalkStopsAtPlatformClasses(t *testing.T) {
	const tracedDesc = "Lapp/Traced;"
	m := classpath.Map{}
	for _, b := range []*classtest.Builder{
		classtest.Object(),
		classtest.Class("app/Base"),
		classtest.Class("app/Child").Super("app/Base"),
		classtest.Class("app/Tagged").Annotate(true, classtest.Ann(tracedDesc)),
		classtest.Class("app/Middle").Super("app/Tagged"),
		classtest.Class("app/Leaf").Super("app/Middle"),
		classtest.Class("java/util/AbstractList").Access(classfile.AccPublic | classfile.AccAbstract),
		classtest.Class("app/Items").Super("java/util/AbstractList"),
	} {
		m[b.Build().Name] = b.Bytes()
	}
	vm := hostvm.New(m, nil)
	reg := classinfo.NewRegistry(nativeHost{vm}, classinfo.Options{})
	r := annotation.NewResolver(reg)
	kind := annotation.Kind{Desc: tracedDesc, Retention: annotation.Runtime, Inherited: true}

	a, err := r.FindOnClass(record(t, reg, "app/Child"), kind, annotation.Options{Inherited: true})
	require.NoError(t, err)
	assert.Nil(t, a)

	// a platform superclass is loaded natively and has no class file to read
	a, err = r.FindOnClass(record(t, reg, "app/Items"), kind, annotation.Options{Inherited: true})
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.True(t, vm.IsLoaded("java/util/AbstractList"))

	a, err = r.FindOnClass(record(t, reg, "app/Leaf"), kind, annotation.Options{Inherited: true})
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, tracedDesc, a.Desc)
}
