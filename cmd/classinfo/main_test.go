package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/classmeta/classfile"
	"github.com/wippyai/classmeta/internal/classtest"
)

func writeClasses(t *testing.T, dir string, builders ...*classtest.Builder) {
	t.Helper()
	for _, b := range builders {
		path := filepath.Join(dir, filepath.FromSlash(b.Build().Name)+".class")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	}
}

func writeJar(t *testing.T, path string, builders ...*classtest.Builder) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	for _, b := range builders {
		w, err := zw.Create(b.Build().Name + ".class")
		require.NoError(t, err)
		_, err = w.Write(b.Bytes())
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

// fixture lays out a directory of application classes and a jar holding
// the platform classes.
func fixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	classes := filepath.Join(dir, "classes")
	writeClasses(t, classes,
		classtest.Interface("p/I"),
		classtest.Class("p/A").Constructor().Constructor("I", "Ljava/lang/String;"),
		classtest.Class("p/B").Super("p/A").Implements("p/I").Constructor().
			Annotate(false, classtest.Ann("Lp/Marker;", "value", "b")),
		classtest.Class("p/C").Super("p/B"),
		classtest.AnnotationType{
			Name:      "p/Marker",
			Retention: "CLASS",
			Targets:   []string{"TYPE"},
			Inherited: true,
			Elements: []classtest.Element{
				{Name: "value", Desc: "Ljava/lang/String;", Default: "none", HasDefault: true},
				{Name: "level", Desc: "I", Default: int32(3), HasDefault: true},
			},
		}.Build(),
	)
	writeJar(t, filepath.Join(dir, "rt.jar"),
		classtest.Object(),
		classtest.Interface("java/lang/Cloneable"),
		classtest.Interface("java/io/Serializable"),
		classtest.Interface(classtest.AnnotationName),
	)
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func classpathFlag(dir string) string {
	return filepath.Join(dir, "classes") + string(os.PathListSeparator) + filepath.Join(dir, "rt.jar")
}

func TestInspectText(t *testing.T) {
	dir := fixture(t)
	out, err := run(t, "inspect", "-c", classpathFlag(dir), "p.B")
	require.NoError(t, err)

	assert.Contains(t, out, "p.B")
	assert.Contains(t, out, "parsed")
	assert.Contains(t, out, "p.A")
	assert.Contains(t, out, "p.I")
	assert.Contains(t, out, "()")
}

func TestInspectJSON(t *testing.T) {
	dir := fixture(t)
	out, err := run(t, "inspect", "-c", classpathFlag(dir), "-f", "json", "--supers", "p/A")
	require.NoError(t, err)

	var r ClassReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, "p.A", r.Name)
	assert.Equal(t, "java.lang.Object", r.Super)
	assert.Equal(t, []string{"()", "(int, java.lang.String)"}, r.Constructors)
	assert.Equal(t, []string{"java.lang.Object"}, r.Supers)
	assert.Contains(t, r.Modifiers, "public")
}

func TestInspectArrayAndPrimitive(t *testing.T) {
	dir := fixture(t)

	out, err := run(t, "inspect", "-c", classpathFlag(dir), "-f", "json", "int")
	require.NoError(t, err)
	var prim ClassReport
	require.NoError(t, json.Unmarshal([]byte(out), &prim))
	assert.Equal(t, "primitive", prim.Variant)

	out, err = run(t, "inspect", "-c", classpathFlag(dir), "-f", "json", "[[Lp/A;")
	require.NoError(t, err)
	var arr ClassReport
	require.NoError(t, json.Unmarshal([]byte(out), &arr))
	assert.Equal(t, 2, arr.Dimensions)
	assert.Equal(t, "p.A[]", arr.Component)
}

func TestSupers(t *testing.T) {
	dir := fixture(t)
	out, err := run(t, "supers", "-c", classpathFlag(dir), "-f", "json", "p.C")
	require.NoError(t, err)

	var supers []string
	require.NoError(t, json.Unmarshal([]byte(out), &supers))
	assert.Equal(t, []string{"java.lang.Object", "p.A", "p.B", "p.I"}, supers)
}

func TestAssignable(t *testing.T) {
	dir := fixture(t)
	cp := classpathFlag(dir)

	out, err := run(t, "assignable", "-c", cp, "p.I", "p.C")
	require.NoError(t, err)
	assert.Contains(t, out, "p.I is assignable from p.C")

	out, err = run(t, "assignable", "-c", cp, "p.C", "p.A")
	require.NoError(t, err)
	assert.Contains(t, out, "is not assignable")
}

func TestAssignableCBOR(t *testing.T) {
	dir := fixture(t)
	out, err := run(t, "assignable", "-c", classpathFlag(dir), "-f", "cbor", "p.A", "p.B")
	require.NoError(t, err)

	var r AssignableReport
	require.NoError(t, cbor.Unmarshal([]byte(out), &r))
	assert.Equal(t, AssignableReport{Target: "p.A", Source: "p.B", Assignable: true}, r)
}

func TestAnnotationsFindInherited(t *testing.T) {
	dir := fixture(t)
	cp := classpathFlag(dir)

	out, err := run(t, "annotations", "-c", cp, "-f", "json", "--find", "p.Marker", "p.C")
	require.NoError(t, err)
	var direct []AnnotationReport
	require.NoError(t, json.Unmarshal([]byte(out), &direct))
	assert.Empty(t, direct)

	out, err = run(t, "annotations", "-c", cp, "-f", "json", "--find", "p.Marker", "--inherited", "p.C")
	require.NoError(t, err)
	var inherited []AnnotationReport
	require.NoError(t, json.Unmarshal([]byte(out), &inherited))
	require.Len(t, inherited, 1)
	assert.Equal(t, "Lp/Marker;", inherited[0].Desc)
	assert.Equal(t, "CLASS", inherited[0].Retention)
	assert.True(t, inherited[0].Inherited)
	assert.Equal(t, `"b"`, inherited[0].Values["value"])
	assert.Equal(t, "3 (default)", inherited[0].Values["level"])
}

func TestAnnotationsList(t *testing.T) {
	dir := fixture(t)
	out, err := run(t, "annotations", "-c", classpathFlag(dir), "p.B")
	require.NoError(t, err)
	assert.Contains(t, out, "class @p.Marker [class]")
	assert.Contains(t, out, `value = "b"`)
}

func TestEnvironmentConfig(t *testing.T) {
	dir := fixture(t)
	t.Setenv("CLASSINFO_CLASSPATH", classpathFlag(dir))
	t.Setenv("CLASSINFO_FORMAT", "json")

	out, err := run(t, "supers", "p.B")
	require.NoError(t, err)
	var supers []string
	require.NoError(t, json.Unmarshal([]byte(out), &supers))
	assert.Equal(t, []string{"java.lang.Object", "p.A", "p.I"}, supers)
}

func TestConfigFile(t *testing.T) {
	dir := fixture(t)
	cfgPath := filepath.Join(dir, "classinfo.yaml")
	content := "classpath:\n  - " + filepath.Join(dir, "classes") + "\n  - " + filepath.Join(dir, "rt.jar") + "\nformat: json\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	out, err := run(t, "inspect", "--config", cfgPath, "p.I")
	require.NoError(t, err)
	var r ClassReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Contains(t, r.Modifiers, "interface")
}

func TestBadFormat(t *testing.T) {
	dir := fixture(t)
	_, err := run(t, "inspect", "-c", classpathFlag(dir), "-f", "xml", "p.A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestMissingClass(t *testing.T) {
	dir := fixture(t)
	_, err := run(t, "inspect", "-c", classpathFlag(dir), "p.Nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p.Nope")
}

func TestModifiers(t *testing.T) {
	got := modifiers(classfile.AccPublic | classfile.AccFinal | classfile.AccEnum)
	assert.Equal(t, []string{"public", "final", "enum"}, got)
}

func TestAnnotationDesc(t *testing.T) {
	assert.Equal(t, "Lp/Marker;", annotationDesc("p.Marker"))
	assert.Equal(t, "Lp/Marker;", annotationDesc("p/Marker"))
	assert.Equal(t, "Lp/Marker;", annotationDesc("Lp/Marker;"))
}
