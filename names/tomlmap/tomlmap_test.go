package tomlmap

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/classmeta/errors"
)

const sample = `
[classes]
"a.b" = "net.example.Widget"
"a/c" = "net/example/Gadget"

[packages]
"x" = "net.example.internal"
"x.y" = "net.example.deep"
`

func TestParseAndRemap(t *testing.T) {
	r, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Len() != 4 {
		t.Errorf("Len = %d", r.Len())
	}

	tests := []struct {
		in, mapped string
	}{
		{"a.b", "net.example.Widget"},
		{"a.c", "net.example.Gadget"},
		{"x.Foo", "net.example.internal.Foo"},
		{"x.y.Bar", "net.example.deep.Bar"},
		{"x.z.Baz", "net.example.internal.z.Baz"},
		{"xx.Foo", "xx.Foo"},
		{"java.lang.String", "java.lang.String"},
	}
	for _, tt := range tests {
		if got := r.Map(tt.in); got != tt.mapped {
			t.Errorf("Map(%q) = %q, want %q", tt.in, got, tt.mapped)
		}
		if got := r.Unmap(tt.mapped); got != tt.in {
			t.Errorf("Unmap(%q) = %q, want %q", tt.mapped, got, tt.in)
		}
	}
}

func TestDuplicateTargets(t *testing.T) {
	_, err := New(Mapping{Classes: map[string]string{"a.A": "z.Z", "b.B": "z.Z"}})
	if !stderrors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("class duplicate: err = %v", err)
	}
	_, err = New(Mapping{Packages: map[string]string{"p": "q", "r": "q"}})
	if !stderrors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("package duplicate: err = %v", err)
	}
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("[classes\n"))
	if !stderrors.Is(err, errors.ErrInvalidData) {
		t.Errorf("err = %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "names.toml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := r.Map("a.b"); got != "net.example.Widget" {
		t.Errorf("Map = %q", got)
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEmptyMapping(t *testing.T) {
	r, err := New(Mapping{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Map("a.B") != "a.B" || r.Unmap("a.B") != "a.B" || r.Len() != 0 {
		t.Error("empty mapping must be identity")
	}
}
