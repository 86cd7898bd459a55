package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseAnnotation,
				Kind:   KindInvalidArgument,
				Path:   []string{"methods", "run"},
				Class:  "net/example/Widget",
				Member: "run",
				Detail: "bad target",
			},
			contains: []string{"[annotation]", "invalid_argument", "methods.run", "net/example/Widget", "member run", "bad target"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseInsn,
				Kind:  KindOutOfRange,
			},
			contains: []string{"[insn]", "out_of_range"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseParse,
				Kind:   KindMalformedInput,
				Detail: "truncated",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[parse]", "malformed_input", "truncated", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseLoad,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not follow cause")
	}
}

func TestError_Is(t *testing.T) {
	err := ClassNotFound("a/B", nil)

	if !errors.Is(err, ErrClassNotFound) {
		t.Error("kind-only sentinel should match")
	}
	if !errors.Is(err, &Error{Phase: PhaseResolve, Kind: KindClassNotFound}) {
		t.Error("phase and kind should match")
	}
	if errors.Is(err, &Error{Phase: PhaseParse, Kind: KindClassNotFound}) {
		t.Error("different phase should not match")
	}
	if errors.Is(err, ErrMalformedInput) {
		t.Error("different kind should not match")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, ErrClassNotFound) {
		t.Error("wrapped error should match sentinel")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("io")
	err := New(PhaseResolve, KindClassNotFound).
		Path("supers").
		Class("a/B").
		Member("<init>").
		Value(3).
		Cause(cause).
		Detail("attempt %d", 2).
		Build()

	if err.Phase != PhaseResolve || err.Kind != KindClassNotFound {
		t.Errorf("phase/kind: got %s/%s", err.Phase, err.Kind)
	}
	if err.Class != "a/B" || err.Member != "<init>" {
		t.Errorf("class/member: got %q/%q", err.Class, err.Member)
	}
	if err.Detail != "attempt 2" {
		t.Errorf("detail: got %q", err.Detail)
	}
	if err.Value != 3 {
		t.Errorf("value: got %v", err.Value)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not attached")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		err   *Error
		phase Phase
		kind  Kind
	}{
		{Malformed("bad magic", nil), PhaseParse, KindMalformedInput},
		{UnsupportedRetention("La/Ann;"), PhaseAnnotation, KindUnsupportedRetention},
		{IllegalState(PhaseResolve, "not an array"), PhaseResolve, KindIllegalState},
		{InvalidArgument(PhaseType, "method type"), PhaseType, KindInvalidArgument},
		{OutOfRange(PhaseInsn, 5, 2), PhaseInsn, KindOutOfRange},
		{NotFound(PhaseParse, "method", "run"), PhaseParse, KindNotFound},
		{InvalidData(PhaseConfig, []string{"remap"}, "empty"), PhaseConfig, KindInvalidData},
		{Wrap(PhaseLoad, KindInvalidData, errors.New("x"), "open jar"), PhaseLoad, KindInvalidData},
		{Load("open jar", nil), PhaseLoad, KindInvalidData},
	}

	for _, tt := range tests {
		if tt.err.Phase != tt.phase {
			t.Errorf("%v: phase %s, want %s", tt.err, tt.err.Phase, tt.phase)
		}
		if tt.err.Kind != tt.kind {
			t.Errorf("%v: kind %s, want %s", tt.err, tt.err.Kind, tt.kind)
		}
		if tt.err.Error() == "" {
			t.Error("empty message")
		}
	}
}
