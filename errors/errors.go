package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseParse      Phase = "parse"      // class file to record
	PhaseEncode     Phase = "encode"     // record to class file
	PhaseResolve    Phase = "resolve"    // name to class metadata
	PhaseName       Phase = "name"       // name codec and remapping
	PhaseAnnotation Phase = "annotation" // annotation lookup
	PhaseInsn       Phase = "insn"       // instruction list utilities
	PhaseType       Phase = "type"       // type descriptors
	PhaseLoad       Phase = "load"       // class path and plugin loading
	PhaseConfig     Phase = "config"     // tool configuration
)

// Kind categorizes the error
type Kind string

const (
	KindClassNotFound        Kind = "class_not_found"
	KindMalformedInput       Kind = "malformed_input"
	KindUnsupportedRetention Kind = "unsupported_retention"
	KindIllegalState         Kind = "illegal_state"
	KindInvalidArgument      Kind = "invalid_argument"
	KindOutOfRange           Kind = "out_of_range"
	KindNotFound             Kind = "not_found"
	KindInvalidData          Kind = "invalid_data"
)

// Kind-only sentinels for errors.Is. They match any phase.
var (
	ErrClassNotFound        = &Error{Kind: KindClassNotFound}
	ErrMalformedInput       = &Error{Kind: KindMalformedInput}
	ErrUnsupportedRetention = &Error{Kind: KindUnsupportedRetention}
	ErrIllegalState         = &Error{Kind: KindIllegalState}
	ErrInvalidArgument      = &Error{Kind: KindInvalidArgument}
	ErrOutOfRange           = &Error{Kind: KindOutOfRange}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrInvalidData          = &Error{Kind: KindInvalidData}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Class  string
	Member string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Class != "" {
		b.WriteString(": class ")
		b.WriteString(e.Class)
		if e.Member != "" {
			b.WriteString(", member ")
			b.WriteString(e.Member)
		}
	}

	if e.Detail != "" {
		if e.Class != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the element path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Class sets the class name
func (b *Builder) Class(name string) *Builder {
	b.err.Class = name
	return b
}

// Member sets the field or method name
func (b *Builder) Member(name string) *Builder {
	b.err.Member = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// ClassNotFound creates a resolution failure for a class name
func ClassNotFound(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindClassNotFound,
		Class:  name,
		Detail: "no loader, byte source or native load could resolve it",
		Cause:  cause,
	}
}

// Malformed creates an invalid class file error
func Malformed(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindMalformedInput,
		Detail: detail,
		Cause:  cause,
	}
}

// UnsupportedRetention creates an error for annotations that never reach class files
func UnsupportedRetention(desc string) *Error {
	return &Error{
		Phase:  PhaseAnnotation,
		Kind:   KindUnsupportedRetention,
		Detail: fmt.Sprintf("annotation %s has SOURCE retention and cannot be read from class files", desc),
		Value:  desc,
	}
}

// IllegalState creates an illegal state error
func IllegalState(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIllegalState,
		Detail: detail,
	}
}

// InvalidArgument creates an invalid argument error
func InvalidArgument(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArgument,
		Detail: detail,
	}
}

// OutOfRange creates an out of range error
func OutOfRange(phase Phase, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfRange,
		Detail: fmt.Sprintf("step %d out of range (available %d)", index, length),
		Value:  index,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a loading error for class path entries and plugins
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}
