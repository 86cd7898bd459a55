// Package errors provides structured error types for the classmeta library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: element path, class and member names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindClassNotFound).
//		Class("net/example/Widget").
//		Detail("no byte source").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ClassNotFound("net/example/Widget", cause)
//	err := errors.OutOfRange(errors.PhaseInsn, 4, 2)
//
// Kind-only sentinels match an error of that kind from any phase:
//
//	if errors.Is(err, errors.ErrClassNotFound) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
