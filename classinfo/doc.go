// Package classinfo resolves class metadata from a host runtime, either from
// a class the host already loaded or by parsing stored class bytes without
// loading them.
//
// Resolution of an object class name tries, in order: a class the host has
// loaded under the given name, then under its remapped name; the stored
// bytes under the reverse-remapped name, parsed thin; a forced load through
// the host. Array classes always resolve through the host. Primitive and void
// names resolve to fixed singletons.
//
// A Registry owns the caches. Every ClassInfo it returns for a name is the
// same value until the entry is evicted as idle. Failures are never cached
// unless Options.RetryBackoff is set.
package classinfo
