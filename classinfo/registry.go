package classinfo

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/classmeta"
	"github.com/wippyai/classmeta/classfile"
	"github.com/wippyai/classmeta/errors"
	"github.com/wippyai/classmeta/names"
	"github.com/wippyai/classmeta/typedesc"
)

// DefaultIdleTTL is how long an unused entry stays cached.
const DefaultIdleTTL = 3 * time.Minute

// Options configures a Registry. The zero value is usable.
type Options struct {
	// Names remaps class names between stored and runtime identity.
	// Nil disables remapping.
	Names *names.Registry

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// IdleTTL evicts entries not used for this long. 0 selects
	// DefaultIdleTTL; a negative value disables eviction.
	IdleTTL time.Duration

	// RetryBackoff suppresses re-resolution of a failed name for this
	// long and returns the previous failure instead. 0 retries every time.
	RetryBackoff time.Duration
}

type entry[T any] struct {
	value    T
	lastUsed atomic.Int64
}

type failure struct {
	err error
	at  time.Time
}

// Registry resolves and caches class metadata for one host. It is safe for
// concurrent use. Concurrent resolutions of one name share a single call.
type Registry struct {
	host  classmeta.Host
	names *names.Registry
	now   func() time.Time
	group singleflight.Group

	infos  map[string]*entry[*ClassInfo]
	supers map[string]*entry[Set]
	failed map[string]failure

	idleTTL      time.Duration
	retryBackoff time.Duration

	infosMu  sync.RWMutex
	supersMu sync.RWMutex
	failedMu sync.Mutex
}

// NewRegistry creates a registry consulting host.
func NewRegistry(host classmeta.Host, opts Options) *Registry {
	r := &Registry{
		host:         host,
		names:        opts.Names,
		now:          opts.Now,
		idleTTL:      opts.IdleTTL,
		retryBackoff: opts.RetryBackoff,
		infos:        make(map[string]*entry[*ClassInfo]),
		supers:       make(map[string]*entry[Set]),
		failed:       make(map[string]failure),
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.idleTTL == 0 {
		r.idleTTL = DefaultIdleTTL
	}
	return r
}

// Of resolves a class by internal or binary name, array descriptor or
// primitive keyword.
func (r *Registry) Of(name string) (*ClassInfo, error) {
	name = names.ToSlashed(name)
	if ci, ok := primitives[name]; ok {
		return ci, nil
	}
	if ci, ok := r.cached(name); ok {
		return ci, nil
	}
	if err := r.recentFailure(name); err != nil {
		return nil, err
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		if ci, ok := r.cached(name); ok {
			return ci, nil
		}
		ci, err := r.resolve(name)
		if err != nil {
			r.recordFailure(name, err)
			return nil, err
		}
		return r.store(ci.name, ci), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ClassInfo), nil
}

// OfType resolves a descriptor type. Method types are rejected.
func (r *Registry) OfType(t typedesc.Type) (*ClassInfo, error) {
	switch t.Sort() {
	case typedesc.Method:
		return nil, errors.New(errors.PhaseResolve, errors.KindInvalidArgument).
			Value(t.Descriptor()).
			Detail("method type %s does not denote a class", t.Descriptor()).
			Build()
	case typedesc.Object, typedesc.Array:
		return r.Of(t.InternalName())
	default:
		if t.IsZero() {
			return nil, errors.InvalidArgument(errors.PhaseResolve, "zero type")
		}
		return primitives[t.ClassName()], nil
	}
}

// OfClass wraps a host handle, returning the cached value for its name if
// one exists.
func (r *Registry) OfClass(rt classmeta.RuntimeClass) *ClassInfo {
	name := names.ToSlashed(rt.Name())
	if ci, ok := primitives[name]; ok {
		return ci
	}
	if ci, ok := r.cached(name); ok {
		return ci
	}
	return r.store(name, newLoaded(r, rt))
}

// OfParsed wraps a decoded stored record, returning the cached value for
// its runtime name if one exists.
func (r *Registry) OfParsed(rec *classfile.Class) *ClassInfo {
	name := r.runtimeName(rec.Name)
	if ci, ok := r.cached(name); ok {
		return ci
	}
	return r.store(name, newParsed(r, rec))
}

// Len returns the number of cached metadata entries.
func (r *Registry) Len() int {
	r.infosMu.RLock()
	defer r.infosMu.RUnlock()
	return len(r.infos)
}

// Forget drops name from both caches.
func (r *Registry) Forget(name string) {
	name = names.ToSlashed(name)
	r.infosMu.Lock()
	delete(r.infos, name)
	r.infosMu.Unlock()
	r.supersMu.Lock()
	delete(r.supers, name)
	r.supersMu.Unlock()
}

// Prune evicts entries idle for longer than IdleTTL and returns how many
// metadata entries were removed.
func (r *Registry) Prune() int {
	if r.idleTTL < 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL).UnixNano()

	r.infosMu.Lock()
	removed := 0
	for name, e := range r.infos {
		if e.lastUsed.Load() < cutoff {
			delete(r.infos, name)
			removed++
		}
	}
	r.infosMu.Unlock()

	r.supersMu.Lock()
	for name, e := range r.supers {
		if e.lastUsed.Load() < cutoff {
			delete(r.supers, name)
		}
	}
	r.supersMu.Unlock()

	r.failedMu.Lock()
	for name, f := range r.failed {
		if r.now().Sub(f.at) >= r.retryBackoff {
			delete(r.failed, name)
		}
	}
	r.failedMu.Unlock()

	if removed > 0 {
		Logger().Debug("pruned idle classes", zap.Int("count", removed))
	}
	return removed
}

// Start prunes in the background every half IdleTTL until ctx is done.
func (r *Registry) Start(ctx context.Context) {
	if r.idleTTL < 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(r.idleTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Prune()
			}
		}
	}()
}

func (r *Registry) cached(name string) (*ClassInfo, bool) {
	r.infosMu.RLock()
	e, ok := r.infos[name]
	r.infosMu.RUnlock()
	if !ok {
		return nil, false
	}
	e.lastUsed.Store(r.now().UnixNano())
	return e.value, true
}

// store keeps the first value stored for name and returns it.
func (r *Registry) store(name string, ci *ClassInfo) *ClassInfo {
	r.infosMu.Lock()
	defer r.infosMu.Unlock()
	if e, ok := r.infos[name]; ok {
		e.lastUsed.Store(r.now().UnixNano())
		return e.value
	}
	e := &entry[*ClassInfo]{value: ci}
	e.lastUsed.Store(r.now().UnixNano())
	r.infos[name] = e
	return ci
}

func (r *Registry) recentFailure(name string) error {
	if r.retryBackoff <= 0 {
		return nil
	}
	r.failedMu.Lock()
	defer r.failedMu.Unlock()
	f, ok := r.failed[name]
	if !ok {
		return nil
	}
	if r.now().Sub(f.at) >= r.retryBackoff {
		delete(r.failed, name)
		return nil
	}
	return f.err
}

func (r *Registry) recordFailure(name string, err error) {
	Logger().Debug("class resolution failed", zap.String("class", name), zap.Error(err))
	if r.retryBackoff <= 0 {
		return
	}
	r.failedMu.Lock()
	r.failed[name] = failure{err: err, at: r.now()}
	r.failedMu.Unlock()
}

func (r *Registry) resolve(name string) (*ClassInfo, error) {
	if r.host == nil {
		return nil, errors.ClassNotFound(name, nil)
	}
	dotted := names.ToDotted(name)

	if strings.HasPrefix(name, "[") {
		rt, err := r.host.ForName(dotted)
		if err != nil {
			return nil, errors.ClassNotFound(name, err)
		}
		Logger().Debug("resolved array natively", zap.String("class", name))
		return newLoaded(r, rt), nil
	}

	if rt, ok := r.host.FindLoaded(dotted); ok {
		Logger().Debug("resolved loaded class", zap.String("class", name))
		return newLoaded(r, rt), nil
	}
	if mapped := r.names.Remap(name, names.Apply); mapped != name {
		if rt, ok := r.host.FindLoaded(names.ToDotted(mapped)); ok {
			Logger().Debug("resolved remapped loaded class", zap.String("class", name), zap.String("runtime", mapped))
			return newLoaded(r, rt), nil
		}
	}

	rec, bytesErr := r.parse(name)
	if bytesErr == nil {
		Logger().Debug("resolved from class bytes", zap.String("class", name))
		return newParsed(r, rec), nil
	}
	if stderrors.Is(bytesErr, errors.ErrMalformedInput) {
		return nil, bytesErr
	}

	rt, err := r.host.ForName(dotted)
	if err != nil {
		return nil, errors.ClassNotFound(name, stderrors.Join(bytesErr, err))
	}
	Logger().Debug("resolved by forced load", zap.String("class", name))
	return newLoaded(r, rt), nil
}

// runtimeName maps a stored internal name to the name the host runtime
// uses, which is the identity of every cached ClassInfo.
func (r *Registry) runtimeName(stored string) string {
	return r.names.Remap(stored, names.Apply)
}

// parse fetches the stored bytes for name and decodes them thin.
func (r *Registry) parse(name string) (*classfile.Class, error) {
	stored := r.names.Remap(name, names.Reverse)
	data, err := r.host.ClassBytes(names.ToDotted(stored))
	if err != nil {
		return nil, err
	}
	rec, err := classfile.ParseThin(data)
	if err != nil {
		return nil, errors.New(errors.PhaseResolve, errors.KindMalformedInput).
			Class(name).
			Cause(err).
			Detail("stored class file %s", stored).
			Build()
	}
	return rec, nil
}

// supersOf computes the transitive supertype set of c and caches it by
// name. path holds the names on the current computation chain.
func (r *Registry) supersOf(c *ClassInfo, path []string) (Set, error) {
	r.supersMu.RLock()
	e, ok := r.supers[c.name]
	r.supersMu.RUnlock()
	if ok {
		e.lastUsed.Store(r.now().UnixNano())
		return e.value, nil
	}
	for _, p := range path {
		if p == c.name {
			return nil, errors.New(errors.PhaseResolve, errors.KindIllegalState).
				Class(c.name).
				Path(path...).
				Detail("circular class hierarchy").
				Build()
		}
	}
	path = append(path, c.name)

	set := make(Set)
	if c.superName != "" {
		set[c.superName] = struct{}{}
		sc, err := c.Superclass()
		if err != nil {
			return nil, err
		}
		if err := r.union(set, sc, path); err != nil {
			return nil, err
		}
	}
	for _, iname := range c.interfaces {
		set[iname] = struct{}{}
		ic, err := r.Of(iname)
		if err != nil {
			return nil, err
		}
		if err := r.union(set, ic, path); err != nil {
			return nil, err
		}
	}

	e = &entry[Set]{value: set}
	e.lastUsed.Store(r.now().UnixNano())
	r.supersMu.Lock()
	r.supers[c.name] = e
	r.supersMu.Unlock()
	return set, nil
}

func (r *Registry) union(dst Set, c *ClassInfo, path []string) error {
	if c == nil || c.variant == Primitive {
		return nil
	}
	s, err := r.supersOf(c, path)
	if err != nil {
		return err
	}
	for n := range s {
		dst[n] = struct{}{}
	}
	return nil
}
