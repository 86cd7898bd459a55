// Package wasmremap runs a class-name remapper supplied as a WebAssembly module.
//
// The guest must export:
//
//	memory                               linear memory
//	alloc(size i32) -> i32               returns a buffer of size bytes
//	remap(ptr i32, len i32, rev i32) -> i64
//
// remap receives a dotted class name in guest memory and a direction flag
// (0 map, 1 unmap) and returns the result location packed as ptr<<32 | len.
// Calls are serialized; a guest instance is never entered concurrently.
package wasmremap

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/classmeta/errors"
	"github.com/wippyai/classmeta/names"
)

// Export names the guest must provide.
const (
	ExportMemory = "memory"
	ExportAlloc  = "alloc"
	ExportRemap  = "remap"
)

// Config holds plugin limits.
type Config struct {
	// MemoryLimitPages caps guest memory in 64KB pages. 0 means the wazero default.
	MemoryLimitPages uint32
}

// Remapper implements names.Remapper by calling into a guest module.
type Remapper struct {
	runtime wazero.Runtime
	module  api.Module
	memory  api.Memory
	alloc   api.Function
	remap   api.Function
	mu      sync.Mutex
}

var _ names.Remapper = (*Remapper)(nil)

// Load compiles and instantiates the guest at path.
func Load(ctx context.Context, path string, cfg *Config) (*Remapper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load(fmt.Sprintf("cannot read plugin %s", path), err)
	}
	return New(ctx, data, cfg)
}

// New compiles and instantiates a guest module.
func New(ctx context.Context, wasmBytes []byte, cfg *Config) (*Remapper, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	mod, err := rt.InstantiateWithConfig(ctx, wasmBytes, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Load("instantiate remapper plugin", err)
	}

	r := &Remapper{
		runtime: rt,
		module:  mod,
		memory:  mod.Memory(),
		alloc:   mod.ExportedFunction(ExportAlloc),
		remap:   mod.ExportedFunction(ExportRemap),
	}
	var missing string
	switch {
	case r.memory == nil:
		missing = ExportMemory
	case r.alloc == nil:
		missing = ExportAlloc
	case r.remap == nil:
		missing = ExportRemap
	}
	if missing != "" {
		rt.Close(ctx)
		return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
			Member(missing).
			Detail("remapper plugin does not export %q", missing).
			Build()
	}
	return r, nil
}

// Call runs the guest remap function on one dotted name.
func (r *Remapper) Call(ctx context.Context, dotted string, dir names.Direction) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	in := []byte(dotted)
	res, err := r.alloc.Call(ctx, uint64(len(in)))
	if err != nil {
		return "", errors.Wrap(errors.PhaseName, errors.KindIllegalState, err, "plugin alloc failed")
	}
	ptr := uint32(res[0])
	if !r.memory.Write(ptr, in) {
		return "", errors.New(errors.PhaseName, errors.KindOutOfRange).
			Value(ptr).
			Detail("plugin buffer %d+%d outside memory", ptr, len(in)).
			Build()
	}

	var rev uint64
	if dir == names.Reverse {
		rev = 1
	}
	res, err = r.remap.Call(ctx, uint64(ptr), uint64(len(in)), rev)
	if err != nil {
		return "", errors.Wrap(errors.PhaseName, errors.KindIllegalState, err, "plugin remap failed")
	}
	outPtr, outLen := uint32(res[0]>>32), uint32(res[0])
	out, ok := r.memory.Read(outPtr, outLen)
	if !ok {
		return "", errors.New(errors.PhaseName, errors.KindOutOfRange).
			Value(outPtr).
			Detail("plugin result %d+%d outside memory", outPtr, outLen).
			Build()
	}
	return string(out), nil
}

// Map implements names.Remapper. Guest failures leave the name unchanged.
func (r *Remapper) Map(dotted string) string {
	return r.callOrKeep(dotted, names.Apply)
}

// Unmap implements names.Remapper. Guest failures leave the name unchanged.
func (r *Remapper) Unmap(dotted string) string {
	return r.callOrKeep(dotted, names.Reverse)
}

func (r *Remapper) callOrKeep(dotted string, dir names.Direction) string {
	out, err := r.Call(context.Background(), dotted, dir)
	if err != nil {
		names.Logger().Warn("remapper plugin call failed",
			zap.String("name", dotted),
			zap.Stringer("direction", dir),
			zap.Error(err))
		return dotted
	}
	return out
}

// Close releases the guest and its runtime.
func (r *Remapper) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runtime.Close(ctx)
}
