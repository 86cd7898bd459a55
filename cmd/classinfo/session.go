package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/classmeta/annotation"
	"github.com/wippyai/classmeta/classinfo"
	"github.com/wippyai/classmeta/classpath"
	"github.com/wippyai/classmeta/hostvm"
	"github.com/wippyai/classmeta/names"
	"github.com/wippyai/classmeta/names/tomlmap"
	"github.com/wippyai/classmeta/names/wasmremap"
)

// session holds everything one command invocation resolves against.
type session struct {
	cfg         *Config
	log         *zap.Logger
	path        *classpath.Path
	plugin      *wasmremap.Remapper
	vm          *hostvm.VM
	registry    *classinfo.Registry
	annotations *annotation.Resolver
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

func openSession(ctx context.Context, cfg *Config) (*session, error) {
	log, err := newLogger(cfg.Verbose)
	if err != nil {
		return nil, err
	}
	names.SetLogger(log.Named("names"))
	hostvm.SetLogger(log.Named("hostvm"))
	classinfo.SetLogger(log.Named("classinfo"))
	annotation.SetLogger(log.Named("annotation"))

	s := &session{cfg: cfg, log: log}
	s.path, err = classpath.NewWithCache(cfg.CacheSize, cfg.ClassPath...)
	if err != nil {
		return nil, err
	}

	var chain names.Chain
	if cfg.Remap != "" {
		m, err := tomlmap.Load(cfg.Remap)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		log.Debug("loaded name mapping", zap.String("file", cfg.Remap), zap.Int("entries", m.Len()))
		chain = append(chain, m)
	}
	if cfg.RemapWasm != "" {
		s.plugin, err = wasmremap.Load(ctx, cfg.RemapWasm, nil)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		log.Debug("loaded remapper plugin", zap.String("file", cfg.RemapWasm))
		chain = append(chain, s.plugin)
	}
	nameReg := names.NewRegistry(func() names.Remapper {
		if len(chain) == 0 {
			return nil
		}
		return chain
	})

	s.vm = hostvm.New(s.path, &hostvm.Config{Names: nameReg})
	s.registry = classinfo.NewRegistry(s.vm, classinfo.Options{
		Names:        nameReg,
		IdleTTL:      cfg.IdleTTL,
		RetryBackoff: cfg.RetryBackoff,
	})
	s.annotations = annotation.NewResolver(s.registry)
	return s, nil
}

func (s *session) Close(ctx context.Context) error {
	var first error
	if s.plugin != nil {
		if err := s.plugin.Close(ctx); err != nil {
			first = err
		}
	}
	if s.path != nil {
		if err := s.path.Close(); err != nil && first == nil {
			first = err
		}
	}
	_ = s.log.Sync()
	return first
}

// resolve looks up a class and wraps the error with the name.
func (s *session) resolve(name string) (*classinfo.ClassInfo, error) {
	ci, err := s.registry.Of(name)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", name, err)
	}
	return ci, nil
}
