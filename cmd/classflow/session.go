package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/classflow/classflow/cmd/utils"
	"github.com/classflow/classflow/core/analysis"
	"github.com/classflow/classflow/core/classfile"
	"github.com/classflow/classflow/core/classpath"
	"github.com/classflow/classflow/core/depcache"
	"github.com/classflow/classflow/log"
)

var errNoInput = errors.New("no class files given")

// session holds what one command invocation works on: the classes named on
// the command line, the linked class path used for lookups and, once
// requested, the analyzer with its caches.
type session struct {
	cfg     classflowConfig
	classes []*classfile.ClassFile
	path    *classpath.ClassPath
	filter  string

	store    *depcache.Store
	analyzer *analysis.Analyzer
}

// openSession loads the command arguments and the --classpath entries and
// links them together. Classes from the arguments shadow class path
// entries of the same name.
func openSession(ctx *cli.Context) (*session, error) {
	if ctx.NArg() == 0 {
		return nil, errNoInput
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return nil, err
	}
	inputs := classpath.New(cfg.ClassPath)
	if err := inputs.Load(ctx.Args().Slice()...); err != nil {
		if !cfg.ClassPath.KeepGoing || inputs.Len() == 0 {
			return nil, err
		}
		log.Warn("Some inputs could not be loaded", "err", err)
	}
	path := classpath.New(cfg.ClassPath)
	classes := inputs.Classes()
	for _, cf := range classes {
		if err := path.Add(cf); err != nil {
			return nil, err
		}
	}
	if entries := utils.SplitAndTrim(ctx.String(utils.ClassPathFlag.Name)); len(entries) > 0 {
		if err := path.Load(entries...); err != nil {
			return nil, err
		}
	}
	if err := path.Link(); err != nil {
		return nil, err
	}
	log.Debug("Opened session", "inputs", len(classes), "classpath", path.Len())
	return &session{
		cfg:     cfg,
		classes: classes,
		path:    path,
		filter:  ctx.String(utils.MethodFlag.Name),
	}, nil
}

// Analyzer returns the session analyzer, opening the configured caches on
// first use.
func (s *session) Analyzer() (*analysis.Analyzer, error) {
	if s.analyzer != nil {
		return s.analyzer, nil
	}
	var tiers analysis.TieredCache
	if s.cfg.CacheEntries > 0 {
		mem, err := analysis.NewMemoryCache(s.cfg.CacheEntries)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, mem)
	}
	if s.cfg.Cache.Engine != depcache.EngineMemory {
		store, err := depcache.Open(s.cfg.Cache)
		if err != nil {
			return nil, err
		}
		s.store = store
		tiers = append(tiers, store)
	}
	var cache analysis.Cache
	if len(tiers) > 0 {
		cache = tiers
	}
	s.analyzer = analysis.NewAnalyzer(cache, s.cfg.Analysis)
	return s.analyzer, nil
}

// Close releases the persistent cache.
func (s *session) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// methods returns the methods of cf with a body that match the --method
// filter.
func (s *session) methods(cf *classfile.ClassFile) []*classfile.MethodInfo {
	return selectMethods(cf, s.filter)
}

func selectMethods(cf *classfile.ClassFile, filter string) []*classfile.MethodInfo {
	var out []*classfile.MethodInfo
	for _, m := range cf.Methods {
		if m.Code() == nil {
			continue
		}
		if filter != "" && filter != m.Name.Value && filter != m.String() {
			continue
		}
		out = append(out, m)
	}
	return out
}

func methodTitle(cf *classfile.ClassFile, m *classfile.MethodInfo) string {
	code := m.Code()
	return fmt.Sprintf("%s.%s  max_stack=%d max_locals=%d code_length=%d",
		cf.Name(), m, code.MaxStack(), code.MaxLocals, code.CodeLength())
}

// withSession runs fn against a freshly opened session and closes it
// afterwards.
func withSession(fn func(ctx *cli.Context, s *session) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(ctx, s)
	}
}

func sessionFlags(extra ...cli.Flag) []cli.Flag {
	flags := append([]cli.Flag{utils.MethodFlag}, extra...)
	return append(flags, allConfigFlags()...)
}
