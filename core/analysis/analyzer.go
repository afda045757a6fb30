package analysis

import (
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru"
	pkgerrors "github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"

	"github.com/classflow/classflow/core/classfile"
	"github.com/classflow/classflow/log"
)

var (
	cacheHitCounter  = metrics.NewRegisteredCounter("analysis/deps/cache/hit", nil)
	cacheMissCounter = metrics.NewRegisteredCounter("analysis/deps/cache/miss", nil)
	analysisTimer    = metrics.NewRegisteredTimer("analysis/deps/time", nil)
	analysisFailures = metrics.NewRegisteredCounter("analysis/deps/fail", nil)
	loopPathsTimer   = metrics.NewRegisteredTimer("analysis/loops/paths", nil)
	loopsHitCounter  = metrics.NewRegisteredCounter("analysis/loops/cache/hit", nil)
)

// loopsCacheSize is the number of per-method loop analyses kept.
const loopsCacheSize = 1024

// Config tunes the analyzer.
type Config struct {
	// BestEffort drops paths that reach a join point with a different stack
	// depth instead of failing. Verifier-clean input never needs it.
	BestEffort bool

	// MaxLoopPaths caps the paths enumerated per loop.
	MaxLoopPaths int

	// MaxSteps bounds the instructions simulated per method.
	MaxSteps int
}

// DefaultConfig contains the default analyzer settings.
var DefaultConfig = Config{
	MaxLoopPaths: 256,
	MaxSteps:     1 << 22,
}

func (c Config) withDefaults() Config {
	if c.MaxLoopPaths <= 0 {
		c.MaxLoopPaths = DefaultConfig.MaxLoopPaths
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultConfig.MaxSteps
	}
	return c
}

// Analyzer serves stack dependencies through a cache. Loop analyses are
// kept in an in-memory LRU keyed like the dependency cache.
type Analyzer struct {
	cache Cache
	loops *lru.Cache // MethodKey -> *Loops
	cfg   Config
}

// NewAnalyzer returns an analyzer. A nil cache disables memoization of
// stack dependencies.
func NewAnalyzer(cache Cache, cfg Config) *Analyzer {
	loops, _ := lru.New(loopsCacheSize)
	return &Analyzer{cache: cache, loops: loops, cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// StackDependencies returns the dependencies of method m of class cf,
// computing and caching them on first use.
func (a *Analyzer) StackDependencies(cf *classfile.ClassFile, m *classfile.MethodInfo) (*StackDependencies, error) {
	code := m.Code()
	if code == nil {
		return nil, pkgerrors.Errorf("method %s.%s has no code", cf.Name(), m)
	}
	key := KeyFor(cf, m)
	if a.cache != nil {
		if deps, ok := a.cache.Get(key); ok && deps.Len() == code.Len() {
			cacheHitCounter.Inc(1)
			return deps, nil
		}
		cacheMissCounter.Inc(1)
	}

	start := time.Now()
	deps, err := Analyze(code, a.cfg)
	if err != nil {
		analysisFailures.Inc(1)
		var ie *InconsistencyError
		if errors.As(err, &ie) {
			ie.Class, ie.Method = cf.Name(), m.String()
			return nil, ie
		}
		return nil, pkgerrors.Wrapf(err, "analyze %s.%s", cf.Name(), m)
	}
	analysisTimer.UpdateSince(start)
	log.Debug("Analyzed stack dependencies", "class", cf.Name(), "method", m, "insts", code.Len(),
		"maxstack", deps.MaxStack, "elapsed", time.Since(start))

	if a.cache != nil {
		a.cache.Put(key, deps)
	}
	return deps, nil
}

// Loops returns the loop analysis of method m of class cf. The result is
// shared by later calls for the same method body.
func (a *Analyzer) Loops(cf *classfile.ClassFile, m *classfile.MethodInfo) *Loops {
	code := m.Code()
	if code == nil {
		return nil
	}
	key := KeyFor(cf, m)
	if v, ok := a.loops.Get(key); ok {
		if l := v.(*Loops); l.code.Len() == code.Len() {
			loopsHitCounter.Inc(1)
			return l
		}
	}
	l := NewLoops(code)
	a.loops.Add(key, l)
	return l
}

// LoopPaths enumerates the paths through the loop closed by branch, capped
// at the configured maximum.
func (a *Analyzer) LoopPaths(cf *classfile.ClassFile, m *classfile.MethodInfo, branch int) (*PathSet, error) {
	loops := a.Loops(cf, m)
	if loops == nil {
		return nil, pkgerrors.Errorf("method %s.%s has no code", cf.Name(), m)
	}
	defer loopPathsTimer.UpdateSince(time.Now())
	return loops.Paths(branch, a.cfg.MaxLoopPaths)
}
