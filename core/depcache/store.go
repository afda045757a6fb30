// Package depcache persists stack dependency results in a key-value store
// with an in-memory clean cache in front.
package depcache

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/flock"
	"github.com/golang/snappy"
	"github.com/rcrowley/go-metrics"

	"github.com/classflow/classflow/core/analysis"
	"github.com/classflow/classflow/ethdb"
	"github.com/classflow/classflow/ethdb/bboltdb"
	"github.com/classflow/classflow/ethdb/leveldb"
	"github.com/classflow/classflow/ethdb/memorydb"
	"github.com/classflow/classflow/ethdb/pebble"
	"github.com/classflow/classflow/log"
)

// Engine names accepted in Config.Engine.
const (
	EngineMemory  = "memory"
	EnginePebble  = "pebble"
	EngineLevelDB = "leveldb"
	EngineBBolt   = "bbolt"
)

const (
	lockFileName  = "LOCK.classflow"
	encodeVersion = 2
	namespace     = "depcache/"
)

var (
	depsPrefix = []byte("d") // depsPrefix + class + 0x00 + name + descriptor + 0x00 + code hash

	errUnknownEngine = errors.New("unknown cache engine")
	errLocked        = errors.New("cache directory is locked by another process")
	errBadVersion    = errors.New("unsupported cache entry version")

	cleanHitMeter  = metrics.NewRegisteredCounter("depcache/clean/hit", nil)
	cleanMissMeter = metrics.NewRegisteredCounter("depcache/clean/miss", nil)
	dbHitMeter     = metrics.NewRegisteredCounter("depcache/db/hit", nil)
	dbMissMeter    = metrics.NewRegisteredCounter("depcache/db/miss", nil)
	writeFailMeter = metrics.NewRegisteredCounter("depcache/write/fail", nil)
)

// Config selects and sizes the backing store.
type Config struct {
	Engine    string // memory, pebble, leveldb or bbolt
	Directory string // required for persistent engines
	CleanMB   int    // fastcache size in megabytes, 0 disables it
	CacheMB   int    // leveldb block cache
	Handles   int    // leveldb open files
	ReadOnly  bool
}

// DefaultConfig is an in-memory store with a small clean cache.
var DefaultConfig = Config{
	Engine:  EngineMemory,
	CleanMB: 32,
	CacheMB: 16,
	Handles: 64,
}

// Store is an analysis.Cache backed by a key-value store.
type Store struct {
	db    ethdb.KeyValueStore
	clean *fastcache.Cache
	lock  *flock.Flock
	log   log.Logger
}

var _ analysis.Cache = (*Store)(nil)

// Open opens the store described by cfg. Persistent engines take an
// exclusive lock on the directory (shared when read-only).
func Open(cfg Config) (*Store, error) {
	if cfg.Engine == "" {
		cfg.Engine = EngineMemory
	}
	if cfg.Engine == EngineMemory {
		return New(memorydb.New(), cfg.CleanMB), nil
	}
	if cfg.Directory == "" {
		return nil, fmt.Errorf("%s cache engine needs a directory", cfg.Engine)
	}
	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(cfg.Directory, lockFileName))
	var (
		locked bool
		err    error
	)
	if cfg.ReadOnly {
		locked, err = lock.TryRLock()
	} else {
		locked, err = lock.TryLock()
	}
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", errLocked, cfg.Directory)
	}

	db, err := openEngine(cfg)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	s := New(db, cfg.CleanMB)
	s.lock = lock
	s.log = log.New("cache", cfg.Directory, "engine", cfg.Engine)
	s.log.Info("Opened dependency cache", "clean", cfg.CleanMB, "readonly", cfg.ReadOnly)
	return s, nil
}

func openEngine(cfg Config) (ethdb.KeyValueStore, error) {
	switch cfg.Engine {
	case EnginePebble:
		return pebble.New(filepath.Join(cfg.Directory, "pebble"), namespace, cfg.ReadOnly)
	case EngineLevelDB:
		return leveldb.New(filepath.Join(cfg.Directory, "leveldb"), cfg.CacheMB, cfg.Handles, namespace, cfg.ReadOnly)
	case EngineBBolt:
		return bboltdb.New(filepath.Join(cfg.Directory, "bbolt"), cfg.ReadOnly, false)
	}
	return nil, fmt.Errorf("%w: %q", errUnknownEngine, cfg.Engine)
}

// New wraps an open key-value store. cleanMB sizes the in-memory clean
// cache; zero disables it.
func New(db ethdb.KeyValueStore, cleanMB int) *Store {
	s := &Store{db: db, log: log.New("cache", "memory")}
	if cleanMB > 0 {
		s.clean = fastcache.New(cleanMB * 1024 * 1024)
	}
	return s
}

// Key returns the database key of a method.
func Key(key analysis.MethodKey) []byte {
	buf := make([]byte, 0, len(depsPrefix)+len(key.Class)+len(key.Name)+len(key.Descriptor)+2+len(key.CodeHash))
	buf = append(buf, classPrefix(key.Class)...)
	buf = append(buf, key.Name...)
	buf = append(buf, key.Descriptor...)
	buf = append(buf, 0)
	return append(buf, key.CodeHash[:]...)
}

func classPrefix(class string) []byte {
	buf := append(bytes.Clone(depsPrefix), class...)
	return append(buf, 0)
}

// Get implements analysis.Cache.
func (s *Store) Get(key analysis.MethodKey) (*analysis.StackDependencies, bool) {
	k := Key(key)
	if s.clean != nil {
		if enc := s.clean.GetBig(nil, k); len(enc) > 0 {
			if deps, err := decode(enc); err == nil {
				cleanHitMeter.Inc(1)
				return deps, true
			}
		}
		cleanMissMeter.Inc(1)
	}
	start := time.Now()
	enc, err := s.db.Get(k)
	ethdb.GetTimer.UpdateSince(start)
	if err != nil {
		if !errors.Is(err, ethdb.ErrNotFound) {
			s.log.Warn("Failed to read cached dependencies", "method", key, "err", err)
		}
		dbMissMeter.Inc(1)
		return nil, false
	}
	deps, err := decode(enc)
	if err != nil {
		s.log.Warn("Dropping corrupt cache entry", "method", key, "err", err)
		dbMissMeter.Inc(1)
		return nil, false
	}
	dbHitMeter.Inc(1)
	if s.clean != nil {
		s.clean.SetBig(k, enc)
	}
	return deps, true
}

// Put implements analysis.Cache. Write failures are logged; the result is
// still served from the clean cache.
func (s *Store) Put(key analysis.MethodKey, deps *analysis.StackDependencies) {
	enc, err := encode(deps)
	if err != nil {
		writeFailMeter.Inc(1)
		s.log.Error("Failed to encode dependencies", "method", key, "err", err)
		return
	}
	k := Key(key)
	if s.clean != nil {
		s.clean.SetBig(k, enc)
	}
	start := time.Now()
	if err := s.db.Put(k, enc); err != nil {
		writeFailMeter.Inc(1)
		s.log.Warn("Failed to persist dependencies", "method", key, "err", err)
		return
	}
	ethdb.PutTimer.UpdateSince(start)
}

// DropClass deletes every cached method of class and returns how many were
// removed.
func (s *Store) DropClass(class string) (int, error) {
	defer ethdb.DeleteTimer.UpdateSince(time.Now())

	if s.clean != nil {
		s.clean.Reset()
	}
	it := s.db.NewIterator(classPrefix(class), nil)
	var keys [][]byte
	for it.Next() {
		keys = append(keys, bytes.Clone(it.Key()))
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return 0, err
	}
	batch := s.db.NewBatch()
	for _, k := range keys {
		if err := batch.Delete(k); err != nil {
			return 0, err
		}
	}
	start := time.Now()
	if err := batch.Write(); err != nil {
		return 0, err
	}
	ethdb.BatchWriteTimer.UpdateSince(start)
	return len(keys), nil
}

// Count returns the number of persisted methods.
func (s *Store) Count() (int, error) {
	it := s.db.NewIterator(depsPrefix, nil)
	defer it.Release()
	n := 0
	for it.Next() {
		n++
	}
	return n, it.Error()
}

// Stat returns the engine's statistics string.
func (s *Store) Stat() (string, error) {
	return s.db.Stat("")
}

// Close closes the store and releases the directory lock.
func (s *Store) Close() error {
	err := s.db.Close()
	if s.clean != nil {
		s.clean.Reset()
	}
	if s.lock != nil {
		if uerr := s.lock.Unlock(); err == nil {
			err = uerr
		}
	}
	return err
}

func encode(deps *analysis.StackDependencies) ([]byte, error) {
	raw, err := cbor.Marshal(deps)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1, 1+snappy.MaxEncodedLen(len(raw)))
	out[0] = encodeVersion
	return append(out, snappy.Encode(nil, raw)...), nil
}

func decode(enc []byte) (*analysis.StackDependencies, error) {
	if len(enc) == 0 || enc[0] != encodeVersion {
		return nil, errBadVersion
	}
	raw, err := snappy.Decode(nil, enc[1:])
	if err != nil {
		return nil, err
	}
	deps := new(analysis.StackDependencies)
	if err := cbor.Unmarshal(raw, deps); err != nil {
		return nil, err
	}
	if len(deps.ArgProducers) != len(deps.Reached) || len(deps.ValueConsumers) != len(deps.Reached) {
		return nil, errors.New("inconsistent cache entry")
	}
	return deps, nil
}
