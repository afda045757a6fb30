// Package pebble implements the key-value store interface on pebble.
package pebble

import (
	"bytes"
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/rcrowley/go-metrics"

	"github.com/classflow/classflow/ethdb"
	"github.com/classflow/classflow/log"
)

var errDatabaseClosed = errors.New("database closed")

// Database is a persistent key-value store. Apart from basic data storage
// functionality it also supports batch writes and iterating over the keyspace in
// binary-alphabetical order.
type Database struct {
	fn string     // filename for reporting
	db *pebble.DB // underlying pebble instance

	compTimeMeter    metrics.Meter // Meter for measuring the total time spent in database compaction
	compCounter      metrics.Counter
	writeDelayNMeter metrics.Meter // Meter for measuring the write delay number due to database compaction

	quitLock sync.RWMutex // Mutex protecting the closed flag
	closed   bool

	log          log.Logger // Contextual logger tracking the database path
	writeOptions *pebble.WriteOptions
}

// New returns a wrapped pebble DB object. The namespace is the prefix that the
// metrics reporting should use for surfacing internal stats.
func New(file string, namespace string, readonly bool) (*Database, error) {
	return NewCustom(file, namespace, func(options *pebble.Options) {
		options.ReadOnly = readonly
	})
}

// NewCustom returns a wrapped pebble DB object. The customize function allows
// the caller to modify the pebble options.
func NewCustom(file string, namespace string, customize func(options *pebble.Options)) (*Database, error) {
	ldb := &Database{
		fn:               file,
		log:              log.New("database", file),
		compTimeMeter:    metrics.NewRegisteredMeter(namespace+"compact/time", nil),
		compCounter:      metrics.NewRegisteredCounter(namespace+"compact/count", nil),
		writeDelayNMeter: metrics.NewRegisteredMeter(namespace+"compact/writedelay/counter", nil),
		writeOptions:     pebble.Sync,
	}
	options := &pebble.Options{
		EventListener: &pebble.EventListener{
			CompactionEnd: func(info pebble.CompactionInfo) {
				ldb.compCounter.Inc(1)
				ldb.compTimeMeter.Mark(int64(info.Duration))
			},
			WriteStallBegin: func(pebble.WriteStallBeginInfo) {
				ldb.writeDelayNMeter.Mark(1)
			},
		},
	}
	// Allow caller to make custom modifications to the options
	if customize != nil {
		customize(options)
	}
	db, err := pebble.Open(file, options)
	if err != nil {
		return nil, err
	}
	ldb.db = db
	ldb.log.Info("Allocated pebble store", "readonly", options.ReadOnly)
	return ldb, nil
}

// Close flushes any pending data to disk and closes all io accesses to the
// underlying key-value store.
func (db *Database) Close() error {
	db.quitLock.Lock()
	defer db.quitLock.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true
	return db.db.Close()
}

// Has retrieves if a key is present in the key-value store.
func (db *Database) Has(key []byte) (bool, error) {
	db.quitLock.RLock()
	defer db.quitLock.RUnlock()
	if db.closed {
		return false, errDatabaseClosed
	}
	_, closer, err := db.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

// Get retrieves the given key if it's present in the key-value store.
func (db *Database) Get(key []byte) ([]byte, error) {
	db.quitLock.RLock()
	defer db.quitLock.RUnlock()
	if db.closed {
		return nil, errDatabaseClosed
	}
	dat, closer, err := db.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ethdb.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	ret := make([]byte, len(dat))
	copy(ret, dat)
	closer.Close()
	return ret, nil
}

// Put inserts the given value into the key-value store.
func (db *Database) Put(key []byte, value []byte) error {
	db.quitLock.RLock()
	defer db.quitLock.RUnlock()
	if db.closed {
		return errDatabaseClosed
	}
	return db.db.Set(key, value, db.writeOptions)
}

// Delete removes the key from the key-value store.
func (db *Database) Delete(key []byte) error {
	db.quitLock.RLock()
	defer db.quitLock.RUnlock()
	if db.closed {
		return errDatabaseClosed
	}
	return db.db.Delete(key, db.writeOptions)
}

// NewBatch creates a write-only key-value store that buffers changes to its host
// database until a final write is called.
func (db *Database) NewBatch() ethdb.Batch {
	return &batch{
		db: db,
		b:  db.db.NewBatch(),
	}
}

// NewIterator creates a binary-alphabetical iterator over a subset
// of database content with a particular key prefix, starting at a particular
// initial key (or after, if it does not exist).
func (db *Database) NewIterator(prefix []byte, start []byte) ethdb.Iterator {
	iter, err := db.db.NewIter(bytesPrefixIterOptions(prefix, start))
	if err != nil {
		return &pebbleIterator{err: err}
	}
	iter.First()
	return &pebbleIterator{iter: iter, moved: true}
}

func bytesPrefixIterOptions(prefix []byte, start []byte) *pebble.IterOptions {
	var limit []byte
	for i := len(prefix) - 1; i >= 0; i-- {
		c := prefix[i]
		if c < 0xff {
			limit = make([]byte, i+1)
			copy(limit, prefix)
			limit[i] = c + 1
			break
		}
	}
	return &pebble.IterOptions{
		LowerBound: append(bytes.Clone(prefix), start...),
		UpperBound: limit,
	}
}

// Stat returns a particular internal stat of the database.
func (db *Database) Stat(property string) (string, error) {
	if property != "" && property != "pebble.stats" {
		return "", errors.New("unknown property")
	}
	return db.db.Metrics().String(), nil
}

// Compact flattens the underlying data store for the given key range. In essence,
// deleted and overwritten versions are discarded, and the data is rearranged to
// reduce the cost of operations needed to access them.
//
// A nil start is treated as a key before all keys in the data store; a nil limit
// is treated as a key after all keys in the data store. If both is nil then it
// will compact entire data store.
func (db *Database) Compact(start []byte, limit []byte) error {
	if limit == nil {
		limit = bytes.Repeat([]byte{0xff}, 32)
	}
	return db.db.Compact(start, limit, true)
}

// Path returns the path to the database directory.
func (db *Database) Path() string {
	return db.fn
}

// batch is a write-only pebble batch that commits changes to its host database
// when Write is called. A batch cannot be used concurrently.
type batch struct {
	db   *Database
	b    *pebble.Batch
	ops  []op
	size int
}

type op struct {
	key, value []byte
	delete     bool
}

// Put inserts the given value into the batch for later committing.
func (b *batch) Put(key, value []byte) error {
	if err := b.b.Set(key, value, nil); err != nil {
		return err
	}
	b.ops = append(b.ops, op{key: bytes.Clone(key), value: bytes.Clone(value)})
	b.size += len(key) + len(value)
	return nil
}

// Delete inserts the a key removal into the batch for later committing.
func (b *batch) Delete(key []byte) error {
	if err := b.b.Delete(key, nil); err != nil {
		return err
	}
	b.ops = append(b.ops, op{key: bytes.Clone(key), delete: true})
	b.size += len(key)
	return nil
}

// ValueSize retrieves the amount of data queued up for writing.
func (b *batch) ValueSize() int {
	return b.size
}

// Write flushes any accumulated data to disk.
func (b *batch) Write() error {
	b.db.quitLock.RLock()
	defer b.db.quitLock.RUnlock()
	if b.db.closed {
		return errDatabaseClosed
	}
	return b.b.Commit(b.db.writeOptions)
}

// Reset resets the batch for reuse.
func (b *batch) Reset() {
	b.b.Reset()
	b.ops = b.ops[:0]
	b.size = 0
}

// Replay replays the batch contents.
func (b *batch) Replay(w ethdb.KeyValueWriter) error {
	for _, o := range b.ops {
		var err error
		if o.delete {
			err = w.Delete(o.key)
		} else {
			err = w.Put(o.key, o.value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// pebbleIterator is a wrapper of underlying iterator in storage engine.
// The purpose of this structure is to implement the missing APIs.
//
// The pebble iterator is not thread-safe.
type pebbleIterator struct {
	iter     *pebble.Iterator
	moved    bool
	released bool
	err      error
}

// Next moves the iterator to the next key/value pair. It returns whether the
// iterator is exhausted.
func (iter *pebbleIterator) Next() bool {
	if iter.iter == nil {
		return false
	}
	if iter.moved {
		iter.moved = false
		return iter.iter.Valid()
	}
	return iter.iter.Next()
}

// Error returns any accumulated error. Exhausting all the key/value pairs
// is not considered to be an error.
func (iter *pebbleIterator) Error() error {
	if iter.iter == nil {
		return iter.err
	}
	return iter.iter.Error()
}

// Key returns the key of the current key/value pair, or nil if done. The caller
// should not modify the contents of the returned slice, and its contents may
// change on the next call to Next.
func (iter *pebbleIterator) Key() []byte {
	if iter.iter == nil {
		return nil
	}
	return iter.iter.Key()
}

// Value returns the value of the current key/value pair, or nil if done. The
// caller should not modify the contents of the returned slice, and its contents
// may change on the next call to Next.
func (iter *pebbleIterator) Value() []byte {
	if iter.iter == nil {
		return nil
	}
	return iter.iter.Value()
}

// Release releases associated resources. Release should always succeed and can
// be called multiple times without causing error.
func (iter *pebbleIterator) Release() {
	if iter.iter != nil && !iter.released {
		iter.iter.Close()
		iter.released = true
	}
}
