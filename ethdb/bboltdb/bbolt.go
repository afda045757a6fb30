// Package bboltdb implements the key-value store interface on a single
// bbolt bucket.
package bboltdb

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/classflow/classflow/ethdb"
	"github.com/classflow/classflow/log"
)

// FileName is the database file created inside the store directory.
const FileName = "bbolt.db"

var (
	bucketName = []byte("classflow")

	errDatabaseClosed = errors.New("database closed")
)

// Database is a persistent key-value store based on the bbolt storage engine.
// Apart from basic data storage functionality it also supports batch writes and
// iterating over the keyspace in binary-alphabetical order.
type Database struct {
	fn string    // Filename for reporting
	db *bbolt.DB // Underlying bbolt storage engine

	closeLock sync.RWMutex
	closed    bool

	log log.Logger // Contextual logger tracking the database path
}

// New opens or creates the store in directory dir. Ephemeral stores skip
// fsync on commit.
func New(dir string, readonly bool, ephemeral bool) (*Database, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %v", err)
	}
	fullpath := filepath.Join(dir, FileName)
	options := &bbolt.Options{
		ReadOnly: readonly,
		NoSync:   ephemeral,
	}
	innerDB, err := bbolt.Open(fullpath, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %v", err)
	}
	if !readonly {
		// Create the default bucket if it does not exist
		err = innerDB.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketName)
			return err
		})
		if err != nil {
			innerDB.Close()
			return nil, fmt.Errorf("failed to create default bucket: %v", err)
		}
	}
	db := &Database{
		fn:  fullpath,
		db:  innerDB,
		log: log.New("database", fullpath),
	}
	db.log.Info("Opened bbolt store", "readonly", readonly, "nosync", ephemeral)
	return db, nil
}

func (d *Database) view(fn func(b *bbolt.Bucket) error) error {
	d.closeLock.RLock()
	defer d.closeLock.RUnlock()
	if d.closed {
		return errDatabaseClosed
	}
	return d.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return ethdb.ErrNotFound
		}
		return fn(bucket)
	})
}

func (d *Database) update(fn func(b *bbolt.Bucket) error) error {
	d.closeLock.RLock()
	defer d.closeLock.RUnlock()
	if d.closed {
		return errDatabaseClosed
	}
	return d.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return fn(bucket)
	})
}

// Put adds the given value under the specified key to the database.
func (d *Database) Put(key []byte, value []byte) error {
	return d.update(func(b *bbolt.Bucket) error {
		return b.Put(key, value)
	})
}

// Get retrieves the value corresponding to the specified key from the database.
func (d *Database) Get(key []byte) ([]byte, error) {
	var result []byte
	err := d.view(func(b *bbolt.Bucket) error {
		v := b.Get(key)
		if v == nil {
			return ethdb.ErrNotFound
		}
		// bbolt values are only valid during the transaction.
		result = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the specified key from the database.
func (d *Database) Delete(key []byte) error {
	return d.update(func(b *bbolt.Bucket) error {
		return b.Delete(key)
	})
}

// Has checks if the given key exists in the database.
func (d *Database) Has(key []byte) (bool, error) {
	var exists bool
	err := d.view(func(b *bbolt.Bucket) error {
		exists = b.Get(key) != nil
		return nil
	})
	if errors.Is(err, ethdb.ErrNotFound) {
		return false, nil
	}
	return exists, err
}

// Close closes the database file.
func (d *Database) Close() error {
	d.closeLock.Lock()
	defer d.closeLock.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.db.Close(); err != nil {
		d.log.Error("Failed to close bbolt store", "err", err)
		return err
	}
	return nil
}

// Stat returns a particular internal stat of the database.
func (d *Database) Stat(property string) (string, error) {
	if property != "" && !strings.HasPrefix(property, "bbolt.") {
		return "", errors.New("unknown property")
	}
	stats := d.db.Stats()
	return fmt.Sprintf("txn=%d opentxn=%d freepages=%d", stats.TxN, stats.OpenTxN, stats.FreePageN), nil
}

// Compact is a no-op; bbolt reuses freed pages in place.
func (d *Database) Compact(start []byte, limit []byte) error {
	return nil
}

// Path returns the database file.
func (d *Database) Path() string {
	return d.fn
}

// NewIterator returns a new iterator for traversing the keys in the database.
func (d *Database) NewIterator(prefix []byte, start []byte) ethdb.Iterator {
	d.closeLock.RLock()
	defer d.closeLock.RUnlock()
	if d.closed {
		return &iterator{err: errDatabaseClosed}
	}
	tx, err := d.db.Begin(false)
	if err != nil {
		return &iterator{err: err}
	}
	bucket := tx.Bucket(bucketName)
	if bucket == nil {
		tx.Rollback()
		return &iterator{}
	}
	cursor := bucket.Cursor()
	seek := append(bytes.Clone(prefix), start...)
	k, v := cursor.Seek(seek)
	return &iterator{
		tx:     tx,
		cursor: cursor,
		prefix: prefix,
		key:    k,
		value:  v,
		first:  true,
	}
}

// iterator walks a bucket cursor inside a read transaction that stays open
// until Release.
type iterator struct {
	tx     *bbolt.Tx
	cursor *bbolt.Cursor
	prefix []byte
	key    []byte
	value  []byte
	first  bool
	err    error
}

// Next moves the iterator to the next key/value pair.
func (it *iterator) Next() bool {
	if it.cursor == nil {
		return false
	}
	if it.first {
		it.first = false
	} else {
		it.key, it.value = it.cursor.Next()
	}
	if it.key == nil || !bytes.HasPrefix(it.key, it.prefix) {
		it.key, it.value = nil, nil
		it.cursor = nil
		return false
	}
	return true
}

// Error returns any accumulated error.
func (it *iterator) Error() error {
	return it.err
}

// Key returns the key of the current key/value pair, or nil if done.
func (it *iterator) Key() []byte {
	return it.key
}

// Value returns the value of the current key/value pair, or nil if done.
func (it *iterator) Value() []byte {
	return it.value
}

// Release releases associated resources.
func (it *iterator) Release() {
	if it.tx != nil {
		it.tx.Rollback()
		it.tx = nil
	}
	it.cursor = nil
	it.key = nil
	it.value = nil
}

// batch is a write-only batch that commits changes to its host database when
// Write is called.
type batch struct {
	db   *Database
	ops  []operation
	size int
}

type operation struct {
	key   []byte
	value []byte
	del   bool
}

// NewBatch creates a new batch for batching database operations.
func (d *Database) NewBatch() ethdb.Batch {
	return &batch{db: d}
}

// Put inserts the given value into the batch for later committing.
func (b *batch) Put(key, value []byte) error {
	b.ops = append(b.ops, operation{key: bytes.Clone(key), value: bytes.Clone(value)})
	b.size += len(key) + len(value)
	return nil
}

// Delete inserts a key removal into the batch for later committing.
func (b *batch) Delete(key []byte) error {
	b.ops = append(b.ops, operation{key: bytes.Clone(key), del: true})
	b.size += len(key)
	return nil
}

// ValueSize retrieves the amount of data queued up for writing.
func (b *batch) ValueSize() int {
	return b.size
}

// Write flushes any accumulated data to disk in one transaction.
func (b *batch) Write() error {
	return b.db.update(func(bucket *bbolt.Bucket) error {
		for _, op := range b.ops {
			var err error
			if op.del {
				err = bucket.Delete(op.key)
			} else {
				err = bucket.Put(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Reset resets the batch for reuse.
func (b *batch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

// Replay replays the batch contents.
func (b *batch) Replay(w ethdb.KeyValueWriter) error {
	for _, op := range b.ops {
		if op.del {
			if err := w.Delete(op.key); err != nil {
				return err
			}
		} else if err := w.Put(op.key, op.value); err != nil {
			return err
		}
	}
	return nil
}
