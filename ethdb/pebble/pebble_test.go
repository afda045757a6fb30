package pebble

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/classflow/classflow/ethdb"
	"github.com/classflow/classflow/ethdb/dbtest"
)

func TestPebbleDB(t *testing.T) {
	t.Run("DatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() ethdb.KeyValueStore {
			db, err := NewCustom("", "test/", func(options *pebble.Options) {
				options.FS = vfs.NewMem()
			})
			if err != nil {
				t.Fatal(err)
			}
			return db
		})
	})
}
