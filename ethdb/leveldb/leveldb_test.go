package leveldb

import (
	"testing"

	"github.com/classflow/classflow/ethdb"
	"github.com/classflow/classflow/ethdb/dbtest"
)

func TestLevelDB(t *testing.T) {
	t.Run("DatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() ethdb.KeyValueStore {
			db, err := NewMemory("test/")
			if err != nil {
				t.Fatal(err)
			}
			return db
		})
	})
}
