package memorydb

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/classflow/classflow/ethdb"
	"github.com/classflow/classflow/ethdb/dbtest"
)

func TestMemoryDB(t *testing.T) {
	t.Run("DatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() ethdb.KeyValueStore {
			return New()
		})
	})
}

func TestClosedDatabase(t *testing.T) {
	db := New()
	assert.NoError(t, db.Put([]byte("k"), []byte("v")))
	assert.Equal(t, 1, db.Len())
	db.Close()
	_, err := db.Get([]byte("k"))
	assert.ErrorIs(t, err, errMemorydbClosed)
}
