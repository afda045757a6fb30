package bboltdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classflow/classflow/ethdb"
	"github.com/classflow/classflow/ethdb/dbtest"
)

func TestBoltDB(t *testing.T) {
	t.Run("DatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() ethdb.KeyValueStore {
			db, err := New(t.TempDir(), false, true)
			if err != nil {
				t.Fatalf("failed to open bbolt database: %v", err)
			}
			return db
		})
	})
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := New(dir, false, false)
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	assert.Equal(t, filepath.Join(dir, FileName), db.Path())
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err = db.Get([]byte("k"))
	assert.ErrorIs(t, err, errDatabaseClosed)

	db, err = New(dir, true, false)
	require.NoError(t, err)
	defer db.Close()
	v, err := db.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}
