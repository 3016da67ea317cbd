package boltdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

type record struct {
	Name string `json:"name"`
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "nested", "todo.db"), "items")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping())

	require.NoError(t, store.Update(func(tx *bolt.Tx) error {
		return PutJSON(tx.Bucket([]byte("items")), "a", record{Name: "alpha"})
	}))

	var got record
	require.NoError(t, store.View(func(tx *bolt.Tx) error {
		return GetJSON(tx.Bucket([]byte("items")), "a", &got)
	}))
	assert.Equal(t, "alpha", got.Name)

	err = store.View(func(tx *bolt.Tx) error {
		return GetJSON(tx.Bucket([]byte("items")), "missing", &got)
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClosedStore(t *testing.T) {
	var store *Store
	assert.ErrorIs(t, store.Ping(), bolt.ErrDatabaseNotOpen)
	assert.NoError(t, store.Close())
}
