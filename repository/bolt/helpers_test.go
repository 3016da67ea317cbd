package bolt

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fastygo/todo/internal/infrastructure/boltdb"
)

func openStore(t *testing.T) *boltdb.Store {
	t.Helper()
	store, err := boltdb.Open(filepath.Join(t.TempDir(), "todo.db"), Buckets...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
