package monitor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/todo/internal/infrastructure/boltdb"
)

func TestMonitor_Refresh(t *testing.T) {
	healthy := true
	m := New([]Check{
		{Name: "db", Probe: func(context.Context) error { return nil }},
		{Name: "cache", Probe: func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("connection refused")
		}},
	}, 0, nil)

	assert.False(t, m.IsOnline())

	m.Refresh()
	assert.True(t, m.IsOnline())

	healthy = false
	m.Refresh()
	assert.False(t, m.IsOnline())
	status := m.GetStatus()
	assert.True(t, status.Services["db"].Online)
	assert.Equal(t, "connection refused", status.Services["cache"].Error)
}

func TestMonitor_BoltCheck(t *testing.T) {
	store, err := boltdb.Open(filepath.Join(t.TempDir(), "health.db"))
	require.NoError(t, err)

	m := New([]Check{BoltCheck(store)}, 0, nil)
	m.Start()
	defer m.Stop()
	assert.True(t, m.IsOnline())

	require.NoError(t, store.Close())
	m.Refresh()
	assert.False(t, m.IsOnline())
}
