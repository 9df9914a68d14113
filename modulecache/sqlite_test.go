package modulecache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLite_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := NewSQLite(SQLiteOptions{Path: ":memory:"})
	require.NoError(t, err)
	defer c.Close()

	entry := &Entry{FullName: "example.org/mod", ContentHash: "hash1", IR: []byte("ir"), CompiledAt: time.Now()}
	require.NoError(t, c.Put(ctx, entry))

	t.Run("hit with matching hash", func(t *testing.T) {
		got, ok, err := c.Get(ctx, "example.org/mod", "hash1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, entry.IR, got.IR)
	})

	t.Run("miss with stale hash", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "example.org/mod", "hash2")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put overwrites by full name", func(t *testing.T) {
		require.NoError(t, c.Put(ctx, &Entry{FullName: "example.org/mod", ContentHash: "hash2", IR: []byte("ir2")}))
		got, ok, err := c.Get(ctx, "example.org/mod", "hash2")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("ir2"), got.IR)
	})

	t.Run("invalidate removes the row", func(t *testing.T) {
		require.NoError(t, c.Invalidate(ctx, "example.org/mod"))
		_, ok, err := c.Get(ctx, "example.org/mod", "hash2")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
