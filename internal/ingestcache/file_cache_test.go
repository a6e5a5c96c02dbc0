package ingestcache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := NewFileCache(path)
	ctx := context.Background()

	_, ok, err := c.Lookup(ctx, "a.hbk")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.MarkIndexed(ctx, "a.hbk", Entry{ContentHash: "deadbeef", TopicCount: 3}))

	e, ok, err := c.Lookup(ctx, "a.hbk")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "deadbeef", e.ContentHash)
	require.Equal(t, 3, e.TopicCount)
}

func TestFileCacheMissingFileDegradesGracefully(t *testing.T) {
	c := NewFileCache(filepath.Join(t.TempDir(), "nested", "cache.json"))
	_, ok, err := c.Lookup(context.Background(), "x")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileCacheEraseAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := NewFileCache(path)
	ctx := context.Background()
	require.NoError(t, c.MarkIndexed(ctx, "a.hbk", Entry{ContentHash: "x"}))
	require.NoError(t, c.EraseAll(ctx))
	_, ok, err := c.Lookup(ctx, "a.hbk")
	require.NoError(t, err)
	require.False(t, ok)
}
