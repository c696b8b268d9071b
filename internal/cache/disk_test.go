package cache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskCache_SetGet(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDiskCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 1024})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "photos/a.jpg", []byte("thumb-a"))
	c.Flush()

	data, ok := c.Get(ctx, "photos/a.jpg")
	require.True(t, ok)
	assert.Equal(t, []byte("thumb-a"), data)

	digest := Digest("photos/a.jpg")
	assert.FileExists(t, filepath.Join(dir, digest[:2], digest+diskFileExt))

	_, ok = c.Get(ctx, "photos/missing.jpg")
	assert.False(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestDiskCache_Eviction(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDiskCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 20})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "a", bytes.Repeat([]byte{1}, 10))
	c.Flush()
	c.Set(ctx, "b", bytes.Repeat([]byte{2}, 10))
	c.Flush()

	// Touch a so b is the eviction candidate.
	_, ok := c.Get(ctx, "a")
	require.True(t, ok)

	c.Set(ctx, "c", bytes.Repeat([]byte{3}, 10))
	c.Flush()

	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
	assert.LessOrEqual(t, c.Size(), int64(20))
}

func TestDiskCache_OversizedEntrySkipped(t *testing.T) {
	c, err := NewDiskCache(DiskCacheConfig{RootDir: t.TempDir(), MaxSizeBytes: 4})
	require.NoError(t, err)
	defer c.Close()

	c.Set(context.Background(), "big", []byte("too large"))
	c.Flush()
	assert.Zero(t, c.Len())
}

func TestDiskCache_RebuildsIndexOnStartup(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDiskCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 1024})
	require.NoError(t, err)

	ctx := context.Background()
	c.Set(ctx, "x", []byte("xx"))
	c.Set(ctx, "y", []byte("yyy"))
	require.NoError(t, c.Close())

	// A stale temp file is cleaned up by the scan.
	stale := filepath.Join(dir, "tmp-thumb-123")
	require.NoError(t, os.WriteFile(stale, []byte("junk"), 0o600))

	reopened, err := NewDiskCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 1024})
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 2, reopened.Len())
	assert.Equal(t, int64(5), reopened.Size())
	assert.NoFileExists(t, stale)

	data, ok := reopened.Get(ctx, "y")
	require.True(t, ok)
	assert.Equal(t, []byte("yyy"), data)
}

func TestDiskCache_DeleteAndClear(t *testing.T) {
	c, err := NewDiskCache(DiskCacheConfig{RootDir: t.TempDir(), MaxSizeBytes: 1024})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "a", []byte("a"))
	c.Set(ctx, "b", []byte("b"))
	c.Flush()
	require.Equal(t, 2, c.Len())

	c.Delete("a")
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	c.Clear()
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Size())
}

func TestDiskCache_ClearDiscardsOlderWrites(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDiskCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 1024})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	epoch := c.Epoch()
	c.Clear()
	assert.Equal(t, epoch+1, c.Epoch())

	c.SetEpoch(ctx, epoch, "a", []byte("stale"))
	c.Flush()
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	digest := Digest("a")
	assert.NoFileExists(t, filepath.Join(dir, digest[:2], digest+diskFileExt))

	c.SetEpoch(ctx, c.Epoch(), "a", []byte("fresh"))
	c.Flush()
	data, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, []byte("fresh"), data)
}

func TestDiskCache_CanceledContextMisses(t *testing.T) {
	c, err := NewDiskCache(DiskCacheConfig{RootDir: t.TempDir(), MaxSizeBytes: 1024})
	require.NoError(t, err)
	defer c.Close()

	c.Set(context.Background(), "a", []byte("a"))
	c.Flush()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
}
