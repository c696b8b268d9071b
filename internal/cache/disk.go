package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

const diskFileExt = ".thumb"

// DiskCacheConfig holds configuration for the disk cache.
type DiskCacheConfig struct {
	// RootDir is the directory where cache files are stored.
	RootDir string
	// MaxSizeBytes is the maximum size of the cache in bytes.
	MaxSizeBytes int64
	// MaxConcurrentWrites limits background disk writes.
	// Defaults to 16 if <= 0.
	MaxConcurrentWrites int64
}

// DiskCache stores encoded thumbnails on the local filesystem.
// It maintains an in-memory LRU index of the files on disk, keyed by the
// SHA-256 digest of the cache key.
type DiskCache struct {
	mu          sync.Mutex
	rootDir     string
	maxSize     int64
	currentSize int64

	writeSem *semaphore.Weighted

	items   map[string]*diskEntry
	lruHead *diskEntry
	lruTail *diskEntry
	epoch   uint64
	wg      sync.WaitGroup

	hits   atomic.Int64
	misses atomic.Int64
}

type diskEntry struct {
	digest     string
	size       int64
	filePath   string
	next, prev *diskEntry
}

// NewDiskCache creates a disk-backed thumbnail cache and rebuilds its index
// from the files already present under RootDir.
func NewDiskCache(config DiskCacheConfig) (*DiskCache, error) {
	if err := os.MkdirAll(config.RootDir, 0755); err != nil {
		return nil, err
	}

	maxWrites := config.MaxConcurrentWrites
	if maxWrites <= 0 {
		maxWrites = 16
	}

	c := &DiskCache{
		rootDir:  config.RootDir,
		maxSize:  config.MaxSizeBytes,
		items:    make(map[string]*diskEntry),
		writeSem: semaphore.NewWeighted(maxWrites),
	}

	c.scanExistingFiles()

	return c, nil
}

func (c *DiskCache) scanExistingFiles() {
	_ = filepath.Walk(c.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr // keep scanning past unreadable entries
		}
		if info.IsDir() {
			return nil
		}

		name := filepath.Base(path)
		if !strings.HasSuffix(name, diskFileExt) {
			// Leftover temp files from an interrupted write.
			if strings.HasPrefix(name, "tmp-thumb-") {
				_ = os.Remove(path)
			}
			return nil
		}

		c.addToLRU(strings.TrimSuffix(name, diskFileExt), path, info.Size())
		return nil
	})

	for c.currentSize > c.maxSize && c.lruTail != nil {
		c.evictOne()
	}
}

// Digest returns the hex SHA-256 digest used as the on-disk name for id.
func Digest(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

func (c *DiskCache) pathFor(digest string) string {
	return filepath.Join(c.rootDir, digest[:2], digest+diskFileExt)
}

// Get returns the stored bytes for the image id.
func (c *DiskCache) Get(ctx context.Context, id string) ([]byte, bool) {
	if ctx.Err() != nil {
		return nil, false
	}

	digest := Digest(id)

	c.mu.Lock()
	ent, ok := c.items[digest]
	if ok {
		c.moveToFront(ent)
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	data, err := os.ReadFile(ent.filePath)
	if err != nil {
		c.mu.Lock()
		if cur, ok := c.items[digest]; ok && cur == ent {
			c.removeEntry(ent)
		}
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return data, true
}

// Epoch returns the number of Clear calls so far. Pass it to SetEpoch to
// discard a write whose source was read before a Clear.
func (c *DiskCache) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Set stores b for the image id in the background. Writes are skipped when
// the write semaphore is saturated or the entry already exists.
func (c *DiskCache) Set(ctx context.Context, id string, b []byte) {
	c.SetEpoch(ctx, c.Epoch(), id, b)
}

// SetEpoch is Set for data produced in the given epoch. The write is
// dropped if Clear runs before it lands.
func (c *DiskCache) SetEpoch(_ context.Context, epoch uint64, id string, b []byte) {
	digest := Digest(id)
	size := int64(len(b))
	if size > c.maxSize {
		return
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	if ent, ok := c.items[digest]; ok {
		c.moveToFront(ent)
		c.mu.Unlock()
		return
	}
	for c.currentSize+size > c.maxSize && c.lruTail != nil {
		c.evictOne()
	}
	c.mu.Unlock()

	if !c.writeSem.TryAcquire(1) {
		return
	}

	absPath := c.pathFor(digest)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.writeSem.Release(1)

		if err := writeFileAtomic(absPath, b); err != nil {
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		if epoch != c.epoch {
			_ = os.Remove(absPath)
			return
		}
		if _, ok := c.items[digest]; ok {
			return
		}
		for c.currentSize+size > c.maxSize && c.lruTail != nil {
			c.evictOne()
		}
		c.addToLRU(digest, absPath, size)
	}()
}

func writeFileAtomic(absPath string, b []byte) error {
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, "tmp-thumb-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()

	if _, err := tmpFile.Write(b); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, absPath); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// Delete removes the entry for id.
func (c *DiskCache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[Digest(id)]; ok {
		_ = os.Remove(ent.filePath)
		c.removeEntry(ent)
	}
}

// Clear removes every cached file. Writes still in flight are discarded
// when they land.
func (c *DiskCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	for c.lruTail != nil {
		c.evictOne()
	}
}

// Flush waits for all background writes to complete.
func (c *DiskCache) Flush() {
	c.wg.Wait()
}

// Close waits for all background writes to complete.
func (c *DiskCache) Close() error {
	c.wg.Wait()
	return nil
}

// Len returns the number of indexed files.
func (c *DiskCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Size returns the total bytes of indexed files.
func (c *DiskCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

func (c *DiskCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Internal LRU helpers (must hold lock)

func (c *DiskCache) addToLRU(digest, path string, size int64) {
	ent := &diskEntry{
		digest:   digest,
		filePath: path,
		size:     size,
	}
	c.items[digest] = ent
	c.currentSize += size

	if c.lruHead == nil {
		c.lruHead = ent
		c.lruTail = ent
	} else {
		ent.next = c.lruHead
		c.lruHead.prev = ent
		c.lruHead = ent
	}
}

func (c *DiskCache) moveToFront(ent *diskEntry) {
	if c.lruHead == ent {
		return
	}

	if ent.prev != nil {
		ent.prev.next = ent.next
	}
	if ent.next != nil {
		ent.next.prev = ent.prev
	}
	if c.lruTail == ent {
		c.lruTail = ent.prev
	}

	ent.next = c.lruHead
	ent.prev = nil
	if c.lruHead != nil {
		c.lruHead.prev = ent
	}
	c.lruHead = ent
	if c.lruTail == nil {
		c.lruTail = ent
	}
}

func (c *DiskCache) removeEntry(ent *diskEntry) {
	if ent.prev != nil {
		ent.prev.next = ent.next
	} else {
		c.lruHead = ent.next
	}

	if ent.next != nil {
		ent.next.prev = ent.prev
	} else {
		c.lruTail = ent.prev
	}
	ent.next, ent.prev = nil, nil

	delete(c.items, ent.digest)
	c.currentSize -= ent.size
}

func (c *DiskCache) evictOne() {
	if c.lruTail == nil {
		return
	}
	_ = os.Remove(c.lruTail.filePath)
	c.removeEntry(c.lruTail)
}
