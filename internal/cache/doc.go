// Package cache provides the caches behind the thumbnail pipeline.
//
// # Image Cache (RAM)
//
// LRU is the ImageCache: a cost-bounded key -> decoded thumbnail store.
//
//   - Take removes and returns an entry (ownership moves to the caller)
//   - Peek is a non-owning lookup used at paint time
//   - Insert evicts least-recently-used entries until the total cost fits
//     the capacity, never evicting the entry that was just inserted
//   - SetCapacity shrinks immediately when usage exceeds the new bound
//
// Recency is refreshed by Take, Peek and Insert. Every operation is atomic
// under a single mutex, so the cache is safe to share with worker goroutines
// even though the pipeline only mutates it from the owning goroutine.
//
// # Disk Cache (L2)
//
// DiskCache persists encoded thumbnails so a restart or a large scroll does
// not pay the full decode again:
//   - Async writes bounded by a semaphore
//   - LRU eviction with a byte budget
//   - Rebuilds its index from disk on startup
package cache
