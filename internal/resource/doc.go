// Package resource governs the decode workers of the thumbnail pipeline.
//
// The Controller bounds three resources shared by every generation:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                         Controller                          │
//	├─────────────────┬─────────────────┬─────────────────────────┤
//	│  Decode Workers │  Decode Memory  │  IO Rate Limiter        │
//	│  (semaphore)    │  (semaphore)    │  (token bucket)         │
//	├─────────────────┼─────────────────┼─────────────────────────┤
//	│  AcquireWorker  │  AcquireMemory  │  AcquireIO              │
//	│  TryAcquire-    │  ReleaseMemory  │  RateLimitedReader      │
//	│  Worker         │  MemoryUsage    │                         │
//	└─────────────────┴─────────────────┴─────────────────────────┘
//
// # Decode Workers
//
// Each decode holds one worker slot while it reads and parses an image.
// Superseded work that has not yet acquired a slot gives up as soon as its
// generation context is canceled; work that already holds a slot runs to
// completion.
//
//	if err := rc.AcquireWorker(ctx); err != nil {
//	    return err // generation superseded
//	}
//	defer rc.ReleaseWorker()
//
// # Decode Memory
//
// Full-size decodes are transient but large (a 24MP photo is ~96MB of RGBA).
// AcquireMemory blocks until the estimated decode footprint fits the budget.
// Requests larger than the whole budget are clamped so a single oversized
// image can still be decoded alone.
//
// # IO Rate Limiting
//
// A token bucket limits read bandwidth from the image store, keeping remote
// object stores and spinning disks from being saturated by a fast scroll.
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully: they become no-ops.
package resource
