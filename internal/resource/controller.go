package resource

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxDecodeWorkers is the maximum number of concurrent decodes.
	// If 0, decodes are not bounded.
	MaxDecodeWorkers int64

	// DecodeMemoryBytes bounds the estimated memory of in-flight decodes.
	// If 0, no limit is enforced (only tracking).
	DecodeMemoryBytes int64

	// IOLimitBytesPerSec is the maximum read throughput from the image store.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages the resources shared by all decode workers.
type Controller struct {
	cfg Config

	workerSem *semaphore.Weighted // nil if unbounded
	inFlight  atomic.Int64

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MaxDecodeWorkers > 0 {
		c.workerSem = semaphore.NewWeighted(cfg.MaxDecodeWorkers)
	}

	if cfg.DecodeMemoryBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.DecodeMemoryBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireWorker reserves a decode slot, blocking until one is free or ctx is done.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.workerSem != nil {
		if err := c.workerSem.Acquire(ctx, 1); err != nil {
			return err
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	c.inFlight.Add(1)
	return nil
}

// TryAcquireWorker reserves a decode slot without blocking.
func (c *Controller) TryAcquireWorker() bool {
	if c == nil {
		return true
	}
	if c.workerSem != nil && !c.workerSem.TryAcquire(1) {
		return false
	}
	c.inFlight.Add(1)
	return true
}

// ReleaseWorker releases a decode slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.inFlight.Add(-1)
	if c.workerSem != nil {
		c.workerSem.Release(1)
	}
}

// InFlight returns the number of decodes currently holding a slot.
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// AcquireMemory reserves decode memory and returns the amount actually
// reserved, which must be passed back to ReleaseMemory.
// Requests above the configured budget are clamped to the budget.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) (int64, error) {
	if c == nil || bytes <= 0 {
		return 0, nil
	}

	if c.memSem != nil {
		if bytes > c.cfg.DecodeMemoryBytes {
			bytes = c.cfg.DecodeMemoryBytes
		}
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return 0, err
		}
	}

	c.memUsed.Add(bytes)
	return bytes, nil
}

// ReleaseMemory releases memory reserved by AcquireMemory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the currently reserved decode memory in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than the bucket are split into bucket-sized waits.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// TryAcquireIO attempts to acquire IO tokens without blocking.
func (c *Controller) TryAcquireIO(bytes int) bool {
	if c == nil || c.ioLimiter == nil {
		return true
	}
	return c.ioLimiter.AllowN(time.Now(), bytes)
}
