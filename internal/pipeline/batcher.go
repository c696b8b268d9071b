package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// BatcherConfig configures a Batcher.
type BatcherConfig struct {
	// Window is the emission period. Default: DefaultWindow.
	Window time.Duration
	// Emit receives each non-empty batch on the batcher goroutine.
	Emit func([]DecodedResult)
	// Keep filters results at emission time. Optional.
	Keep func(DecodedResult) bool
	// Drop receives results rejected by Keep. Optional.
	Drop func(DecodedResult)
}

// Batcher buffers results and emits them once per window.
// A window with nothing buffered emits nothing.
type Batcher struct {
	cfg BatcherConfig

	mu  sync.Mutex
	buf []DecodedResult

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once

	batches atomic.Int64
	results atomic.Int64
}

// NewBatcher starts a batcher.
func NewBatcher(cfg BatcherConfig) *Batcher {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	b := &Batcher{
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go b.run()
	return b
}

// Add buffers r for the next emission. Safe for concurrent use.
func (b *Batcher) Add(r DecodedResult) {
	b.mu.Lock()
	b.buf = append(b.buf, r)
	b.mu.Unlock()
}

// Pending returns the number of buffered results.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Stats returns the number of batches and results emitted.
func (b *Batcher) Stats() (batches, results int64) {
	return b.batches.Load(), b.results.Load()
}

func (b *Batcher) run() {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.cfg.Window)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.flush()
		}
	}
}

func (b *Batcher) flush() {
	b.mu.Lock()
	pending := b.buf
	b.buf = nil
	b.mu.Unlock()

	if b.cfg.Keep != nil {
		kept := pending[:0]
		for _, r := range pending {
			if b.cfg.Keep(r) {
				kept = append(kept, r)
			} else if b.cfg.Drop != nil {
				b.cfg.Drop(r)
			}
		}
		pending = kept
	}

	if len(pending) == 0 {
		return
	}

	b.batches.Add(1)
	b.results.Add(int64(len(pending)))
	b.cfg.Emit(pending)
}

// Close stops the batcher. Buffered results are discarded.
func (b *Batcher) Close() {
	b.once.Do(func() {
		close(b.stopCh)
	})
	<-b.doneCh

	b.mu.Lock()
	b.buf = nil
	b.mu.Unlock()
}
