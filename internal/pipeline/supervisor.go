package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Decoder produces the thumbnail for one image identifier.
type Decoder interface {
	Decode(ctx context.Context, id string) (*image.RGBA, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, id string) (*image.RGBA, error)

// Decode calls f.
func (f DecoderFunc) Decode(ctx context.Context, id string) (*image.RGBA, error) {
	return f(ctx, id)
}

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	Decoder Decoder
	// MaxParallel bounds concurrent decodes per generation (0 = unbounded).
	MaxParallel int
	// Deliver receives every result of the current generation.
	Deliver func(DecodedResult)
	// Drop receives superseded results. Optional.
	Drop func(DecodedResult)
}

// SupervisorStats reports supervisor counters.
type SupervisorStats struct {
	Generations int64
	Delivered   int64
	Dropped     int64
	Decoded     int64
	Failed      int64
}

// Supervisor runs one generation of decode work at a time.
//
// Submit starts a new generation and supersedes the previous one: its
// context is cancelled, and results it still produces are passed to Drop
// instead of Deliver. Once Submit returns, no result of an older generation
// reaches Deliver.
type Supervisor struct {
	cfg SupervisorConfig

	mu     sync.RWMutex // write: generation switch; read: delivery
	gen    atomic.Uint64
	cancel context.CancelFunc
	closed bool

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	generations atomic.Int64
	delivered   atomic.Int64
	dropped     atomic.Int64
	decoded     atomic.Int64
	failed      atomic.Int64
}

var (
	// ErrSuperseded marks work abandoned because a newer generation started.
	ErrSuperseded = errors.New("pipeline: generation superseded")
	// ErrNoImage is reported when a decoder returns neither an image nor an error.
	ErrNoImage = errors.New("pipeline: decoder returned no image")
)

// NewSupervisor creates a supervisor.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:        cfg,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// Current returns the current generation. Zero means nothing was submitted.
func (s *Supervisor) Current() uint64 {
	return s.gen.Load()
}

// Submit starts a new generation for batch and returns its number.
// Prefetched tasks are delivered before Submit returns; misses are decoded
// in the background. After Close, Submit does nothing and returns 0.
func (s *Supervisor) Submit(batch LoadBatch) uint64 {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	if s.cancel != nil {
		s.cancel()
	}
	gen := s.gen.Add(1)
	ctx, cancel := context.WithCancelCause(s.baseCtx)
	s.cancel = func() { cancel(ErrSuperseded) }
	s.generations.Add(1)
	s.wg.Add(1)
	s.mu.Unlock()

	var misses []LoadTask
	for _, t := range batch.Tasks {
		if !t.Hit {
			misses = append(misses, t)
			continue
		}
		s.deliver(DecodedResult{
			Generation: gen,
			Row:        t.Row,
			ID:         t.ID,
			Image:      t.Prefetched.Image,
			Err:        t.Prefetched.Err,
			FromCache:  true,
		})
	}

	if len(misses) == 0 {
		s.wg.Done()
		return gen
	}

	go s.run(ctx, gen, misses)
	return gen
}

// Supersede cancels the current generation without starting new work and
// returns the new generation number. Results still in flight go to Drop.
// After Close it returns 0.
func (s *Supervisor) Supersede() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return s.gen.Add(1)
}

func (s *Supervisor) run(ctx context.Context, gen uint64, tasks []LoadTask) {
	defer s.wg.Done()

	g := new(errgroup.Group)
	if s.cfg.MaxParallel > 0 {
		g.SetLimit(s.cfg.MaxParallel)
	}

	for _, t := range tasks {
		if ctx.Err() != nil {
			// Superseded before this task started.
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			img, err := s.cfg.Decoder.Decode(ctx, t.ID)
			if ctx.Err() != nil {
				s.drop(DecodedResult{Generation: gen, Row: t.Row, ID: t.ID, Image: img, Err: err})
				return nil
			}
			if err == nil && img == nil {
				err = ErrNoImage
			}
			if err != nil {
				s.failed.Add(1)
				img = nil
			} else {
				s.decoded.Add(1)
			}
			s.deliver(DecodedResult{Generation: gen, Row: t.Row, ID: t.ID, Image: img, Err: err})
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Supervisor) deliver(r DecodedResult) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || r.Generation != s.gen.Load() {
		s.dropLocked(r)
		return
	}
	s.delivered.Add(1)
	s.cfg.Deliver(r)
}

func (s *Supervisor) drop(r DecodedResult) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.dropLocked(r)
}

func (s *Supervisor) dropLocked(r DecodedResult) {
	s.dropped.Add(1)
	if s.cfg.Drop != nil {
		s.cfg.Drop(r)
	}
}

// Stats returns a snapshot of the supervisor counters.
func (s *Supervisor) Stats() SupervisorStats {
	return SupervisorStats{
		Generations: s.generations.Load(),
		Delivered:   s.delivered.Load(),
		Dropped:     s.dropped.Load(),
		Decoded:     s.decoded.Load(),
		Failed:      s.failed.Load(),
	}
}

// Wait blocks until all started generations have finished.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Close cancels all work and waits for in-flight decodes to return.
// It is idempotent.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.baseCancel()
	s.wg.Wait()
}
