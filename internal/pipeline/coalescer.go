package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultWindow is the default debounce and batching window.
const DefaultWindow = 250 * time.Millisecond

// Coalescer collapses bursts of signals into one settle call that fires
// window after the last signal of the burst.
//
// It is Idle until the first signal, then Debouncing: every further signal
// restarts the timer. When the timer expires the settle callback runs on the
// coalescer goroutine and the coalescer returns to Idle.
type Coalescer struct {
	window   time.Duration
	onSettle func()

	signal chan struct{}
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once

	debouncing atomic.Bool
	signals    atomic.Int64
	settles    atomic.Int64
}

// NewCoalescer starts a coalescer. onSettle must not block for long; it is
// expected to hand off to the owning goroutine.
func NewCoalescer(window time.Duration, onSettle func()) *Coalescer {
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Coalescer{
		window:   window,
		onSettle: onSettle,
		signal:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.run()
	return c
}

// Signal reports that the viewport may have changed. Safe for concurrent use.
func (c *Coalescer) Signal() {
	c.signals.Add(1)
	select {
	case c.signal <- struct{}{}:
	default:
		// A pending signal already restarts the timer.
	}
}

// Debouncing reports whether a settle is pending.
func (c *Coalescer) Debouncing() bool {
	return c.debouncing.Load()
}

// Stats returns the number of signals received and settles emitted.
func (c *Coalescer) Stats() (signals, settles int64) {
	return c.signals.Load(), c.settles.Load()
}

func (c *Coalescer) run() {
	defer close(c.done)

	timer := time.NewTimer(c.window)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-c.signal:
			c.debouncing.Store(true)
			timer.Reset(c.window)
		case <-timer.C:
			c.debouncing.Store(false)
			c.settles.Add(1)
			c.onSettle()
		}
	}
}

// Close stops the coalescer. A pending settle is discarded.
func (c *Coalescer) Close() {
	c.once.Do(func() {
		close(c.stop)
	})
	<-c.done
}
