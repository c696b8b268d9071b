// Package loop provides a single-goroutine dispatcher: closures posted from
// any goroutine run one at a time, in FIFO order, on the loop goroutine.
//
// It stands in for a UI run loop. State that only the loop goroutine touches
// needs no further locking.
package loop

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Do after Close.
var ErrClosed = errors.New("loop: closed")

// Loop runs posted closures on a dedicated goroutine.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// New starts a loop goroutine.
func New() *Loop {
	l := &Loop{
		done: make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 && l.closed {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}

// Post enqueues fn. It never blocks. Posts after Close are dropped and
// report false.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return true
}

// Do runs fn on the loop and waits for it to return.
// It must not be called from the loop goroutine.
func (l *Loop) Do(fn func()) error {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-l.done:
		// Closures queued before Close still run; ran may close concurrently.
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Len returns the number of queued closures.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close stops accepting posts, drains the queue and waits for the loop
// goroutine to exit. It is idempotent.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.cond.Broadcast()
	l.mu.Unlock()

	<-l.done
}
