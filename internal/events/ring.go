package events

import (
	"sync"
	"sync/atomic"
)

// Ring is a bounded delivery buffer read as a channel. Push never blocks: a
// full buffer loses its oldest element so a stalled reader sees the most
// recent values once it catches up.
type Ring[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool

	delivered atomic.Int64
	dropped   atomic.Int64
	rejected  atomic.Int64
}

// RingStats counts what happened to values offered to a Ring.
type RingStats struct {
	Delivered int64 // accepted into the buffer
	Dropped   int64 // evicted to make room
	Rejected  int64 // offered after close
}

func NewRing[T any](size int) *Ring[T] {
	if size <= 0 {
		panic("events: ring size must be positive")
	}
	return &Ring[T]{ch: make(chan T, size)}
}

// C is closed by Close.
func (r *Ring[T]) C() <-chan T { return r.ch }

// Push stores v and reports whether an older element was evicted for it.
func (r *Ring[T]) Push(v T) (evicted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.rejected.Add(1)
		return false
	}
	for {
		select {
		case r.ch <- v:
			r.delivered.Add(1)
			return evicted
		default:
		}
		// readers may have drained it meanwhile
		select {
		case <-r.ch:
			r.dropped.Add(1)
			evicted = true
		default:
		}
	}
}

// TryPop takes the oldest buffered value without blocking.
func (r *Ring[T]) TryPop() (T, bool) {
	select {
	case v, ok := <-r.ch:
		return v, ok
	default:
		var zero T
		return zero, false
	}
}

// Close is idempotent. Later pushes are counted as rejected.
func (r *Ring[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
}

func (r *Ring[T]) Stats() RingStats {
	return RingStats{
		Delivered: r.delivered.Load(),
		Dropped:   r.dropped.Load(),
		Rejected:  r.rejected.Load(),
	}
}
