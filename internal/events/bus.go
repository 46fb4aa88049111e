package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	"github.com/srg/ihslink/internal/groutine"
)

const (
	DefaultQueueSize        uint32 = 1024
	DefaultSubscriberBuffer        = 256

	// MaxQueueSize guards against accidental misconfiguration.
	MaxQueueSize uint32 = 1024 * 1024
)

// Options configures a Bus.
type Options struct {
	QueueSize        uint32
	SubscriberBuffer int
}

// Bus is a single-dispatcher event fan-out.
//
// Publish never blocks: events go into an overlapped MPMC ring that drops the
// oldest entry when full. One dispatcher goroutine drains the ring and copies
// each event into every subscriber's drop-oldest buffer.
type Bus struct {
	logger *logrus.Logger
	queue  mpmc.RichOverlappedRingBuffer[Event]
	wake   chan struct{}
	subBuf int

	mu     sync.RWMutex
	subs   map[int]*Subscription
	nextID int

	closed atomic.Bool
	cancel context.CancelFunc
	done   <-chan struct{}

	metrics BusMetrics
}

// BusMetrics are the bus-level counters.
type BusMetrics struct {
	Published   int64
	Overwritten int64
	Dispatched  int64
	Dropped     int64 // overwritten in subscriber buffers
	Errors      int64
}

// NewBus creates a bus and starts its dispatcher.
func NewBus(logger *logrus.Logger, opts Options) (*Bus, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.QueueSize > MaxQueueSize {
		return nil, fmt.Errorf("event queue size %d exceeds maximum %d", opts.QueueSize, MaxQueueSize)
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = DefaultSubscriberBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		logger: logger,
		queue:  mpmc.NewOverlappedRingBuffer[Event](opts.QueueSize),
		wake:   make(chan struct{}, 1),
		subBuf: opts.SubscriberBuffer,
		subs:   make(map[int]*Subscription),
		cancel: cancel,
	}
	b.done = groutine.Go(ctx, "event-dispatcher", b.run)
	return b, nil
}

// Publish enqueues e for delivery. Events published after Close are dropped.
func (b *Bus) Publish(e Event) {
	if b.closed.Load() {
		return
	}
	overwrites, err := b.queue.EnqueueM(e)
	if err != nil {
		atomic.AddInt64(&b.metrics.Errors, 1)
		b.logger.WithFields(logrus.Fields{
			"kind":  e.Kind,
			"error": err,
		}).Warn("Failed to enqueue event")
		return
	}
	atomic.AddInt64(&b.metrics.Published, 1)
	atomic.AddInt64(&b.metrics.Overwritten, int64(overwrites))

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Subscribe registers a subscriber. When kinds is non-empty only those kinds
// are delivered.
func (b *Bus) Subscribe(kinds ...Kind) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &Subscription{
		id:   b.nextID,
		bus:  b,
		ring: NewRing[Event](b.subBuf),
	}
	if len(kinds) > 0 {
		s.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = struct{}{}
		}
	}
	b.nextID++

	if b.closed.Load() {
		s.ring.Close()
		return s
	}
	b.subs[s.id] = s
	return s
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	_, ok := b.subs[s.id]
	delete(b.subs, s.id)
	b.mu.Unlock()
	if ok {
		s.ring.Close()
	}
}

// Close stops the dispatcher after draining queued events and closes every
// subscription channel.
func (b *Bus) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		<-b.done
		return
	}
	b.cancel()
	<-b.done

	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[int]*Subscription)
	b.mu.Unlock()

	for _, s := range subs {
		s.ring.Close()
	}
	b.logger.WithField("published", atomic.LoadInt64(&b.metrics.Published)).Debug("Event bus closed")
}

// GetMetrics returns a snapshot of the bus counters.
func (b *Bus) GetMetrics() BusMetrics {
	return BusMetrics{
		Published:   atomic.LoadInt64(&b.metrics.Published),
		Overwritten: atomic.LoadInt64(&b.metrics.Overwritten),
		Dispatched:  atomic.LoadInt64(&b.metrics.Dispatched),
		Dropped:     atomic.LoadInt64(&b.metrics.Dropped),
		Errors:      atomic.LoadInt64(&b.metrics.Errors),
	}
}

func (b *Bus) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.drain()
			return
		case <-b.wake:
			b.drain()
		}
	}
}

func (b *Bus) drain() {
	for !b.queue.IsEmpty() {
		e, err := b.queue.Dequeue()
		if err != nil {
			// the ring reports empty under a racing producer; the next wake picks it up
			return
		}
		b.dispatch(e)
	}
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.wants(e.Kind) {
			continue
		}
		if s.ring.Push(e) {
			atomic.AddInt64(&b.metrics.Dropped, 1)
		}
	}
	atomic.AddInt64(&b.metrics.Dispatched, 1)
}

// Subscription is one consumer of a Bus.
type Subscription struct {
	id    int
	bus   *Bus
	ring  *Ring[Event]
	kinds map[Kind]struct{}
	once  sync.Once
}

// C returns the delivery channel. It is closed by Unsubscribe or Bus.Close.
func (s *Subscription) C() <-chan Event {
	return s.ring.C()
}

// Unsubscribe stops delivery and closes C.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.bus.unsubscribe(s) })
}

// Stats returns the subscriber buffer counters.
func (s *Subscription) Stats() RingStats {
	return s.ring.Stats()
}

func (s *Subscription) wants(k Kind) bool {
	if s.kinds == nil {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}
