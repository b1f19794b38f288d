package events

import (
	"context"
	"sync"
)

// Subscription receives events from a Bus. Safe for concurrent use.
type Subscription struct {
	mu      sync.Mutex
	pending []Event
	limit   int
	notify  chan struct{}
	out     chan Event
	closed  bool
	done    chan struct{}
}

func newSubscription(limit int) *Subscription {
	s := &Subscription{
		pending: make([]Event, 0, limit),
		limit:   limit,
		notify:  make(chan struct{}, 1),
		out:     make(chan Event),
		done:    make(chan struct{}),
	}
	go s.pump()
	return s
}

// Events returns the channel events are delivered on. The channel is closed
// once the subscription is closed; events still pending at that point are
// discarded.
func (s *Subscription) Events() <-chan Event {
	return s.out
}

// Close stops delivery and closes the events channel. Idempotent.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	// Wake the pump so it can observe the closed state.
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// push enqueues an event, never blocking the caller. When the pending queue
// is at its limit, the oldest progress event is evicted to make room; if
// nothing is evictable and the new event is itself progress, it is dropped.
// Lifecycle events are always admitted; they are finite per job, so the
// queue stays effectively bounded.
func (s *Subscription) push(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if len(s.pending) >= s.limit {
		if !s.evictOldestProgress() && !e.Type.Lifecycle() {
			return
		}
	}

	s.pending = append(s.pending, e)

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// evictOldestProgress removes the first pending progress event. Reports
// whether anything was removed. Caller holds the mutex.
func (s *Subscription) evictOldestProgress() bool {
	for i, e := range s.pending {
		if !e.Type.Lifecycle() {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// pump drains the pending queue into the delivery channel. A slow consumer
// only ever blocks its own pump; publishers keep appending (and evicting
// progress) through push.
func (s *Subscription) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			closed := s.closed
			s.mu.Unlock()

			if closed {
				return
			}

			select {
			case <-s.notify:
				continue
			case <-s.done:
				continue
			}
		}

		e := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- e:
		case <-s.done:
			return
		}
	}
}

// Bus fans events out to any number of subscriptions. All methods are safe
// for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
	bufferSize  int
	closed      bool
	cleanupWg   sync.WaitGroup
}

// NewBus creates a bus. bufferSize is the per-subscriber pending limit at
// which progress events start being evicted; a minimum of 1 is enforced.
func NewBus(bufferSize int) *Bus {
	return &Bus{
		subscribers: make(map[*Subscription]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
}

// Subscribe registers a new observer. The subscription is cleaned up when
// the provided context is cancelled or when its Close method is called.
// Subscribing to a closed bus returns an already-closed subscription.
func (b *Bus) Subscribe(ctx context.Context) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscription(b.bufferSize)

	if b.closed {
		sub.Close()
		return sub
	}

	b.subscribers[sub] = struct{}{}

	if ctx.Done() != nil {
		b.cleanupWg.Add(1)
		go func() {
			defer b.cleanupWg.Done()
			select {
			case <-ctx.Done():
				b.unsubscribe(sub)
			case <-sub.done:
			}
		}()
	}

	return sub
}

// Publish delivers an event to every current subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for sub := range b.subscribers {
		sub.push(e)
	}
}

// Close shuts down the bus and closes every subscription. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true

	for sub := range b.subscribers {
		sub.Close()
	}
	clear(b.subscribers)
	b.mu.Unlock()

	b.cleanupWg.Wait()
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	sub.Close()
}
