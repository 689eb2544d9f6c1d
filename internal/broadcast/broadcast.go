// Package broadcast fans auth-state changes out to subscribers in publish order.
package broadcast

import (
	"sync"

	"github.com/google/uuid"
)

// Listener receives one published value.
type Listener[E any] func(E)

// Subscription is a registered listener.
type Subscription[E any] struct {
	id    string
	owner *Broadcaster[E]
	once  sync.Once
}

// ID returns the subscription identifier.
func (s *Subscription[E]) ID() string {
	return s.id
}

// Unsubscribe removes the listener. It is safe to call more than once.
func (s *Subscription[E]) Unsubscribe() {
	s.once.Do(func() {
		s.owner.remove(s.id)
	})
}

type entry[E any] struct {
	id string
	fn Listener[E]
}

// Broadcaster delivers values to listeners in publish order, one value at a time. The
// goroutine that finds the broadcaster idle delivers its own value and everything queued
// meanwhile; other publishers, including listeners that publish, only enqueue. No lock is
// held while listeners run.
type Broadcaster[E any] struct {
	queueMu  sync.Mutex
	queue    []E
	draining bool

	mu        sync.RWMutex
	listeners []entry[E]
}

// Subscribe registers fn.
func (b *Broadcaster[E]) Subscribe(fn Listener[E]) *Subscription[E] {
	id := uuid.NewString()
	b.mu.Lock()
	b.listeners = append(b.listeners, entry[E]{id: id, fn: fn})
	b.mu.Unlock()
	return &Subscription[E]{id: id, owner: b}
}

func (b *Broadcaster[E]) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, l := range b.listeners {
		if l.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Publish delivers value to every current listener. When another delivery is running,
// value is queued behind it and Publish returns without waiting.
func (b *Broadcaster[E]) Publish(value E) {
	b.queueMu.Lock()
	b.queue = append(b.queue, value)
	if b.draining {
		b.queueMu.Unlock()
		return
	}
	b.draining = true
	b.queueMu.Unlock()

	for {
		b.queueMu.Lock()
		if len(b.queue) == 0 {
			b.queue = nil
			b.draining = false
			b.queueMu.Unlock()
			return
		}
		next := b.queue[0]
		b.queue = b.queue[1:]
		b.queueMu.Unlock()

		b.deliver(next)
	}
}

func (b *Broadcaster[E]) deliver(value E) {
	b.mu.RLock()
	listeners := make([]entry[E], len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		l.fn(value)
	}
}

// Len returns the number of listeners.
func (b *Broadcaster[E]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
