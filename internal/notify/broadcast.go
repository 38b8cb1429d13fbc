// Package notify carries push-style updates between components: store
// mutations feeding live feed subscriptions, auth state transitions, and
// backfill job progress.
package notify

import "sync"

// Broadcaster fans a value out to all current subscribers. Slow subscribers
// drop updates instead of blocking the publisher.
type Broadcaster[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]chan T
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[int]chan T)}
}

// Subscribe returns a receive channel and a cancel function. Cancel must be
// called to release the subscription.
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan T, 16)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Len reports the number of active subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
