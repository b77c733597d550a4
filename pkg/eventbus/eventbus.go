// Package eventbus fans broadcasts out to zero or more subscribers
// (spec.md §4.12). Delivery is best-effort: a subscriber whose channel
// is full is skipped rather than allowed to block the broadcaster.
package eventbus

import (
	"sync"

	"github.com/sefs-dev/sefs/pkg/model"
)

// subscriberBuffer bounds each subscriber's channel; a slow consumer
// drops events past this rather than stalling the event loop.
const subscriberBuffer = 64

// Bus fans model.Broadcast values out to subscribers. The zero value
// is not usable; construct with New.
type Bus struct {
	mu   sync.Mutex
	subs map[chan model.Broadcast]struct{}
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[chan model.Broadcast]struct{})}
}

// Subscribe registers a new subscriber and returns its channel along
// with an unsubscribe function the caller must call when done
// listening (e.g. on SSE client disconnect).
func (b *Bus) Subscribe() (<-chan model.Broadcast, func()) {
	ch := make(chan model.Broadcast, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Publish fans out b to every current subscriber. Iteration runs over
// a snapshot of the subscriber set, and the lock stays held until the
// sends (which never block) are done, so an unsubscribe cannot close a
// channel while the broadcast is sending to it.
func (bus *Bus) Publish(b model.Broadcast) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	snapshot := make([]chan model.Broadcast, 0, len(bus.subs))
	for ch := range bus.subs {
		snapshot = append(snapshot, ch)
	}

	for _, ch := range snapshot {
		select {
		case ch <- b:
		default:
			// Dead or slow subscriber: drop the event rather than block.
		}
	}
}

// SubscriberCount reports how many subscribers are currently attached.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
