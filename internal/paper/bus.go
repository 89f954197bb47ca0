package paper

import (
	"log"
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 256

// Bus fans runner events out to subscribers. Publishing never blocks the
// runner: a subscriber that falls more than subscriberBuffer events behind
// loses the overflow.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	dropped atomic.Int64
	log     *log.Logger
}

// NewBus creates an event bus.
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{subs: make(map[int]chan Event), log: logger}
}

// Subscribe registers an observer. The returned cancel function removes the
// subscription and closes its channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
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

// Publish delivers the event to every subscriber in registration order.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
			b.log.Printf("event bus: subscriber %d full, dropped %s event", id, ev.Type)
		}
	}
}

// Dropped returns the number of events lost to slow subscribers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
