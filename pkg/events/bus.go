package events

import (
	"sync"
	"sync/atomic"
)

// Publisher receives events from the analysis loop. Publish must not block.
type Publisher interface {
	Publish(e Event)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(e Event)

func (f PublisherFunc) Publish(e Event) { f(e) }

// Discard drops every event
var Discard Publisher = PublisherFunc(func(Event) {})

// Bus fans events out to subscribers. A subscriber whose buffer is full misses
// the event instead of stalling the publisher.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	nextID  uint64
	closed  bool
	dropped atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[uint64]chan Event),
	}
}

// Subscribe returns a channel of events and a function that cancels the
// subscription and closes the channel
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of active subscriptions
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped is the number of deliveries skipped because a subscriber was full
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Recorder keeps every published event, for tests and offline runs
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns the recorded events of one kind in order
func (r *Recorder) OfKind(kind Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, e := range r.events {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Multi publishes to several publishers in order
type Multi []Publisher

func (m Multi) Publish(e Event) {
	for _, p := range m {
		p.Publish(e)
	}
}
