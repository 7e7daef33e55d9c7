package service

import "sync"

// Event resources.
const (
	ResourceDatasets = "datasets"
	ResourceStory    = "story"
)

// Event is a dataset load outcome or a render command.
type Event struct {
	Resource string // "datasets" or "story"
	Action   string // "loaded", "unavailable", or a narrative command op
	ID       string // dataset key or layer; the chapter for "entered"
	Data     any
}

// EventBus is a simple fan-out pub/sub for events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	size int
}

// NewEventBus creates a bus whose subscribers buffer size events.
func NewEventBus(size int) *EventBus {
	if size <= 0 {
		size = 64
	}
	return &EventBus{subs: make(map[chan Event]struct{}), size: size}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, b.size)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}

// Subscribers reports how many channels are attached.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
