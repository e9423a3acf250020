package history

import (
	"context"
	"sync"

	"steward/pkg/logging"
)

// Broadcaster fans events out to in-process subscribers. It is used for
// discrete operation notifications (service installs, removals and file
// copies) that carry no lifecycle state.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
}

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[int]chan Event)}
}

// Record implements Recorder. Slow subscribers miss events.
func (b *Broadcaster) Record(_ context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			logging.Debug("History", "Subscriber blocked, skipping notification %s for %s", event.Text, event.ServerLabel)
		}
	}
	return nil
}

// Subscribe returns a channel of events and a function that closes it.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 100)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(ch)
		}
	}
}
