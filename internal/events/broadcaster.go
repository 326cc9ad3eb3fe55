package events

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Broadcaster delivers events to in-process subscribers. A subscriber whose
// buffer is full misses the event; publishing never blocks.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	logger logrus.FieldLogger
}

func NewBroadcaster(logger logrus.FieldLogger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[int]chan Event),
		logger: logger,
	}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// cancel func unregisters it and closes the channel.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of registered subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish implements Publisher.
func (b *Broadcaster) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.WithFields(logrus.Fields{
				"subscriber": id,
				"event_id":   e.ID,
				"type":       e.Type,
			}).Warn("Subscriber buffer full, dropping event")
		}
	}
	return nil
}

var _ Publisher = (*Broadcaster)(nil)
