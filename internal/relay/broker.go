// Package relay fans captured exchanges out to live subscribers.
package relay

import (
	"sync"
	"sync/atomic"
)

const subscriberBufSize = 256

// Event is one captured exchange ready to be pushed to a live client.
// Data holds the JSON encoding of the exchange.
type Event struct {
	ID        uint64
	Operation string
	Data      []byte
}

// Broker fans out events to every subscribed SSE or WebSocket client.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
	dropped     atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Event),
	}
}

// Subscribe registers a new client and returns its ID and event channel.
// The channel is buffered; slow consumers lose events.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown IDs are
// ignored.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish never blocks the caller.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped is the total number of events not delivered to slow clients.
func (b *Broker) Dropped() int64 {
	return b.dropped.Load()
}
