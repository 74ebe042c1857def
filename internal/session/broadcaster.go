package session

import (
	"sync"
	"sync/atomic"

	"impound-lot-finder/internal/models"
)

const subscriberBuffer = 16

// Broadcaster fans snapshots out to stream subscribers
type Broadcaster struct {
	subscribers map[uint64]chan models.Snapshot
	nextID      atomic.Uint64
	mu          sync.RWMutex
	closed      bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan models.Snapshot),
	}
}

// Subscribe registers a subscriber. The channel is closed by Unsubscribe or
// Close; it is returned already closed if the broadcaster is closed.
func (b *Broadcaster) Subscribe() (uint64, <-chan models.Snapshot) {
	id := b.nextID.Add(1)
	ch := make(chan models.Snapshot, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subscribers[id] = ch
	}
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Broadcast(snap models.Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- snap:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing streams to exit
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
