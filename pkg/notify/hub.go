package notify

import (
	"context"
	"sync"
)

// DefaultBuffer is the per-subscriber backlog before events are dropped.
const DefaultBuffer = 16

// Hub delivers status changes to in-process subscribers. A subscriber that
// falls behind loses events instead of blocking the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan StatusChange
	nextID int
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan StatusChange)}
}

// Subscribe returns a channel of changes and a func that unsubscribes and
// closes the channel.
func (h *Hub) Subscribe() (<-chan StatusChange, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan StatusChange, DefaultBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

func (h *Hub) Publish(_ context.Context, change StatusChange) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- change:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
