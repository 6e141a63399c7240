// Package relay pushes game events to every connected websocket client.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/geopick/geopick/internal/claim"
)

// Hub is an in-process fan-out of JSON messages to subscribers.
// Delivery is at-most-once: a subscriber whose buffer is full misses the
// message.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan []byte]struct{})}
}

// Subscribe returns a channel that receives every broadcast message.
func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// Len returns the number of current subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast sends data to all subscribers and returns how many got it.
func (h *Hub) Broadcast(data []byte) int {
	delivered := 0
	h.mu.RLock()
	for ch := range h.subs {
		select {
		case ch <- data:
			delivered++
		default:
			// Drop if subscriber is slow.
		}
	}
	h.mu.RUnlock()
	return delivered
}

// Publish implements claim.Broadcaster.
func (h *Hub) Publish(_ context.Context, e claim.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	h.Broadcast(data)
	return nil
}
