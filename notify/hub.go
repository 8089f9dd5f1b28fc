// Package notify pushes command outcomes to live portal connections.
package notify

import "sync"

// Hub tracks active real-time connections per user. A user may hold
// several connections (multiple tabs); every one receives the push.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan []byte]struct{})}
}

// Subscribe registers a connection channel for the user.
func (h *Hub) Subscribe(userID string) chan []byte {
	ch := make(chan []byte, 8)
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan []byte]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a connection channel.
func (h *Hub) Unsubscribe(userID string, ch chan []byte) {
	h.mu.Lock()
	if set, ok := h.subs[userID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.subs, userID)
		}
	}
	h.mu.Unlock()
}

// Push delivers data to every live connection of the user and reports
// whether at least one connection received it. Slow connections are
// skipped rather than blocked on.
func (h *Hub) Push(userID string, data []byte) bool {
	delivered := false
	h.mu.Lock()
	for ch := range h.subs[userID] {
		select {
		case ch <- data:
			delivered = true
		default:
		}
	}
	h.mu.Unlock()
	return delivered
}
