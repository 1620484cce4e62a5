package server

import (
	"sync"

	"github.com/pawmate/autoreply/src/storage"
)

// Hub fans persisted messages out to websocket subscribers, keyed by
// conversation. A reply that lands after every subscriber is gone is simply
// not delivered; it stays in storage and appears on the next load.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan *storage.Message]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan *storage.Message]struct{})}
}

// Subscribe registers a subscriber for one conversation. The returned channel
// is buffered; slow consumers drop messages rather than block the pipeline.
func (h *Hub) Subscribe(conversationID string) chan *storage.Message {
	ch := make(chan *storage.Message, 16)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[conversationID] == nil {
		h.subs[conversationID] = make(map[chan *storage.Message]struct{})
	}
	h.subs[conversationID][ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(conversationID string, ch chan *storage.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[conversationID]; ok {
		if _, ok := set[ch]; ok {
			delete(set, ch)
			close(ch)
		}
		if len(set) == 0 {
			delete(h.subs, conversationID)
		}
	}
}

// NotifyMessage implements orchestrator.Notifier.
func (h *Hub) NotifyMessage(msg *storage.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[msg.ConversationID] {
		select {
		case ch <- msg:
		default:
		}
	}
}
