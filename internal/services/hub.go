package services

import "sync"

// Hub tracks live subscribers per chat and wakes them when the chat changes.
// Wake-ups are coalesced: a subscriber that is still busy delivering gets a
// single pending signal no matter how many appends happen meanwhile.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*hubSubscriber]struct{}
}

type hubSubscriber struct {
	notify chan struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*hubSubscriber]struct{})}
}

func (h *Hub) register(chatID string) *hubSubscriber {
	s := &hubSubscriber{notify: make(chan struct{}, 1)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[chatID] == nil {
		h.subs[chatID] = make(map[*hubSubscriber]struct{})
	}
	h.subs[chatID][s] = struct{}{}
	return s
}

func (h *Hub) unregister(chatID string, s *hubSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[chatID]
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, chatID)
	}
}

// Publish signals every subscriber of chatID without blocking.
func (h *Hub) Publish(chatID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[chatID] {
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscribers for chatID.
func (h *Hub) Subscribers(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[chatID])
}
