package app

import "sync"

// Hub fans balance changes out to live subscribers (the leaderboard feed).
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan BalanceChange]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan BalanceChange]struct{})}
}

// Subscribe returns a channel of balance changes.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe() (<-chan BalanceChange, func()) {
	ch := make(chan BalanceChange, 8)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish never blocks: a full subscriber loses its oldest pending change.
func (h *Hub) Publish(changes ...BalanceChange) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range changes {
		for ch := range h.subscribers {
			select {
			case ch <- c:
			default:
				select {
				case <-ch:
				default:
				}
				ch <- c
			}
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
