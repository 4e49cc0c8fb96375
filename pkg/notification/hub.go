package notification

import (
	"sync"

	"github.com/ignacioelizeche/controlid/pkg/model"
	log "github.com/sirupsen/logrus"
)

const subscriberBuffer = 64

// Hub broadcasts notifications to in-process subscribers such as websocket
// clients. Slow subscribers miss notifications instead of blocking ingestion.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan Entry
	nextID int
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Entry)}
}

// Subscribe registers a subscriber. The returned function unsubscribes and
// closes the channel.
func (h *Hub) Subscribe() (<-chan Entry, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Entry, subscriberBuffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish implements Publisher.
func (h *Hub) Publish(n *model.Notification) error {
	e := NewEntry(n)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			log.WithField("subscriber", id).Debug("dropping notification for slow subscriber")
		}
	}

	return nil
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
