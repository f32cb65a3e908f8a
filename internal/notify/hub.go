package notify

import (
	"context"
	"sync"

	"labbroker/pkg/logger"
	"labbroker/pkg/model"
)

const DefaultBufferSize = 32

// Subscription receives events on C until Close is called.
type Subscription struct {
	C         <-chan model.Event
	recipient string
	ch        chan model.Event
	hub       *Hub
	once      sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub is the in-process fan-out to connected subscribers. A subscriber that
// does not keep up loses events rather than blocking the sender.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
	bufferSize  int
	log         *logger.Logger
}

func NewHub(bufferSize int, log *logger.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		subscribers: make(map[*Subscription]struct{}),
		bufferSize:  bufferSize,
		log:         log,
	}
}

// Subscribe registers a subscriber for recipient. It receives events
// addressed to recipient and every broadcast. An empty recipient receives
// only broadcasts.
func (h *Hub) Subscribe(recipient string) *Subscription {
	ch := make(chan model.Event, h.bufferSize)
	sub := &Subscription{C: ch, recipient: recipient, ch: ch, hub: h}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("Subscriber connected", "recipient", recipient)
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.ch)
		h.log.Debug("Subscriber disconnected", "recipient", sub.recipient)
	}
}

func (h *Hub) Notify(ctx context.Context, event model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers {
		if event.Recipient != "" && sub.recipient != event.Recipient {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			h.log.Warn("Dropping event for slow subscriber", "recipient", sub.recipient, "type", event.Type)
		}
	}
	return nil
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
