package terminal

import (
	"sync"

	"github.com/GriffinCanCode/worktabs/internal/ws"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type subscription struct {
	id string
	fn Listener
}

// Hub fans out inbound frames to per-session listeners. Delivery is
// synchronous in the publisher's goroutine; there is no replay.
type Hub struct {
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[string][]subscription
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger, subs: make(map[string][]subscription)}
}

// Subscribe registers fn for sessionID. The returned func unsubscribes and
// may be called any number of times.
func (h *Hub) Subscribe(sessionID string, fn Listener) func() {
	sub := subscription{id: uuid.NewString(), fn: fn}

	h.mu.Lock()
	h.subs[sessionID] = append(h.subs[sessionID], sub)
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(sessionID, sub.id) })
	}
}

func (h *Hub) unsubscribe(sessionID, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.subs[sessionID]
	for i, s := range list {
		if s.id == subID {
			next := make([]subscription, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			if len(next) == 0 {
				delete(h.subs, sessionID)
			} else {
				h.subs[sessionID] = next
			}
			return
		}
	}
}

// Publish delivers f to the listeners subscribed when the call starts, in
// subscription order. A panicking listener is logged and skipped.
func (h *Hub) Publish(sessionID string, f ws.Frame) {
	h.mu.RLock()
	list := h.subs[sessionID]
	h.mu.RUnlock()

	for _, s := range list {
		h.deliver(sessionID, s, f)
	}
}

func (h *Hub) deliver(sessionID string, s subscription, f ws.Frame) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Terminal listener panicked",
				zap.String("session_id", sessionID),
				zap.String("subscription", s.id),
				zap.Any("panic", r),
			)
		}
	}()
	s.fn(f)
}

// Subscribers returns the number of listeners for sessionID
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
