// Package broadcast propagates keyed JSON values between the open admin
// tabs and between server instances. A publisher never receives its own
// message; delivery is best-effort and the last write of a key wins.
package broadcast

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Well-known keys
const (
	KeyContactInquiries = "contactInquiries"
	KeyMotorInquiries   = "motorInquiries"
	KeyB2BRegistrations = "b2bRegistrations"
	KeyPopupConfig      = "popupConfig"
)

// Message is one keyed value change. Origin identifies the publishing tab
// or process and is excluded from delivery.
type Message struct {
	Key    string          `json:"key"`
	Value  json.RawMessage `json:"value"`
	Origin string          `json:"origin,omitempty"`
}

// Handler receives messages for a subscribed key
type Handler func(Message)

// Storage is the shared key/value area behind the channel
type Storage struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

// NewStorage creates an empty storage
func NewStorage() *Storage {
	return &Storage{values: make(map[string]json.RawMessage)}
}

// Get returns a copy of the stored value
func (s *Storage) Get(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), v...), true
}

// Set overwrites the value of key
func (s *Storage) Set(key string, value json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append(json.RawMessage(nil), value...)
}

// subscription is one registration; seq tells registrations of the same
// subscriber id apart
type subscription struct {
	seq     uint64
	handler Handler
}

// Hub fans messages out to in-process subscribers
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[string]subscription // key -> subscriber id -> registration
	seq    uint64
	logger *zap.Logger
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[string]subscription),
		logger: logger,
	}
}

// Subscribe registers handler for key under subscriberID. A later call with
// the same pair replaces the handler. The returned func unsubscribes, and
// is a no-op once the registration has been replaced.
func (h *Hub) Subscribe(key, subscriberID string, handler Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[string]subscription)
	}
	h.seq++
	seq := h.seq
	h.subs[key][subscriberID] = subscription{seq: seq, handler: handler}
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if current, ok := h.subs[key][subscriberID]; !ok || current.seq != seq {
			return
		}
		delete(h.subs[key], subscriberID)
		if len(h.subs[key]) == 0 {
			delete(h.subs, key)
		}
	}
}

// Publish delivers msg to every subscriber of msg.Key except msg.Origin.
// It returns the number of handlers called.
func (h *Hub) Publish(msg Message) int {
	h.mu.RLock()
	targets := make([]Handler, 0, len(h.subs[msg.Key]))
	for id, sub := range h.subs[msg.Key] {
		if id == msg.Origin {
			continue
		}
		targets = append(targets, sub.handler)
	}
	h.mu.RUnlock()

	for _, handler := range targets {
		h.deliver(handler, msg)
	}
	return len(targets)
}

func (h *Hub) deliver(handler Handler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn("Broadcast handler panicked", zap.String("key", msg.Key), zap.Any("panic", r))
		}
	}()
	handler(msg)
}
