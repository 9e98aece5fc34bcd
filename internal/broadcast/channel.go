package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Channel is the publish/subscribe surface used by handlers and the tab
// transport: it stores the value, notifies local subscribers and relays to
// other instances.
type Channel struct {
	storage *Storage
	hub     *Hub
	bus     Bus
	logger  *zap.Logger
}

// NewChannel creates a channel. bus may be nil for a single instance.
func NewChannel(storage *Storage, hub *Hub, bus Bus, logger *zap.Logger) *Channel {
	return &Channel{
		storage: storage,
		hub:     hub,
		bus:     bus,
		logger:  logger,
	}
}

// Publish stores value under key and notifies every subscriber except origin.
// Relay failures are logged and not returned.
func (c *Channel) Publish(ctx context.Context, origin, key string, value interface{}) error {
	raw, ok := value.(json.RawMessage)
	if !ok {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		raw = data
	}

	msg := Message{Key: key, Value: raw, Origin: origin}
	c.storage.Set(key, raw)
	delivered := c.hub.Publish(msg)

	if c.bus != nil {
		if err := c.bus.Publish(ctx, msg); err != nil {
			c.logger.Warn("Failed to relay broadcast", zap.String("key", key), zap.Error(err))
		}
	}

	c.logger.Debug("Broadcast published",
		zap.String("key", key),
		zap.String("origin", origin),
		zap.Int("local_subscribers", delivered),
	)
	return nil
}

// Get returns the current value of key
func (c *Channel) Get(key string) (json.RawMessage, bool) {
	return c.storage.Get(key)
}

// Subscribe registers handler for key. subscriberID must be the id the
// subscriber publishes with, so it does not hear its own writes.
func (c *Channel) Subscribe(key, subscriberID string, handler Handler) func() {
	return c.hub.Subscribe(key, subscriberID, handler)
}
