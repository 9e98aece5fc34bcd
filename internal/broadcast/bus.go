package broadcast

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/natsutil"
)

// Subject carries broadcast messages between server instances
const Subject = "serviceportal.broadcast"

// Bus relays messages to other server instances
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// envelope tags a message with the instance that sent it
type envelope struct {
	Instance string  `json:"instance"`
	Message  Message `json:"message"`
}

// NATSBus relays messages over NATS. Messages from other instances are
// written to the local storage and fed to the local hub, so origin
// filtering applies there as well.
type NATSBus struct {
	nc       *nats.Conn
	sub      *nats.Subscription
	instance string
	logger   *zap.Logger
}

// NewNATSBus subscribes to the broadcast subject and returns a bus
func NewNATSBus(nc *nats.Conn, storage *Storage, hub *Hub, logger *zap.Logger) (*NATSBus, error) {
	b := &NATSBus{
		nc:       nc,
		instance: uuid.NewString(),
		logger:   logger,
	}

	sub, err := natsutil.Subscribe(nc, Subject, func(ctx context.Context, env envelope) {
		if env.Instance == b.instance {
			return
		}
		storage.Set(env.Message.Key, env.Message.Value)
		hub.Publish(env.Message)
	}, func(subject string, err error) {
		logger.Warn("Dropping malformed broadcast message", zap.String("subject", subject), zap.Error(err))
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", Subject, err)
	}
	b.sub = sub

	return b, nil
}

func (b *NATSBus) Publish(ctx context.Context, msg Message) error {
	return natsutil.Publish(ctx, b.nc, Subject, envelope{Instance: b.instance, Message: msg})
}

func (b *NATSBus) Close() error {
	return b.sub.Unsubscribe()
}
