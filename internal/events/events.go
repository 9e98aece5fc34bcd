// Package events publishes record lifecycle events for other services.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/natsutil"
)

// Event types
const (
	TypeCreated       = "created"
	TypeStatusChanged = "status_changed"
	TypeDeleted       = "deleted"
)

// Event is the payload published for every record mutation
type Event struct {
	Type       string            `json:"type"`
	RecordKind domain.RecordKind `json:"recordKind"`
	RecordID   uuid.UUID         `json:"recordId"`
	From       string            `json:"from,omitempty"`
	To         string            `json:"to,omitempty"`
	Forced     bool              `json:"forced,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// Subject returns the NATS subject of e, e.g. serviceportal.complaint.status_changed
func (e Event) Subject() string {
	return "serviceportal." + string(e.RecordKind) + "." + e.Type
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NATSPublisher publishes events on per-kind subjects
type NATSPublisher struct {
	nc *nats.Conn
}

func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return natsutil.Publish(ctx, p.nc, e.Subject(), e)
}

// NopPublisher drops every event. Used when NATS_URL is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
