package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/events"
	"github.com/teilehaus/serviceportal/internal/repository"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

// Audit event types
const (
	EventCreated       = "created"
	EventStatusChanged = "status_changed"
)

type originKey struct{}

// WithOrigin tags ctx with the id of the tab that triggered a mutation, so
// broadcasts caused by it skip that tab.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

func originFrom(ctx context.Context) string {
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}

// auditor writes the audit trail and the domain event of a mutation.
// Neither failure undoes the mutation; both are logged.
type auditor struct {
	repos     *repository.Repositories
	publisher events.Publisher
	logger    *zap.Logger
}

func (a auditor) created(ctx context.Context, kind domain.RecordKind, id uuid.UUID, status string) {
	event := &domain.StatusEvent{
		RecordKind: kind,
		RecordID:   id,
		EventType:  EventCreated,
		To:         status,
	}
	if err := a.repos.StatusEvent.Create(ctx, event); err != nil {
		a.logger.Warn("Failed to write audit event", zap.String("kind", string(kind)), zap.String("id", id.String()), zap.Error(err))
	}
	a.publish(ctx, events.Event{Type: events.TypeCreated, RecordKind: kind, RecordID: id, To: status})
}

func (a auditor) statusChanged(ctx context.Context, kind domain.RecordKind, id uuid.UUID, from, to string, change StatusChange, forced bool) {
	event := &domain.StatusEvent{
		RecordKind:    kind,
		RecordID:      id,
		EventType:     EventStatusChanged,
		From:          from,
		To:            to,
		ProcessorName: change.ProcessorName,
		Notes:         change.Notes,
		Forced:        forced,
	}
	if err := a.repos.StatusEvent.Create(ctx, event); err != nil {
		a.logger.Warn("Failed to write audit event", zap.String("kind", string(kind)), zap.String("id", id.String()), zap.Error(err))
	}
	if forced {
		a.logger.Info("Status override outside the transition table",
			zap.String("kind", string(kind)),
			zap.String("id", id.String()),
			zap.String("from", from),
			zap.String("to", to),
		)
	}
	a.publish(ctx, events.Event{Type: events.TypeStatusChanged, RecordKind: kind, RecordID: id, From: from, To: to, Forced: forced})
}

func (a auditor) deleted(ctx context.Context, kind domain.RecordKind, id uuid.UUID) {
	a.publish(ctx, events.Event{Type: events.TypeDeleted, RecordKind: kind, RecordID: id})
}

func (a auditor) publish(ctx context.Context, e events.Event) {
	if err := a.publisher.Publish(ctx, e); err != nil {
		a.logger.Warn("Failed to publish domain event", zap.String("subject", e.Subject()), zap.Error(err))
	}
}

func (a auditor) events(ctx context.Context, kind domain.RecordKind, id uuid.UUID) ([]*domain.StatusEvent, error) {
	return a.repos.StatusEvent.ListByRecord(ctx, kind, id)
}

// checkTransition decides whether a status change may proceed. Strict mode
// refuses anything outside the table; permissive mode allows it and
// reports it as forced. Staying on the same status is never forced.
func checkTransition(from, to string, allowed, strict bool) (forced bool, err error) {
	if from == to {
		if strict {
			return false, &errors.ErrInvalidStateTransition{From: from, To: to}
		}
		return false, nil
	}
	if allowed {
		return false, nil
	}
	if strict {
		return false, &errors.ErrInvalidStateTransition{From: from, To: to}
	}
	return true, nil
}

func invalidStatus(status string) error {
	return &errors.ErrValidation{Fields: []errors.FieldError{{Field: "status", Message: "unknown status " + status}}}
}
