package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/broadcast"
	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/events"
	"github.com/teilehaus/serviceportal/internal/repository"
	"github.com/teilehaus/serviceportal/internal/validation"
)

type inquiryService struct {
	repos   *repository.Repositories
	channel *broadcast.Channel
	audit   auditor
	logger  *zap.Logger
}

// NewInquiryService creates a new inquiry service. After every mutation the
// full list of the affected type is republished on channel under the type's
// storage key, so open tabs see the change.
func NewInquiryService(repos *repository.Repositories, channel *broadcast.Channel, publisher events.Publisher, logger *zap.Logger) *inquiryService {
	return &inquiryService{
		repos:   repos,
		channel: channel,
		audit:   auditor{repos: repos, publisher: publisher, logger: logger},
		logger:  logger,
	}
}

// SubmitInquiry validates and stores an inquiry of any type
func (s *inquiryService) SubmitInquiry(ctx context.Context, sub InquirySubmission) (*domain.Inquiry, error) {
	if err := validation.ValidateInquiry(sub.Type, sub.Data).Err(); err != nil {
		return nil, err
	}

	inquiry := &domain.Inquiry{
		Type:   sub.Type,
		Data:   sub.Data,
		Status: domain.InquiryStatusNew,
	}
	if err := s.repos.Inquiry.Create(ctx, inquiry); err != nil {
		return nil, err
	}

	s.logger.Info("Inquiry submitted",
		zap.String("inquiry_id", inquiry.ID.String()),
		zap.String("type", string(inquiry.Type)),
	)
	s.audit.created(ctx, domain.RecordKindInquiry, inquiry.ID, string(inquiry.Status))
	s.republish(ctx, inquiry.Type)

	return inquiry, nil
}

// ListInquiries returns inquiries newest first
func (s *inquiryService) ListInquiries(ctx context.Context, filter domain.Filter) ([]*domain.Inquiry, error) {
	return s.repos.Inquiry.List(ctx, filter)
}

func (s *inquiryService) GetInquiry(ctx context.Context, id uuid.UUID) (*domain.Inquiry, error) {
	return s.repos.Inquiry.GetByID(ctx, id)
}

// SetStatus applies any valid status as an administrative override
func (s *inquiryService) SetStatus(ctx context.Context, id uuid.UUID, change StatusChange) (*domain.Inquiry, error) {
	return s.changeStatus(ctx, id, change, false)
}

// Transition applies a status change only when the transition table allows it
func (s *inquiryService) Transition(ctx context.Context, id uuid.UUID, change StatusChange) (*domain.Inquiry, error) {
	return s.changeStatus(ctx, id, change, true)
}

func (s *inquiryService) changeStatus(ctx context.Context, id uuid.UUID, change StatusChange, strict bool) (*domain.Inquiry, error) {
	to := domain.InquiryStatus(change.Status)
	if !to.IsValid() {
		return nil, invalidStatus(change.Status)
	}

	current, err := s.repos.Inquiry.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	forced, err := checkTransition(string(current.Status), change.Status, current.Status.CanTransitionTo(to), strict)
	if err != nil {
		return nil, err
	}

	updated, err := s.repos.Inquiry.UpdateStatus(ctx, id, repository.StatusPatch{
		Status:        change.Status,
		ProcessorName: change.ProcessorName,
		Notes:         change.Notes,
	})
	if err != nil {
		return nil, err
	}

	s.audit.statusChanged(ctx, domain.RecordKindInquiry, id, string(current.Status), change.Status, change, forced)
	s.republish(ctx, updated.Type)
	return updated, nil
}

// Delete removes the inquiry and its audit trail
func (s *inquiryService) Delete(ctx context.Context, id uuid.UUID) error {
	current, err := s.repos.Inquiry.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repos.Inquiry.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Inquiry deleted", zap.String("inquiry_id", id.String()))
	s.audit.deleted(ctx, domain.RecordKindInquiry, id)
	s.republish(ctx, current.Type)
	return nil
}

// Events returns the audit trail of an inquiry, oldest first
func (s *inquiryService) Events(ctx context.Context, id uuid.UUID) ([]*domain.StatusEvent, error) {
	if _, err := s.repos.Inquiry.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.audit.events(ctx, domain.RecordKindInquiry, id)
}

// republish writes the current list of typ to its storage key. Failures
// are logged; the mutation itself already succeeded.
func (s *inquiryService) republish(ctx context.Context, typ domain.InquiryType) {
	if s.channel == nil {
		return
	}
	list, err := s.repos.Inquiry.List(ctx, domain.Filter{Type: typ})
	if err != nil {
		s.logger.Warn("Failed to load inquiries for broadcast", zap.String("type", string(typ)), zap.Error(err))
		return
	}
	if err := s.channel.Publish(ctx, originFrom(ctx), typ.StorageKey(), list); err != nil {
		s.logger.Warn("Failed to broadcast inquiries", zap.String("type", string(typ)), zap.Error(err))
	}
}
