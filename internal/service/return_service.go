package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/events"
	"github.com/teilehaus/serviceportal/internal/repository"
	"github.com/teilehaus/serviceportal/internal/validation"
)

type returnService struct {
	repos  *repository.Repositories
	audit  auditor
	logger *zap.Logger
}

// NewReturnService creates a new return service
func NewReturnService(repos *repository.Repositories, publisher events.Publisher, logger *zap.Logger) *returnService {
	return &returnService{
		repos:  repos,
		audit:  auditor{repos: repos, publisher: publisher, logger: logger},
		logger: logger,
	}
}

// SubmitReturn validates and stores a return request with its items
func (s *returnService) SubmitReturn(ctx context.Context, input *domain.ReturnInput) (uuid.UUID, error) {
	if err := validation.ValidateReturn(input).Err(); err != nil {
		return uuid.Nil, err
	}

	ret := &domain.Return{
		CustomerNumber: input.CustomerNumber,
		CustomerName:   input.CustomerName,
		Email:          input.Email,
		Comments:       input.Comments,
		Status:         domain.ReturnStatusPending,
		Items:          make([]*domain.ReturnItem, 0, len(input.Items)),
	}
	for _, item := range input.Items {
		// a free-text reason is only kept for "other"
		if item.ReturnReason != domain.ReturnReasonOther {
			item.OtherReason = nil
		}
		ret.Items = append(ret.Items, &domain.ReturnItem{ReturnItemInput: item})
	}

	if err := s.repos.Return.Create(ctx, ret); err != nil {
		return uuid.Nil, err
	}

	s.logger.Info("Return submitted",
		zap.String("return_id", ret.ID.String()),
		zap.String("customer_number", ret.CustomerNumber),
		zap.Int("items", len(ret.Items)),
	)
	s.audit.created(ctx, domain.RecordKindReturn, ret.ID, string(ret.Status))

	return ret.ID, nil
}

// ListReturns returns returns newest first
func (s *returnService) ListReturns(ctx context.Context, filter domain.Filter) ([]*domain.Return, error) {
	return s.repos.Return.List(ctx, filter)
}

// GetReturnDetail joins a return with its items
func (s *returnService) GetReturnDetail(ctx context.Context, id uuid.UUID) (*ReturnDetail, error) {
	ret, err := s.repos.Return.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &ReturnDetail{Return: ret, Items: []*domain.ReturnItem{}}
	if items, err := s.repos.ReturnItem.GetByReturnID(ctx, id); err != nil {
		s.logger.Error("Failed to load return items", zap.String("return_id", id.String()), zap.Error(err))
		detail.Unavailable = append(detail.Unavailable, PartItems)
	} else {
		detail.Items = items
	}

	return detail, nil
}

// SetStatus applies any valid status as an administrative override
func (s *returnService) SetStatus(ctx context.Context, id uuid.UUID, change StatusChange) (*domain.Return, error) {
	return s.changeStatus(ctx, id, change, false)
}

// Transition applies a status change only when the transition table allows it
func (s *returnService) Transition(ctx context.Context, id uuid.UUID, change StatusChange) (*domain.Return, error) {
	return s.changeStatus(ctx, id, change, true)
}

func (s *returnService) changeStatus(ctx context.Context, id uuid.UUID, change StatusChange, strict bool) (*domain.Return, error) {
	to := domain.ReturnStatus(change.Status)
	if !to.IsValid() {
		return nil, invalidStatus(change.Status)
	}

	current, err := s.repos.Return.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	forced, err := checkTransition(string(current.Status), change.Status, current.Status.CanTransitionTo(to), strict)
	if err != nil {
		return nil, err
	}

	updated, err := s.repos.Return.UpdateStatus(ctx, id, repository.StatusPatch{
		Status:        change.Status,
		ProcessorName: change.ProcessorName,
		Notes:         change.Notes,
	})
	if err != nil {
		return nil, err
	}

	s.audit.statusChanged(ctx, domain.RecordKindReturn, id, string(current.Status), change.Status, change, forced)
	return updated, nil
}

// Delete removes the return with its items and audit trail
func (s *returnService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repos.Return.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Return deleted", zap.String("return_id", id.String()))
	s.audit.deleted(ctx, domain.RecordKindReturn, id)
	return nil
}

// Events returns the audit trail of a return, oldest first
func (s *returnService) Events(ctx context.Context, id uuid.UUID) ([]*domain.StatusEvent, error) {
	if _, err := s.repos.Return.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.audit.events(ctx, domain.RecordKindReturn, id)
}
