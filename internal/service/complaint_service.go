package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/events"
	"github.com/teilehaus/serviceportal/internal/repository"
	"github.com/teilehaus/serviceportal/internal/storage"
	"github.com/teilehaus/serviceportal/internal/validation"
	"github.com/teilehaus/serviceportal/internal/wizard"
)

var _ wizard.Submitter = (*complaintService)(nil)

type complaintService struct {
	repos   *repository.Repositories
	objects storage.Store
	audit   auditor
	logger  *zap.Logger
}

// NewComplaintService creates a new complaint service. objects may be nil,
// in which case deleting a complaint leaves its files in place.
func NewComplaintService(repos *repository.Repositories, objects storage.Store, publisher events.Publisher, logger *zap.Logger) *complaintService {
	return &complaintService{
		repos:   repos,
		objects: objects,
		audit:   auditor{repos: repos, publisher: publisher, logger: logger},
		logger:  logger,
	}
}

// SubmitComplaint validates the whole draft and stores it with its items,
// vehicle data and attachment metadata. The new complaint is pending.
func (s *complaintService) SubmitComplaint(ctx context.Context, draft *domain.ComplaintDraft) (uuid.UUID, error) {
	if err := validation.ValidateComplete(draft).Err(); err != nil {
		return uuid.Nil, err
	}

	complaint := &domain.Complaint{
		CustomerReference:   draft.CustomerReference,
		ReceiptNumber:       draft.ReceiptNumber,
		Description:         draft.Description,
		ErrorDate:           draft.ErrorDate,
		DeliveryForm:        draft.DeliveryForm,
		PreferredProcessing: draft.PreferredProcessing,
		AdditionalInfo:      draft.AdditionalInfo,
		AdditionalCosts:     draft.AdditionalCosts,
		Legal:               draft.Legal,
		Status:              domain.ComplaintStatusPending,
	}

	complaint.Items = make([]*domain.ComplaintItem, 0, len(draft.Items))
	for _, item := range draft.Items {
		complaint.Items = append(complaint.Items, &domain.ComplaintItem{ItemInput: item})
	}
	if draft.VehicleData != nil {
		complaint.VehicleData = &domain.VehicleData{VehicleInput: *draft.VehicleData}
	}
	complaint.Attachments = make([]*domain.Attachment, 0, len(draft.Attachments))
	for _, a := range draft.Attachments {
		complaint.Attachments = append(complaint.Attachments, &domain.Attachment{AttachmentInput: a})
	}

	if err := s.repos.Complaint.Create(ctx, complaint); err != nil {
		return uuid.Nil, err
	}

	s.logger.Info("Complaint submitted",
		zap.String("complaint_id", complaint.ID.String()),
		zap.String("customer_number", complaint.CustomerNumber),
		zap.Int("items", len(complaint.Items)),
	)
	s.audit.created(ctx, domain.RecordKindComplaint, complaint.ID, string(complaint.Status))

	return complaint.ID, nil
}

// ListComplaints returns complaints newest first
func (s *complaintService) ListComplaints(ctx context.Context, filter domain.Filter) ([]*domain.Complaint, error) {
	return s.repos.Complaint.List(ctx, filter)
}

// GetComplaintDetail joins a complaint with its children. A failing child
// read is logged and named in Unavailable; only a missing root is an error.
func (s *complaintService) GetComplaintDetail(ctx context.Context, id uuid.UUID) (*ComplaintDetail, error) {
	complaint, err := s.repos.Complaint.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &ComplaintDetail{
		Complaint:   complaint,
		Items:       []*domain.ComplaintItem{},
		Attachments: []*domain.Attachment{},
	}

	if items, err := s.repos.ComplaintItem.GetByComplaintID(ctx, id); err != nil {
		s.logger.Error("Failed to load complaint items", zap.String("complaint_id", id.String()), zap.Error(err))
		detail.Unavailable = append(detail.Unavailable, PartItems)
	} else {
		detail.Items = items
	}

	if vehicle, err := s.repos.VehicleData.GetByComplaintID(ctx, id); err != nil {
		s.logger.Error("Failed to load vehicle data", zap.String("complaint_id", id.String()), zap.Error(err))
		detail.Unavailable = append(detail.Unavailable, PartVehicleData)
	} else {
		detail.VehicleData = vehicle
	}

	if attachments, err := s.repos.Attachment.GetByComplaintID(ctx, id); err != nil {
		s.logger.Error("Failed to load attachments", zap.String("complaint_id", id.String()), zap.Error(err))
		detail.Unavailable = append(detail.Unavailable, PartAttachments)
	} else {
		detail.Attachments = attachments
	}

	return detail, nil
}

// SetStatus applies any valid status as an administrative override
func (s *complaintService) SetStatus(ctx context.Context, id uuid.UUID, change StatusChange) (*domain.Complaint, error) {
	return s.changeStatus(ctx, id, change, false)
}

// Transition applies a status change only when the transition table allows it
func (s *complaintService) Transition(ctx context.Context, id uuid.UUID, change StatusChange) (*domain.Complaint, error) {
	return s.changeStatus(ctx, id, change, true)
}

func (s *complaintService) changeStatus(ctx context.Context, id uuid.UUID, change StatusChange, strict bool) (*domain.Complaint, error) {
	to := domain.ComplaintStatus(change.Status)
	if !to.IsValid() {
		return nil, invalidStatus(change.Status)
	}

	current, err := s.repos.Complaint.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	forced, err := checkTransition(string(current.Status), change.Status, current.Status.CanTransitionTo(to), strict)
	if err != nil {
		return nil, err
	}

	updated, err := s.repos.Complaint.UpdateStatus(ctx, id, repository.StatusPatch{
		Status:        change.Status,
		ProcessorName: change.ProcessorName,
		Notes:         change.Notes,
	})
	if err != nil {
		return nil, err
	}

	s.audit.statusChanged(ctx, domain.RecordKindComplaint, id, string(current.Status), change.Status, change, forced)
	return updated, nil
}

// Delete removes the complaint with its children and audit trail, then
// removes the stored attachment files. File removal failures are logged.
func (s *complaintService) Delete(ctx context.Context, id uuid.UUID) error {
	attachments, err := s.repos.Attachment.GetByComplaintID(ctx, id)
	if err != nil {
		s.logger.Warn("Failed to list attachments before delete", zap.String("complaint_id", id.String()), zap.Error(err))
	}

	if err := s.repos.Complaint.Delete(ctx, id); err != nil {
		return err
	}

	if s.objects != nil {
		for _, a := range attachments {
			key, err := storage.CleanKey(a.FilePath)
			if err != nil {
				continue
			}
			if err := s.objects.Delete(ctx, key); err != nil {
				s.logger.Warn("Failed to remove attachment file", zap.String("key", key), zap.Error(err))
			}
		}
	}

	s.logger.Info("Complaint deleted", zap.String("complaint_id", id.String()))
	s.audit.deleted(ctx, domain.RecordKindComplaint, id)
	return nil
}

// Events returns the audit trail of a complaint, oldest first
func (s *complaintService) Events(ctx context.Context, id uuid.UUID) ([]*domain.StatusEvent, error) {
	if _, err := s.repos.Complaint.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.audit.events(ctx, domain.RecordKindComplaint, id)
}
