// Package repository declares the record store contract. Every aggregate
// root supports create, get, list, status patch and cascading delete; child
// tables are read by parent id and return an empty result when absent.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/teilehaus/serviceportal/internal/domain"
)

// StatusPatch is the field patch applied by UpdateStatus. Nil pointers keep
// the stored value.
type StatusPatch struct {
	Status        string
	ProcessorName *string
	Notes         *string
}

type ComplaintRepository interface {
	// Create inserts the complaint with its items, vehicle data and
	// attachments in one unit. IDs, positions and timestamps are assigned.
	Create(ctx context.Context, complaint *domain.Complaint) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Complaint, error)
	List(ctx context.Context, filter domain.Filter) ([]*domain.Complaint, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, patch StatusPatch) (*domain.Complaint, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ComplaintItemRepository interface {
	GetByComplaintID(ctx context.Context, complaintID uuid.UUID) ([]*domain.ComplaintItem, error)
}

type VehicleDataRepository interface {
	// GetByComplaintID returns nil, nil when the complaint has no vehicle record
	GetByComplaintID(ctx context.Context, complaintID uuid.UUID) (*domain.VehicleData, error)
}

type AttachmentRepository interface {
	GetByComplaintID(ctx context.Context, complaintID uuid.UUID) ([]*domain.Attachment, error)
}

type ReturnRepository interface {
	Create(ctx context.Context, ret *domain.Return) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Return, error)
	List(ctx context.Context, filter domain.Filter) ([]*domain.Return, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, patch StatusPatch) (*domain.Return, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ReturnItemRepository interface {
	GetByReturnID(ctx context.Context, returnID uuid.UUID) ([]*domain.ReturnItem, error)
}

type InquiryRepository interface {
	Create(ctx context.Context, inquiry *domain.Inquiry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Inquiry, error)
	List(ctx context.Context, filter domain.Filter) ([]*domain.Inquiry, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, patch StatusPatch) (*domain.Inquiry, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type PopupConfigRepository interface {
	// Get returns the stored configuration or ErrNotFound before the first save
	Get(ctx context.Context) (*domain.PopupConfig, error)
	Save(ctx context.Context, cfg *domain.PopupConfig) error
}

type StatusEventRepository interface {
	Create(ctx context.Context, event *domain.StatusEvent) error
	ListByRecord(ctx context.Context, kind domain.RecordKind, recordID uuid.UUID) ([]*domain.StatusEvent, error)
}

type IdempotencyRepository interface {
	// GetByKey returns ErrNotFound for an unknown key
	GetByKey(ctx context.Context, key string) (*domain.IdempotencyKey, error)
	Create(ctx context.Context, key *domain.IdempotencyKey) error
}

type OperatorRepository interface {
	Create(ctx context.Context, operator *domain.Operator) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error)
	GetByEmail(ctx context.Context, email string) (*domain.Operator, error)
	Update(ctx context.Context, operator *domain.Operator) error
}

// Repositories aggregates all repositories
type Repositories struct {
	Complaint     ComplaintRepository
	ComplaintItem ComplaintItemRepository
	VehicleData   VehicleDataRepository
	Attachment    AttachmentRepository
	Return        ReturnRepository
	ReturnItem    ReturnItemRepository
	Inquiry       InquiryRepository
	PopupConfig   PopupConfigRepository
	StatusEvent   StatusEventRepository
	Idempotency   IdempotencyRepository
	Operator      OperatorRepository
}
