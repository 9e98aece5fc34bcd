package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/repository"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

const inquiryColumns = `id, type, data, status, processor_name, notes, created_at, updated_at`

type inquiryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInquiryRepository creates a new inquiry repository
func NewInquiryRepository(db *sql.DB, logger *zap.Logger) *inquiryRepository {
	return &inquiryRepository{
		db:     db,
		logger: logger,
	}
}

func scanInquiry(row rowScanner) (*domain.Inquiry, error) {
	var inq domain.Inquiry
	var data []byte
	var processorName, notes sql.NullString

	err := row.Scan(
		&inq.ID,
		&inq.Type,
		&data,
		&inq.Status,
		&processorName,
		&notes,
		&inq.Timestamp,
		&inq.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, &inq.Data); err != nil {
		return nil, fmt.Errorf("decode inquiry data: %w", err)
	}
	inq.ProcessorName = stringPtr(processorName)
	inq.Notes = stringPtr(notes)
	return &inq, nil
}

func (r *inquiryRepository) Create(ctx context.Context, inq *domain.Inquiry) error {
	if inq.ID == uuid.Nil {
		inq.ID = uuid.New()
	}
	if inq.Timestamp.IsZero() {
		inq.Timestamp = time.Now()
	}
	inq.UpdatedAt = inq.Timestamp
	if inq.Status == "" {
		inq.Status = domain.InquiryStatusNew
	}
	if inq.Data == nil {
		inq.Data = map[string]interface{}{}
	}

	data, err := json.Marshal(inq.Data)
	if err != nil {
		return fmt.Errorf("encode inquiry data: %w", err)
	}

	query := `
		INSERT INTO inquiries (` + inquiryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		inq.ID,
		inq.Type,
		string(data),
		inq.Status,
		inq.ProcessorName,
		inq.Notes,
		inq.Timestamp,
		inq.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create inquiry", zap.Error(err))
		return err
	}

	return nil
}

func (r *inquiryRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Inquiry, error) {
	query := `SELECT ` + inquiryColumns + ` FROM inquiries WHERE id = $1`

	inq, err := scanInquiry(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "inquiry", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get inquiry by ID", zap.Error(err))
		return nil, err
	}

	return inq, nil
}

func (r *inquiryRepository) List(ctx context.Context, filter domain.Filter) ([]*domain.Inquiry, error) {
	// search covers the top-level string values of the payload
	query := `
		SELECT ` + inquiryColumns + `
		FROM inquiries
		WHERE ($1 = '' OR type = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '%%' OR EXISTS (
		        SELECT 1 FROM jsonb_each_text(data) AS kv
		        WHERE jsonb_typeof(data -> kv.key) = 'string' AND kv.value ILIKE $3))
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, string(filter.Type), filter.Status, likePattern(filter.SearchTerm))
	if err != nil {
		r.logger.Error("Failed to list inquiries", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	inquiries := []*domain.Inquiry{}
	for rows.Next() {
		inq, err := scanInquiry(rows)
		if err != nil {
			r.logger.Error("Failed to scan inquiry", zap.Error(err))
			return nil, err
		}
		inquiries = append(inquiries, inq)
	}

	return inquiries, rows.Err()
}

func (r *inquiryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, patch repository.StatusPatch) (*domain.Inquiry, error) {
	query := `
		UPDATE inquiries
		SET status = COALESCE(NULLIF($2, ''), status),
		    processor_name = COALESCE($3, processor_name),
		    notes = COALESCE($4, notes),
		    updated_at = GREATEST($5, created_at)
		WHERE id = $1
		RETURNING ` + inquiryColumns

	inq, err := scanInquiry(r.db.QueryRowContext(ctx, query, id, patch.Status, patch.ProcessorName, patch.Notes, time.Now()))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "inquiry", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to update inquiry status", zap.Error(err))
		return nil, err
	}

	return inq, nil
}

func (r *inquiryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteRecord(ctx, r.db, r.logger, "inquiries", domain.RecordKindInquiry, id)
}
