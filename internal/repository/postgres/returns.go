package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/repository"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

const returnColumns = `id, customer_number, customer_name, email, comments, status, processor_name, notes, created_at, updated_at`

type returnRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReturnRepository creates a new return repository
func NewReturnRepository(db *sql.DB, logger *zap.Logger) *returnRepository {
	return &returnRepository{
		db:     db,
		logger: logger,
	}
}

func scanReturn(row rowScanner) (*domain.Return, error) {
	var ret domain.Return
	var comments, processorName, notes sql.NullString

	err := row.Scan(
		&ret.ID,
		&ret.CustomerNumber,
		&ret.CustomerName,
		&ret.Email,
		&comments,
		&ret.Status,
		&processorName,
		&notes,
		&ret.CreatedAt,
		&ret.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ret.Comments = stringPtr(comments)
	ret.ProcessorName = stringPtr(processorName)
	ret.Notes = stringPtr(notes)
	return &ret, nil
}

func (r *returnRepository) Create(ctx context.Context, ret *domain.Return) error {
	if ret.ID == uuid.Nil {
		ret.ID = uuid.New()
	}
	if ret.CreatedAt.IsZero() {
		ret.CreatedAt = time.Now()
	}
	ret.UpdatedAt = ret.CreatedAt
	if ret.Status == "" {
		ret.Status = domain.ReturnStatusPending
	}

	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO returns (` + returnColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		if _, err := tx.ExecContext(ctx, query,
			ret.ID,
			ret.CustomerNumber,
			ret.CustomerName,
			ret.Email,
			ret.Comments,
			ret.Status,
			ret.ProcessorName,
			ret.Notes,
			ret.CreatedAt,
			ret.UpdatedAt,
		); err != nil {
			return err
		}

		itemQuery := `
			INSERT INTO return_items (id, return_id, position, article_number, quantity, delivery_note_number, condition, return_reason, other_reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		for i, item := range ret.Items {
			if item.ID == uuid.Nil {
				item.ID = uuid.New()
			}
			item.ReturnID = ret.ID
			item.Position = i
			if _, err := tx.ExecContext(ctx, itemQuery,
				item.ID,
				item.ReturnID,
				item.Position,
				item.ArticleNumber,
				item.Quantity,
				item.DeliveryNoteNumber,
				item.Condition,
				item.ReturnReason,
				item.OtherReason,
			); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		r.logger.Error("Failed to create return", zap.Error(err))
		return err
	}

	return nil
}

func (r *returnRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Return, error) {
	query := `SELECT ` + returnColumns + ` FROM returns WHERE id = $1`

	ret, err := scanReturn(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "return", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get return by ID", zap.Error(err))
		return nil, err
	}

	return ret, nil
}

func (r *returnRepository) List(ctx context.Context, filter domain.Filter) ([]*domain.Return, error) {
	query := `
		SELECT ` + returnColumns + `
		FROM returns
		WHERE ($1 = '' OR status = $1)
		  AND (customer_name ILIKE $2 OR customer_number ILIKE $2 OR email ILIKE $2)
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, filter.Status, likePattern(filter.SearchTerm))
	if err != nil {
		r.logger.Error("Failed to list returns", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	returns := []*domain.Return{}
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			r.logger.Error("Failed to scan return", zap.Error(err))
			return nil, err
		}
		returns = append(returns, ret)
	}

	return returns, rows.Err()
}

func (r *returnRepository) UpdateStatus(ctx context.Context, id uuid.UUID, patch repository.StatusPatch) (*domain.Return, error) {
	query := `
		UPDATE returns
		SET status = COALESCE(NULLIF($2, ''), status),
		    processor_name = COALESCE($3, processor_name),
		    notes = COALESCE($4, notes),
		    updated_at = GREATEST($5, created_at)
		WHERE id = $1
		RETURNING ` + returnColumns

	ret, err := scanReturn(r.db.QueryRowContext(ctx, query, id, patch.Status, patch.ProcessorName, patch.Notes, time.Now()))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "return", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to update return status", zap.Error(err))
		return nil, err
	}

	return ret, nil
}

func (r *returnRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteRecord(ctx, r.db, r.logger, "returns", domain.RecordKindReturn, id)
}

type returnItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReturnItemRepository creates a new return item repository
func NewReturnItemRepository(db *sql.DB, logger *zap.Logger) *returnItemRepository {
	return &returnItemRepository{db: db, logger: logger}
}

func (r *returnItemRepository) GetByReturnID(ctx context.Context, returnID uuid.UUID) ([]*domain.ReturnItem, error) {
	query := `
		SELECT id, return_id, position, article_number, quantity, delivery_note_number, condition, return_reason, other_reason
		FROM return_items
		WHERE return_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, returnID)
	if err != nil {
		r.logger.Error("Failed to query return items", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	items := []*domain.ReturnItem{}
	for rows.Next() {
		var item domain.ReturnItem
		var deliveryNote, otherReason sql.NullString
		if err := rows.Scan(
			&item.ID,
			&item.ReturnID,
			&item.Position,
			&item.ArticleNumber,
			&item.Quantity,
			&deliveryNote,
			&item.Condition,
			&item.ReturnReason,
			&otherReason,
		); err != nil {
			return nil, err
		}
		item.DeliveryNoteNumber = stringPtr(deliveryNote)
		item.OtherReason = stringPtr(otherReason)
		items = append(items, &item)
	}

	return items, rows.Err()
}
