package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

type operatorRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOperatorRepository creates a new operator repository
func NewOperatorRepository(db *sql.DB, logger *zap.Logger) *operatorRepository {
	return &operatorRepository{
		db:     db,
		logger: logger,
	}
}

func (r *operatorRepository) scanOne(ctx context.Context, query string, arg interface{}, notFoundID string) (*domain.Operator, error) {
	var op domain.Operator

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&op.ID,
		&op.Name,
		&op.Email,
		&op.PasswordHash,
		&op.IsActive,
		&op.CreatedAt,
		&op.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "operator", ID: notFoundID}
	}
	if err != nil {
		r.logger.Error("Failed to get operator", zap.Error(err))
		return nil, err
	}

	return &op, nil
}

func (r *operatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	query := `
		SELECT id, name, email, password_hash, is_active, created_at, updated_at
		FROM operators
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id, id.String())
}

func (r *operatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	query := `
		SELECT id, name, email, password_hash, is_active, created_at, updated_at
		FROM operators
		WHERE LOWER(email) = LOWER($1)
	`
	return r.scanOne(ctx, query, email, email)
}

func (r *operatorRepository) Create(ctx context.Context, op *domain.Operator) error {
	query := `
		INSERT INTO operators (id, name, email, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	now := time.Now()
	if op.ID == uuid.Nil {
		op.ID = uuid.New()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = now
	}
	if op.UpdatedAt.IsZero() {
		op.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, query,
		op.ID,
		op.Name,
		op.Email,
		op.PasswordHash,
		op.IsActive,
		op.CreatedAt,
		op.UpdatedAt,
	)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return &errors.ErrConflict{Message: "operator email already registered"}
	}
	if err != nil {
		r.logger.Error("Failed to create operator", zap.Error(err))
		return err
	}

	return nil
}

func (r *operatorRepository) Update(ctx context.Context, op *domain.Operator) error {
	query := `
		UPDATE operators
		SET name = $2, email = $3, password_hash = $4, is_active = $5, updated_at = $6
		WHERE id = $1
	`

	op.UpdatedAt = time.Now()

	res, err := r.db.ExecContext(ctx, query,
		op.ID,
		op.Name,
		op.Email,
		op.PasswordHash,
		op.IsActive,
		op.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to update operator", zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.ErrNotFound{Resource: "operator", ID: op.ID.String()}
	}

	return nil
}
