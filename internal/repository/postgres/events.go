package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

type statusEventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStatusEventRepository creates a new status event repository
func NewStatusEventRepository(db *sql.DB, logger *zap.Logger) *statusEventRepository {
	return &statusEventRepository{db: db, logger: logger}
}

func (r *statusEventRepository) Create(ctx context.Context, e *domain.StatusEvent) error {
	query := `
		INSERT INTO status_events (id, record_kind, record_id, event_type, from_status, to_status, processor_name, notes, forced, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
	`

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.RecordKind,
		e.RecordID,
		e.EventType,
		e.From,
		e.To,
		e.ProcessorName,
		e.Notes,
		e.Forced,
		e.CreatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create status event", zap.Error(err))
		return err
	}

	return nil
}

func (r *statusEventRepository) ListByRecord(ctx context.Context, kind domain.RecordKind, recordID uuid.UUID) ([]*domain.StatusEvent, error) {
	query := `
		SELECT id, record_kind, record_id, event_type, COALESCE(from_status, ''), to_status, processor_name, notes, forced, created_at
		FROM status_events
		WHERE record_kind = $1 AND record_id = $2
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, kind, recordID)
	if err != nil {
		r.logger.Error("Failed to query status events", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	events := []*domain.StatusEvent{}
	for rows.Next() {
		var e domain.StatusEvent
		var processorName, notes sql.NullString
		if err := rows.Scan(
			&e.ID,
			&e.RecordKind,
			&e.RecordID,
			&e.EventType,
			&e.From,
			&e.To,
			&processorName,
			&notes,
			&e.Forced,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.ProcessorName = stringPtr(processorName)
		e.Notes = stringPtr(notes)
		events = append(events, &e)
	}

	return events, rows.Err()
}

type idempotencyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIdempotencyRepository creates a new idempotency key repository
func NewIdempotencyRepository(db *sql.DB, logger *zap.Logger) *idempotencyRepository {
	return &idempotencyRepository{db: db, logger: logger}
}

func (r *idempotencyRepository) GetByKey(ctx context.Context, key string) (*domain.IdempotencyKey, error) {
	query := `
		SELECT key, record_kind, record_id, request_hash, created_at
		FROM idempotency_keys
		WHERE key = $1
	`

	var k domain.IdempotencyKey
	err := r.db.QueryRowContext(ctx, query, key).Scan(&k.Key, &k.RecordKind, &k.RecordID, &k.RequestHash, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "idempotency key", ID: key}
	}
	if err != nil {
		r.logger.Error("Failed to get idempotency key", zap.Error(err))
		return nil, err
	}

	return &k, nil
}

func (r *idempotencyRepository) Create(ctx context.Context, k *domain.IdempotencyKey) error {
	query := `
		INSERT INTO idempotency_keys (key, record_kind, record_id, request_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO NOTHING
	`

	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now()
	}

	res, err := r.db.ExecContext(ctx, query, k.Key, k.RecordKind, k.RecordID, k.RequestHash, k.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to store idempotency key", zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.ErrConflict{Message: "idempotency key already used"}
	}

	return nil
}

type popupConfigRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPopupConfigRepository creates a new popup config repository
func NewPopupConfigRepository(db *sql.DB, logger *zap.Logger) *popupConfigRepository {
	return &popupConfigRepository{db: db, logger: logger}
}

func (r *popupConfigRepository) Get(ctx context.Context) (*domain.PopupConfig, error) {
	query := `
		SELECT active, title, description, image_url, button_text, button_url, redirect_enabled,
		       duration, max_views, view_interval, background_color, text_color, updated_at
		FROM popup_config
		WHERE id = 1
	`

	var cfg domain.PopupConfig
	err := r.db.QueryRowContext(ctx, query).Scan(
		&cfg.Active,
		&cfg.Title,
		&cfg.Description,
		&cfg.ImageURL,
		&cfg.ButtonText,
		&cfg.ButtonURL,
		&cfg.RedirectEnabled,
		&cfg.Duration,
		&cfg.MaxViews,
		&cfg.ViewInterval,
		&cfg.BackgroundColor,
		&cfg.TextColor,
		&cfg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "popup config", ID: "default"}
	}
	if err != nil {
		r.logger.Error("Failed to get popup config", zap.Error(err))
		return nil, err
	}

	return &cfg, nil
}

func (r *popupConfigRepository) Save(ctx context.Context, cfg *domain.PopupConfig) error {
	query := `
		INSERT INTO popup_config (id, active, title, description, image_url, button_text, button_url, redirect_enabled,
			duration, max_views, view_interval, background_color, text_color, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			active = EXCLUDED.active,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			image_url = EXCLUDED.image_url,
			button_text = EXCLUDED.button_text,
			button_url = EXCLUDED.button_url,
			redirect_enabled = EXCLUDED.redirect_enabled,
			duration = EXCLUDED.duration,
			max_views = EXCLUDED.max_views,
			view_interval = EXCLUDED.view_interval,
			background_color = EXCLUDED.background_color,
			text_color = EXCLUDED.text_color,
			updated_at = EXCLUDED.updated_at
	`

	cfg.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		cfg.Active,
		cfg.Title,
		cfg.Description,
		cfg.ImageURL,
		cfg.ButtonText,
		cfg.ButtonURL,
		cfg.RedirectEnabled,
		cfg.Duration,
		cfg.MaxViews,
		cfg.ViewInterval,
		cfg.BackgroundColor,
		cfg.TextColor,
		cfg.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to save popup config", zap.Error(err))
		return err
	}

	return nil
}
