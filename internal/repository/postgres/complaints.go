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

const complaintColumns = `
	id, customer_number, customer_name, email, phone, receipt_number, description,
	error_date, delivery_form, preferred_processing, additional_info, additional_costs,
	terms_accepted, privacy_accepted, cost_notice_accepted,
	status, processor_name, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type complaintRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewComplaintRepository creates a new complaint repository
func NewComplaintRepository(db *sql.DB, logger *zap.Logger) *complaintRepository {
	return &complaintRepository{
		db:     db,
		logger: logger,
	}
}

func scanComplaint(row rowScanner) (*domain.Complaint, error) {
	var c domain.Complaint
	var phone, additionalInfo, processorName, notes sql.NullString

	err := row.Scan(
		&c.ID,
		&c.CustomerNumber,
		&c.CustomerName,
		&c.Email,
		&phone,
		&c.ReceiptNumber,
		&c.Description,
		&c.ErrorDate,
		&c.DeliveryForm,
		&c.PreferredProcessing,
		&additionalInfo,
		&c.AdditionalCosts,
		&c.Legal.TermsAccepted,
		&c.Legal.PrivacyAccepted,
		&c.Legal.CostNoticeAccepted,
		&c.Status,
		&processorName,
		&notes,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Phone = stringPtr(phone)
	c.AdditionalInfo = stringPtr(additionalInfo)
	c.ProcessorName = stringPtr(processorName)
	c.Notes = stringPtr(notes)
	return &c, nil
}

func (r *complaintRepository) Create(ctx context.Context, c *domain.Complaint) error {
	now := time.Now()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = domain.ComplaintStatusPending
	}

	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO complaints (` + complaintColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		`
		if _, err := tx.ExecContext(ctx, query,
			c.ID,
			c.CustomerNumber,
			c.CustomerName,
			c.Email,
			c.Phone,
			c.ReceiptNumber,
			c.Description,
			c.ErrorDate,
			c.DeliveryForm,
			c.PreferredProcessing,
			c.AdditionalInfo,
			c.AdditionalCosts,
			c.Legal.TermsAccepted,
			c.Legal.PrivacyAccepted,
			c.Legal.CostNoticeAccepted,
			c.Status,
			c.ProcessorName,
			c.Notes,
			c.CreatedAt,
			c.UpdatedAt,
		); err != nil {
			return err
		}

		itemQuery := `
			INSERT INTO complaint_items (id, complaint_id, position, manufacturer, article_index, article_name, purchase_date, quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		for i, item := range c.Items {
			if item.ID == uuid.Nil {
				item.ID = uuid.New()
			}
			item.ComplaintID = c.ID
			item.Position = i
			if _, err := tx.ExecContext(ctx, itemQuery,
				item.ID,
				item.ComplaintID,
				item.Position,
				item.Manufacturer,
				item.ArticleIndex,
				item.ArticleName,
				item.PurchaseDate,
				item.Quantity,
			); err != nil {
				return err
			}
		}

		if v := c.VehicleData; v != nil {
			if v.ID == uuid.Nil {
				v.ID = uuid.New()
			}
			v.ComplaintID = c.ID
			vehicleQuery := `
				INSERT INTO vehicle_data (id, complaint_id, vehicle_type, manufacturer, model, vehicle_type_detail, year, vin,
					installation_date, removal_date, mileage_installation, mileage_removal, installer)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			`
			if _, err := tx.ExecContext(ctx, vehicleQuery,
				v.ID,
				v.ComplaintID,
				v.VehicleType,
				v.Manufacturer,
				v.Model,
				v.VehicleTypeDetail,
				v.Year,
				v.VIN,
				v.InstallationDate,
				v.RemovalDate,
				v.MileageInstallation,
				v.MileageRemoval,
				v.Installer,
			); err != nil {
				return err
			}
		}

		attachmentQuery := `
			INSERT INTO attachments (id, complaint_id, position, file_name, file_path, file_type, is_diagnostic)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		for i, a := range c.Attachments {
			if a.ID == uuid.Nil {
				a.ID = uuid.New()
			}
			a.ComplaintID = c.ID
			if _, err := tx.ExecContext(ctx, attachmentQuery,
				a.ID,
				a.ComplaintID,
				i,
				a.FileName,
				a.FilePath,
				a.FileType,
				a.IsDiagnostic,
			); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		r.logger.Error("Failed to create complaint", zap.Error(err))
		return err
	}

	return nil
}

func (r *complaintRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id = $1`

	c, err := scanComplaint(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "complaint", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get complaint by ID", zap.Error(err))
		return nil, err
	}

	return c, nil
}

func (r *complaintRepository) List(ctx context.Context, filter domain.Filter) ([]*domain.Complaint, error) {
	query := `
		SELECT ` + complaintColumns + `
		FROM complaints
		WHERE ($1 = '' OR status = $1)
		  AND (customer_name ILIKE $2 OR customer_number ILIKE $2 OR receipt_number ILIKE $2 OR email ILIKE $2)
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, filter.Status, likePattern(filter.SearchTerm))
	if err != nil {
		r.logger.Error("Failed to list complaints", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	complaints := []*domain.Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			r.logger.Error("Failed to scan complaint", zap.Error(err))
			return nil, err
		}
		complaints = append(complaints, c)
	}

	return complaints, rows.Err()
}

func (r *complaintRepository) UpdateStatus(ctx context.Context, id uuid.UUID, patch repository.StatusPatch) (*domain.Complaint, error) {
	query := `
		UPDATE complaints
		SET status = COALESCE(NULLIF($2, ''), status),
		    processor_name = COALESCE($3, processor_name),
		    notes = COALESCE($4, notes),
		    updated_at = GREATEST($5, created_at)
		WHERE id = $1
		RETURNING ` + complaintColumns

	c, err := scanComplaint(r.db.QueryRowContext(ctx, query, id, patch.Status, patch.ProcessorName, patch.Notes, time.Now()))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "complaint", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to update complaint status", zap.Error(err))
		return nil, err
	}

	return c, nil
}

func (r *complaintRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteRecord(ctx, r.db, r.logger, "complaints", domain.RecordKindComplaint, id)
}

// deleteRecord removes an aggregate root and its audit trail. Child tables
// follow through ON DELETE CASCADE.
func deleteRecord(ctx context.Context, db *sql.DB, logger *zap.Logger, table string, kind domain.RecordKind, id uuid.UUID) error {
	err := inTx(ctx, db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &errors.ErrNotFound{Resource: string(kind), ID: id.String()}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM status_events WHERE record_kind = $1 AND record_id = $2`, kind, id); err != nil {
			return err
		}
		// keys of a deleted record no longer replay
		_, err = tx.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE record_kind = $1 AND record_id = $2`, kind, id)
		return err
	})

	if _, ok := err.(*errors.ErrNotFound); ok {
		return err
	}
	if err != nil {
		logger.Error("Failed to delete record", zap.String("table", table), zap.Error(err))
		return err
	}

	return nil
}

type complaintItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewComplaintItemRepository creates a new complaint item repository
func NewComplaintItemRepository(db *sql.DB, logger *zap.Logger) *complaintItemRepository {
	return &complaintItemRepository{db: db, logger: logger}
}

func (r *complaintItemRepository) GetByComplaintID(ctx context.Context, complaintID uuid.UUID) ([]*domain.ComplaintItem, error) {
	query := `
		SELECT id, complaint_id, position, manufacturer, article_index, article_name, purchase_date, quantity
		FROM complaint_items
		WHERE complaint_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, complaintID)
	if err != nil {
		r.logger.Error("Failed to query complaint items", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	items := []*domain.ComplaintItem{}
	for rows.Next() {
		var item domain.ComplaintItem
		if err := rows.Scan(
			&item.ID,
			&item.ComplaintID,
			&item.Position,
			&item.Manufacturer,
			&item.ArticleIndex,
			&item.ArticleName,
			&item.PurchaseDate,
			&item.Quantity,
		); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}

	return items, rows.Err()
}

type vehicleDataRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVehicleDataRepository creates a new vehicle data repository
func NewVehicleDataRepository(db *sql.DB, logger *zap.Logger) *vehicleDataRepository {
	return &vehicleDataRepository{db: db, logger: logger}
}

func (r *vehicleDataRepository) GetByComplaintID(ctx context.Context, complaintID uuid.UUID) (*domain.VehicleData, error) {
	query := `
		SELECT id, complaint_id, vehicle_type, manufacturer, model, vehicle_type_detail, year, vin,
		       installation_date, removal_date, mileage_installation, mileage_removal, installer
		FROM vehicle_data
		WHERE complaint_id = $1
	`

	var v domain.VehicleData
	var detail, installed, removed, installer sql.NullString
	var mileageIn, mileageOut sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, complaintID).Scan(
		&v.ID,
		&v.ComplaintID,
		&v.VehicleType,
		&v.Manufacturer,
		&v.Model,
		&detail,
		&v.Year,
		&v.VIN,
		&installed,
		&removed,
		&mileageIn,
		&mileageOut,
		&installer,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get vehicle data", zap.Error(err))
		return nil, err
	}

	v.VehicleTypeDetail = stringPtr(detail)
	v.InstallationDate = stringPtr(installed)
	v.RemovalDate = stringPtr(removed)
	v.Installer = stringPtr(installer)
	v.MileageInstallation = intPtr(mileageIn)
	v.MileageRemoval = intPtr(mileageOut)
	return &v, nil
}

type attachmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *sql.DB, logger *zap.Logger) *attachmentRepository {
	return &attachmentRepository{db: db, logger: logger}
}

func (r *attachmentRepository) GetByComplaintID(ctx context.Context, complaintID uuid.UUID) ([]*domain.Attachment, error) {
	query := `
		SELECT id, complaint_id, file_name, file_path, file_type, is_diagnostic
		FROM attachments
		WHERE complaint_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, complaintID)
	if err != nil {
		r.logger.Error("Failed to query attachments", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	attachments := []*domain.Attachment{}
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(&a.ID, &a.ComplaintID, &a.FileName, &a.FilePath, &a.FileType, &a.IsDiagnostic); err != nil {
			return nil, err
		}
		attachments = append(attachments, &a)
	}

	return attachments, rows.Err()
}
