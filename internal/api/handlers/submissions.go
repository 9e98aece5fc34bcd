package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/api/middleware"
	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/repository"
	"github.com/teilehaus/serviceportal/internal/service"
)

type ComplaintSubmitter interface {
	SubmitComplaint(ctx context.Context, draft *domain.ComplaintDraft) (uuid.UUID, error)
}

type ReturnSubmitter interface {
	SubmitReturn(ctx context.Context, input *domain.ReturnInput) (uuid.UUID, error)
}

type InquirySubmitter interface {
	SubmitInquiry(ctx context.Context, sub service.InquirySubmission) (*domain.Inquiry, error)
}

// CreatedResponse is returned by every public submission
type CreatedResponse struct {
	ID string `json:"id"`
}

// HandleSubmitComplaint handles POST /v1/complaints
func HandleSubmitComplaint(svc ComplaintSubmitter, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if replayed(c, domain.RecordKindComplaint) {
			return
		}

		var draft domain.ComplaintDraft
		if err := c.ShouldBindJSON(&draft); err != nil {
			bindError(c, err)
			return
		}

		id, err := svc.SubmitComplaint(c.Request.Context(), &draft)
		if err != nil {
			respondError(c, logger, "Failed to submit complaint", err)
			return
		}

		storeIdempotencyKey(c, repos, logger, domain.RecordKindComplaint, id)
		c.JSON(http.StatusCreated, CreatedResponse{ID: id.String()})
	}
}

// HandleSubmitReturn handles POST /v1/returns
func HandleSubmitReturn(svc ReturnSubmitter, repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if replayed(c, domain.RecordKindReturn) {
			return
		}

		var input domain.ReturnInput
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		id, err := svc.SubmitReturn(c.Request.Context(), &input)
		if err != nil {
			respondError(c, logger, "Failed to submit return", err)
			return
		}

		storeIdempotencyKey(c, repos, logger, domain.RecordKindReturn, id)
		c.JSON(http.StatusCreated, CreatedResponse{ID: id.String()})
	}
}

// HandleSubmitInquiry handles POST /v1/inquiries
func HandleSubmitInquiry(svc InquirySubmitter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sub service.InquirySubmission
		if err := c.ShouldBindJSON(&sub); err != nil {
			bindError(c, err)
			return
		}

		inquiry, err := svc.SubmitInquiry(requestContext(c), sub)
		if err != nil {
			respondError(c, logger, "Failed to submit inquiry", err)
			return
		}

		c.JSON(http.StatusCreated, CreatedResponse{ID: inquiry.ID.String()})
	}
}

// replayed answers a request that repeats an earlier submission with the
// id created the first time
func replayed(c *gin.Context, kind domain.RecordKind) bool {
	_, _, existing := middleware.GetIdempotencyInfo(c)
	if existing == nil {
		return false
	}
	if existing.RecordKind != kind {
		c.JSON(http.StatusConflict, gin.H{"error": "idempotency key belongs to another kind of record"})
		return true
	}
	c.JSON(http.StatusOK, CreatedResponse{ID: existing.RecordID.String()})
	return true
}

func storeIdempotencyKey(c *gin.Context, repos *repository.Repositories, logger *zap.Logger, kind domain.RecordKind, id uuid.UUID) {
	key, hash, _ := middleware.GetIdempotencyInfo(c)
	if key == "" {
		return
	}
	record := &domain.IdempotencyKey{
		Key:         key,
		RecordKind:  kind,
		RecordID:    id,
		RequestHash: hash,
	}
	// Don't fail the request if idempotency storage fails
	if err := repos.Idempotency.Create(c.Request.Context(), record); err != nil {
		logger.Warn("Failed to store idempotency key", zap.Error(err))
	}
}
