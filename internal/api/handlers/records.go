package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/api/middleware"
	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/service"
)

// RecordEndpoints binds the admin routes of one record kind to its service.
// R is the list entry and D the detail view.
type RecordEndpoints[R, D any] struct {
	Kind       domain.RecordKind
	List       func(ctx context.Context, filter domain.Filter) ([]R, error)
	Detail     func(ctx context.Context, id uuid.UUID) (D, error)
	SetStatus  func(ctx context.Context, id uuid.UUID, change service.StatusChange) (R, error)
	Transition func(ctx context.Context, id uuid.UUID, change service.StatusChange) (R, error)
	Delete     func(ctx context.Context, id uuid.UUID) error
	Events     func(ctx context.Context, id uuid.UUID) ([]*domain.StatusEvent, error)
}

// Register mounts the endpoints on group
func (e RecordEndpoints[R, D]) Register(group *gin.RouterGroup, logger *zap.Logger) {
	group.GET("", HandleListRecords(e, logger))
	group.GET("/:id", HandleGetRecord(e, logger))
	group.PATCH("/:id", HandleSetStatus(e, logger))
	group.POST("/:id/transition", HandleTransition(e, logger))
	group.DELETE("/:id", HandleDeleteRecord(e, logger))
	group.GET("/:id/events", HandleListEvents(e, logger))
}

// HandleListRecords handles GET /v1/admin/<kind>?status=&search=&type=
func HandleListRecords[R, D any](e RecordEndpoints[R, D], logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := domain.Filter{
			Status:     c.Query("status"),
			SearchTerm: c.Query("search"),
			Type:       domain.InquiryType(c.Query("type")),
		}

		records, err := e.List(c.Request.Context(), filter)
		if err != nil {
			respondError(c, logger, "Failed to list "+string(e.Kind)+" records", err)
			return
		}
		if records == nil {
			records = []R{}
		}

		c.JSON(http.StatusOK, records)
	}
}

// HandleGetRecord handles GET /v1/admin/<kind>/:id
func HandleGetRecord[R, D any](e RecordEndpoints[R, D], logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		detail, err := e.Detail(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, "Failed to get "+string(e.Kind), err)
			return
		}

		c.JSON(http.StatusOK, detail)
	}
}

// HandleSetStatus handles PATCH /v1/admin/<kind>/:id
func HandleSetStatus[R, D any](e RecordEndpoints[R, D], logger *zap.Logger) gin.HandlerFunc {
	return statusHandler(e.Kind, e.SetStatus, logger)
}

// HandleTransition handles POST /v1/admin/<kind>/:id/transition
func HandleTransition[R, D any](e RecordEndpoints[R, D], logger *zap.Logger) gin.HandlerFunc {
	return statusHandler(e.Kind, e.Transition, logger)
}

func statusHandler[R any](kind domain.RecordKind, apply func(context.Context, uuid.UUID, service.StatusChange) (R, error), logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		var change service.StatusChange
		if err := c.ShouldBindJSON(&change); err != nil {
			bindError(c, err)
			return
		}

		// the operator making the change is the processor unless named
		if change.ProcessorName == nil {
			if op, ok := middleware.GetOperatorFromContext(c); ok && op.Name != "" {
				name := op.Name
				change.ProcessorName = &name
			}
		}

		updated, err := apply(requestContext(c), id, change)
		if err != nil {
			respondError(c, logger, "Failed to update "+string(kind)+" status", err)
			return
		}

		c.JSON(http.StatusOK, updated)
	}
}

// HandleDeleteRecord handles DELETE /v1/admin/<kind>/:id
func HandleDeleteRecord[R, D any](e RecordEndpoints[R, D], logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		if err := e.Delete(requestContext(c), id); err != nil {
			respondError(c, logger, "Failed to delete "+string(e.Kind), err)
			return
		}

		if op, ok := middleware.GetOperatorFromContext(c); ok {
			logger.Info("Record deleted by operator",
				zap.String("kind", string(e.Kind)),
				zap.String("id", id.String()),
				zap.String("operator_id", op.OperatorID.String()),
			)
		}
		c.Status(http.StatusNoContent)
	}
}

// HandleListEvents handles GET /v1/admin/<kind>/:id/events
func HandleListEvents[R, D any](e RecordEndpoints[R, D], logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}

		events, err := e.Events(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, "Failed to list "+string(e.Kind)+" events", err)
			return
		}

		c.JSON(http.StatusOK, events)
	}
}
