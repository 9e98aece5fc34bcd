package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/service"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

// TabHeader carries the id of the admin tab that issued a request
const TabHeader = "X-Tab-ID"

// respondError writes the status and body for err. Unknown errors are
// logged with msg and answered with 500.
func respondError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	switch e := err.(type) {
	case *errors.ErrNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": e.Error()})
	case *errors.ErrValidation:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "validation failed",
			"details": e.Fields,
		})
	case *errors.ErrInvalidStateTransition:
		c.JSON(http.StatusConflict, gin.H{
			"error": e.Error(),
			"from":  e.From,
			"to":    e.To,
		})
	case *errors.ErrConflict:
		c.JSON(http.StatusConflict, gin.H{"error": e.Error()})
	case *errors.ErrUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"error": e.Message})
	default:
		logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// bindError answers a request body that could not be decoded
func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"error":   "validation failed",
		"details": []errors.FieldError{{Field: "body", Message: err.Error()}},
	})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ID"})
		return uuid.Nil, false
	}
	return id, true
}

// requestContext tags the request context with the issuing tab, if any
func requestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if tab := c.GetHeader(TabHeader); tab != "" {
		ctx = service.WithOrigin(ctx, tab)
	}
	return ctx
}
