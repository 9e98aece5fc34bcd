package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/domain"
)

type PopupService interface {
	Get(ctx context.Context) (*domain.PopupConfig, error)
	Save(ctx context.Context, cfg *domain.PopupConfig) (*domain.PopupConfig, error)
}

// HandleGetPopupConfig handles GET /v1/popup-config
func HandleGetPopupConfig(svc PopupService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := svc.Get(c.Request.Context())
		if err != nil {
			respondError(c, logger, "Failed to get popup config", err)
			return
		}
		c.JSON(http.StatusOK, cfg)
	}
}

// HandleSavePopupConfig handles PUT /v1/admin/popup-config
func HandleSavePopupConfig(svc PopupService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cfg domain.PopupConfig
		if err := c.ShouldBindJSON(&cfg); err != nil {
			bindError(c, err)
			return
		}

		saved, err := svc.Save(requestContext(c), &cfg)
		if err != nil {
			respondError(c, logger, "Failed to save popup config", err)
			return
		}
		c.JSON(http.StatusOK, saved)
	}
}
