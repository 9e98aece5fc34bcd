package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/service"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
}

// LoginRequest represents the operator login payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// HandleLogin handles POST /v1/admin/login
func HandleLogin(svc Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		res, err := svc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, logger, "Failed to log in", err)
			return
		}

		c.JSON(http.StatusOK, res)
	}
}
