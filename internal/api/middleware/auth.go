package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/auth"
)

const operatorContextKey = "operator"

// AuthMiddleware requires a valid operator bearer token
func AuthMiddleware(issuer *auth.Issuer, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			c.Abort()
			return
		}

		claims, err := issuer.Parse(parts[1])
		if err != nil {
			logger.Debug("Rejected operator token", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(operatorContextKey, claims)
		c.Next()
	}
}

// GetOperatorFromContext returns the claims set by AuthMiddleware
func GetOperatorFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(operatorContextKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}
