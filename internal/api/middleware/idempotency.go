package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/repository"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	idempotencyKeyContextKey  = "idempotency_key"
	idempotencyHashContextKey = "idempotency_hash"
	idempotencyRecordKey      = "idempotency_record"
)

// maxKeyLength bounds the header value stored with every submission
const maxKeyLength = 128

// IdempotencyMiddleware looks up the Idempotency-Key header. A known key
// with the same body marks the request as a replay; a known key with a
// different body is refused with 409.
func IdempotencyMiddleware(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxKeyLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "idempotency key too long"})
			c.Abort()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		sum := sha256.Sum256(body)
		hash := hex.EncodeToString(sum[:])

		existing, err := repos.Idempotency.GetByKey(c.Request.Context(), key)
		if err != nil {
			if _, ok := err.(*errors.ErrNotFound); !ok {
				logger.Error("Failed to check idempotency key", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				c.Abort()
				return
			}
			existing = nil
		}

		if existing != nil {
			if existing.RequestHash != hash {
				c.JSON(http.StatusConflict, gin.H{"error": "idempotency key reused with a different request"})
				c.Abort()
				return
			}
			c.Set(idempotencyRecordKey, existing)
		}

		c.Set(idempotencyKeyContextKey, key)
		c.Set(idempotencyHashContextKey, hash)
		c.Next()
	}
}

// GetIdempotencyInfo returns the key and body hash of the request and, for
// a replay, the stored key of the first submission
func GetIdempotencyInfo(c *gin.Context) (key, hash string, existing *domain.IdempotencyKey) {
	key = c.GetString(idempotencyKeyContextKey)
	hash = c.GetString(idempotencyHashContextKey)
	if v, ok := c.Get(idempotencyRecordKey); ok {
		existing, _ = v.(*domain.IdempotencyKey)
	}
	return key, hash, existing
}
