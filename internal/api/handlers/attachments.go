package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/storage"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

// MaxAttachmentSize is the largest accepted upload
const MaxAttachmentSize = 20 << 20

// HandleUploadAttachment handles POST /v1/attachments (multipart field "file",
// optional form field "isDiagnostic")
func HandleUploadAttachment(store storage.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxAttachmentSize+1<<20)

		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation failed",
				"details": []errors.FieldError{{Field: "file", Message: "is required"}},
			})
			return
		}
		if fh.Size > MaxAttachmentSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}

		isDiagnostic := false
		if v := c.PostForm("isDiagnostic"); v != "" {
			isDiagnostic, err = strconv.ParseBool(v)
			if err != nil {
				c.JSON(http.StatusUnprocessableEntity, gin.H{
					"error":   "validation failed",
					"details": []errors.FieldError{{Field: "isDiagnostic", Message: "must be a boolean"}},
				})
				return
			}
		}

		f, err := fh.Open()
		if err != nil {
			logger.Error("Failed to open uploaded file", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		defer f.Close()

		key := storage.NewKey(fh.Filename, time.Now())
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := store.Put(c.Request.Context(), key, f, fh.Size, contentType); err != nil {
			logger.Error("Failed to store attachment", zap.String("key", key), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
			return
		}

		logger.Info("Attachment stored",
			zap.String("key", key),
			zap.Int64("size", fh.Size),
			zap.Bool("diagnostic", isDiagnostic),
		)

		c.JSON(http.StatusCreated, domain.AttachmentInput{
			FileName:     fh.Filename,
			FilePath:     key,
			FileType:     contentType,
			IsDiagnostic: isDiagnostic,
		})
	}
}

// HandleGetAttachment handles GET /v1/admin/attachments/*path
func HandleGetAttachment(store storage.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := storage.CleanKey(c.Param("path"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
			return
		}

		obj, err := store.Get(c.Request.Context(), key)
		if err != nil {
			respondError(c, logger, "Failed to read attachment", err)
			return
		}
		defer obj.Body.Close()

		c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj.Body, nil)
	}
}
