// Package storage keeps uploaded complaint attachments. Files go to a MinIO
// bucket when one is configured and to a local directory otherwise.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/config"
)

// Object is a stored file opened for reading
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Store accepts a file and hands back a stable key for it
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Get returns *errors.ErrNotFound for an unknown key
	Get(ctx context.Context, key string) (*Object, error)
	// Delete removes key; a missing key is not an error
	Delete(ctx context.Context, key string) error
}

// New returns a MinIO store when an endpoint is configured, else a LocalStore
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	if cfg.MinioEndpoint == "" {
		logger.Info("Using local attachment storage", zap.String("dir", cfg.Dir))
		return NewLocalStore(cfg.Dir)
	}

	s, err := NewS3Store(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	logger.Info("Using MinIO attachment storage",
		zap.String("endpoint", cfg.MinioEndpoint),
		zap.String("bucket", cfg.MinioBucket),
	)
	return s, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewKey builds a unique object key that keeps the original file name readable,
// e.g. attachments/2024/03/<uuid>-Rechnung_42.pdf
func NewKey(fileName string, now time.Time) string {
	base := filepath.Base(strings.ReplaceAll(fileName, `\`, "/"))
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		base = "file"
	}
	if len(base) > 100 {
		base = base[len(base)-100:]
	}
	return fmt.Sprintf("attachments/%04d/%02d/%s-%s", now.Year(), int(now.Month()), uuid.NewString(), base)
}

// CleanKey validates a key taken from a request path
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	cleaned := path.Clean(key)
	if key == "" || cleaned == "." || cleaned != key || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return cleaned, nil
}

func contentTypeOf(key string) string {
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}
