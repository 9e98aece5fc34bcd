package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/broadcast"
	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/repository"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

// DefaultPopupConfig is served until an operator saves a configuration
func DefaultPopupConfig() *domain.PopupConfig {
	return &domain.PopupConfig{
		Active:          false,
		Duration:        10,
		MaxViews:        3,
		ViewInterval:    24,
		BackgroundColor: "#ffffff",
		TextColor:       "#000000",
	}
}

type popupService struct {
	repos   *repository.Repositories
	channel *broadcast.Channel
	logger  *zap.Logger
}

// NewPopupService creates a new popup config service
func NewPopupService(repos *repository.Repositories, channel *broadcast.Channel, logger *zap.Logger) *popupService {
	return &popupService{
		repos:   repos,
		channel: channel,
		logger:  logger,
	}
}

// Get returns the stored configuration or the default one
func (s *popupService) Get(ctx context.Context) (*domain.PopupConfig, error) {
	cfg, err := s.repos.PopupConfig.Get(ctx)
	if err != nil {
		if _, ok := err.(*errors.ErrNotFound); ok {
			return DefaultPopupConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Save replaces the configuration and broadcasts it under the popup key
func (s *popupService) Save(ctx context.Context, cfg *domain.PopupConfig) (*domain.PopupConfig, error) {
	var fields []errors.FieldError
	if cfg.Duration < 0 {
		fields = append(fields, errors.FieldError{Field: "duration", Message: "must not be negative"})
	}
	if cfg.MaxViews < 0 {
		fields = append(fields, errors.FieldError{Field: "maxViews", Message: "must not be negative"})
	}
	if cfg.ViewInterval < 0 {
		fields = append(fields, errors.FieldError{Field: "viewInterval", Message: "must not be negative"})
	}
	if cfg.RedirectEnabled && cfg.ButtonURL == "" {
		fields = append(fields, errors.FieldError{Field: "buttonUrl", Message: "is required when redirect is enabled"})
	}
	if len(fields) > 0 {
		return nil, &errors.ErrValidation{Fields: fields}
	}

	if err := s.repos.PopupConfig.Save(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.Info("Popup config saved", zap.Bool("active", cfg.Active))
	if s.channel != nil {
		if err := s.channel.Publish(ctx, originFrom(ctx), broadcast.KeyPopupConfig, cfg); err != nil {
			s.logger.Warn("Failed to broadcast popup config", zap.Error(err))
		}
	}
	return cfg, nil
}
