package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/teilehaus/serviceportal/internal/auth"
	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/repository"
	"github.com/teilehaus/serviceportal/internal/validation"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

// MinPasswordLength for operator accounts
const MinPasswordLength = 10

// LoginResult is returned to the admin client after a successful login
type LoginResult struct {
	Token     string    `json:"token"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type authService struct {
	repos  *repository.Repositories
	issuer *auth.Issuer
	logger *zap.Logger
}

// NewAuthService creates a new operator auth service
func NewAuthService(repos *repository.Repositories, issuer *auth.Issuer, logger *zap.Logger) *authService {
	return &authService{
		repos:  repos,
		issuer: issuer,
		logger: logger,
	}
}

// Login checks the operator's password and issues a bearer token. Unknown
// email, wrong password and inactive accounts all fail the same way.
func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	invalid := &errors.ErrUnauthorized{Message: "invalid credentials"}

	op, err := s.repos.Operator.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if _, ok := err.(*errors.ErrNotFound); ok {
			return nil, invalid
		}
		return nil, err
	}
	if !op.IsActive {
		s.logger.Warn("Login attempt for inactive operator", zap.String("operator_id", op.ID.String()))
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}

	token, expires, err := s.issuer.Issue(op)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Operator logged in", zap.String("operator_id", op.ID.String()))
	return &LoginResult{Token: token, Name: op.Name, ExpiresAt: expires}, nil
}

// CreateOperator stores a new active operator with a bcrypt password hash
func (s *authService) CreateOperator(ctx context.Context, name, email, password string) (*domain.Operator, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)

	var fields []errors.FieldError
	if name == "" {
		fields = append(fields, errors.FieldError{Field: "name", Message: "is required"})
	}
	if !validation.IsEmail(email) {
		fields = append(fields, errors.FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if len(password) < MinPasswordLength {
		fields = append(fields, errors.FieldError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", MinPasswordLength)})
	}
	if len(fields) > 0 {
		return nil, &errors.ErrValidation{Fields: fields}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	op := &domain.Operator{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.repos.Operator.Create(ctx, op); err != nil {
		return nil, err
	}

	s.logger.Info("Operator created", zap.String("operator_id", op.ID.String()))
	return op, nil
}
