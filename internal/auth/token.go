// Package auth issues and verifies operator bearer tokens
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

// RoleOperator is the only role accepted on admin routes
const RoleOperator = "operator"

// Claims is the verified content of a token
type Claims struct {
	OperatorID uuid.UUID
	Name       string
	Role       string
	ExpiresAt  time.Time
}

// Issuer signs HS256 tokens with a shared secret
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates a token for op
func (i *Issuer) Issue(op *domain.Operator) (string, time.Time, error) {
	expires := i.now().Add(i.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  op.ID.String(),
		"role": RoleOperator,
		"name": op.Name,
		"exp":  expires.Unix(),
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies signature, expiry and role
func (i *Issuer) Parse(raw string) (*Claims, error) {
	parsed, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !parsed.Valid {
		return nil, &errors.ErrUnauthorized{Message: "invalid token"}
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, &errors.ErrUnauthorized{Message: "invalid token"}
	}
	role, _ := mc["role"].(string)
	if role != RoleOperator {
		return nil, &errors.ErrUnauthorized{Message: "insufficient permissions"}
	}
	sub, _ := mc["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, &errors.ErrUnauthorized{Message: "invalid subject"}
	}
	name, _ := mc["name"].(string)

	claims := &Claims{OperatorID: id, Name: name, Role: role}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims, nil
}
