package errors

import (
	"fmt"
	"strings"
)

// ErrNotFound is returned when a record does not exist
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnauthorized is returned when credentials are missing or invalid
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	return "unauthorized: " + e.Message
}

// ErrInvalidStateTransition is returned when a strict status transition is refused
type ErrInvalidStateTransition struct {
	From interface{}
	To   interface{}
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %v to %v", e.From, e.To)
}

// FieldError describes one failed rule
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrValidation carries every failed field of a submission
type ErrValidation struct {
	Fields []FieldError
}

func (e *ErrValidation) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ErrConflict is returned when a request collides with an earlier one,
// e.g. an idempotency key reused with a different body
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return "conflict: " + e.Message
}

// ErrTransport wraps network or server failures seen by HTTP clients.
// The operation is retryable by repeating the same call.
type ErrTransport struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ErrTransport) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ErrTransport) Unwrap() error { return e.Err }
