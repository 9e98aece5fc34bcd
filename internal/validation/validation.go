// Package validation holds the form rules shared by the complaint wizard,
// the public submission endpoints and the return form.
package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

// Result is the outcome of a whole-record check
type Result struct {
	Valid  bool                `json:"valid"`
	Errors []errors.FieldError `json:"errors,omitempty"`
}

// Err returns the result as an *errors.ErrValidation, or nil when valid
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &errors.ErrValidation{Fields: r.Errors}
}

func newResult(fields []errors.FieldError) Result {
	return Result{Valid: len(fields) == 0, Errors: fields}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json names so field errors match the wire format
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(returnItemRules, domain.ReturnItemInput{})
	return v
}

// IsEmail reports whether s is a plausibly well-formed email address
func IsEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func required(fields []errors.FieldError, name, value string) []errors.FieldError {
	if blank(value) {
		fields = append(fields, errors.FieldError{Field: name, Message: "is required"})
	}
	return fields
}
