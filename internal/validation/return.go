package validation

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

// ValidateReturn checks a return form against its struct-tag schema
func ValidateReturn(r *domain.ReturnInput) Result {
	if r == nil {
		return newResult([]errors.FieldError{{Field: "return", Message: "is required"}})
	}
	return newResult(structErrors(validate.Struct(r)))
}

// returnItemRules enforces otherReason being present iff the reason is "other"
func returnItemRules(sl validator.StructLevel) {
	item := sl.Current().Interface().(domain.ReturnItemInput)
	if item.ReturnReason != domain.ReturnReasonOther {
		return
	}
	if item.OtherReason == nil || blank(*item.OtherReason) {
		sl.ReportError(item.OtherReason, "otherReason", "OtherReason", "required_if", "returnReason other")
	}
}

func structErrors(err error) []errors.FieldError {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return []errors.FieldError{{Field: "", Message: err.Error()}}
	}
	fields := make([]errors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, errors.FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: message(fe),
		})
	}
	return fields
}

// fieldPath drops the leading struct type name from a validator namespace
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when " + fe.Param()
	case "email":
		return "is not a valid email address"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return "failed " + fe.Tag()
	}
}
