package validation

import (
	"fmt"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

var inquiryRequiredFields = map[domain.InquiryType][]string{
	domain.InquiryTypeContact: {"name", "email", "message"},
	domain.InquiryTypeMotor:   {"name", "email", "engineType"},
	domain.InquiryTypeB2B:     {"companyName", "contactPerson", "email"},
}

// ValidateInquiry checks the variant payload of an inquiry against its type
func ValidateInquiry(typ domain.InquiryType, data map[string]interface{}) Result {
	if !typ.IsValid() {
		return newResult([]errors.FieldError{{Field: "type", Message: "must be one of contact, motor, b2b"}})
	}
	var fields []errors.FieldError
	for _, key := range inquiryRequiredFields[typ] {
		s, ok := data[key].(string)
		if !ok || blank(s) {
			fields = append(fields, errors.FieldError{Field: "data." + key, Message: "is required"})
		}
	}
	if email, ok := data["email"].(string); ok && !blank(email) && !IsEmail(email) {
		fields = append(fields, errors.FieldError{Field: "data.email", Message: "is not a valid email address"})
	}
	if phone, ok := data["phone"]; ok {
		if _, isString := phone.(string); !isString {
			fields = append(fields, errors.FieldError{Field: "data.phone", Message: fmt.Sprintf("must be a string, got %T", phone)})
		}
	}
	return newResult(fields)
}
