package validation

import (
	"fmt"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

// Wizard step indices the rules are keyed by
const (
	StepCustomer = iota
	StepItems
	StepDescription
	StepVehicle
	StepLegal
	StepSummary
)

// ValidateStep reports whether the draft satisfies the rules of one wizard step
func ValidateStep(step int, d *domain.ComplaintDraft) bool {
	return len(StepErrors(step, d)) == 0
}

// StepErrors lists the failed rules of one wizard step
func StepErrors(step int, d *domain.ComplaintDraft) []errors.FieldError {
	if d == nil {
		return []errors.FieldError{{Field: "draft", Message: "is required"}}
	}
	switch step {
	case StepCustomer:
		return customerErrors(d)
	case StepItems:
		return itemErrors(d.Items)
	case StepDescription:
		return descriptionErrors(d)
	case StepVehicle:
		if d.VehicleData == nil {
			return []errors.FieldError{{Field: "vehicleData", Message: "is required"}}
		}
		return vehicleErrors(d.VehicleData)
	case StepLegal, StepSummary:
		// Acknowledgements are advisory
		return nil
	default:
		return []errors.FieldError{{Field: "step", Message: fmt.Sprintf("unknown step %d", step)}}
	}
}

// ValidateComplete checks a whole complaint submission. Vehicle rules only
// apply when vehicle data is part of the submission.
func ValidateComplete(d *domain.ComplaintDraft) Result {
	if d == nil {
		return newResult([]errors.FieldError{{Field: "draft", Message: "is required"}})
	}
	var fields []errors.FieldError
	fields = append(fields, customerErrors(d)...)
	fields = append(fields, itemErrors(d.Items)...)
	fields = append(fields, descriptionErrors(d)...)
	if d.VehicleData != nil {
		fields = append(fields, vehicleErrors(d.VehicleData)...)
	}
	for i, a := range d.Attachments {
		fields = required(fields, fmt.Sprintf("attachments[%d].fileName", i), a.FileName)
		fields = required(fields, fmt.Sprintf("attachments[%d].filePath", i), a.FilePath)
	}
	return newResult(fields)
}

func customerErrors(d *domain.ComplaintDraft) []errors.FieldError {
	var fields []errors.FieldError
	fields = required(fields, "receiptNumber", d.ReceiptNumber)
	fields = required(fields, "customerNumber", d.CustomerNumber)
	fields = required(fields, "customerName", d.CustomerName)
	if blank(d.Email) {
		fields = append(fields, errors.FieldError{Field: "email", Message: "is required"})
	} else if !IsEmail(d.Email) {
		fields = append(fields, errors.FieldError{Field: "email", Message: "is not a valid email address"})
	}
	return fields
}

func itemErrors(items []domain.ItemInput) []errors.FieldError {
	if len(items) == 0 {
		return []errors.FieldError{{Field: "items", Message: "at least one item is required"}}
	}
	var fields []errors.FieldError
	for i, item := range items {
		prefix := fmt.Sprintf("items[%d].", i)
		fields = required(fields, prefix+"manufacturer", item.Manufacturer)
		fields = required(fields, prefix+"articleIndex", item.ArticleIndex)
		fields = required(fields, prefix+"articleName", item.ArticleName)
		fields = required(fields, prefix+"purchaseDate", item.PurchaseDate)
		if item.Quantity <= 0 {
			fields = append(fields, errors.FieldError{Field: prefix + "quantity", Message: "must be greater than 0"})
		}
	}
	return fields
}

func descriptionErrors(d *domain.ComplaintDraft) []errors.FieldError {
	var fields []errors.FieldError
	fields = required(fields, "description", d.Description)
	fields = required(fields, "errorDate", d.ErrorDate)
	if !d.DeliveryForm.IsValid() {
		fields = append(fields, errors.FieldError{Field: "deliveryForm", Message: "must be one of personal, shipping, pickup"})
	}
	if !d.PreferredProcessing.IsValid() {
		fields = append(fields, errors.FieldError{Field: "preferredProcessing", Message: "must be one of return, exchange, repair"})
	}
	return fields
}

func vehicleErrors(v *domain.VehicleInput) []errors.FieldError {
	var fields []errors.FieldError
	if v.VehicleType != "" && !v.VehicleType.IsValid() {
		fields = append(fields, errors.FieldError{Field: "vehicleData.vehicleType", Message: "must be one of car, truck, motorcycle, ship, train"})
	}
	fields = required(fields, "vehicleData.manufacturer", v.Manufacturer)
	fields = required(fields, "vehicleData.model", v.Model)
	fields = required(fields, "vehicleData.year", v.Year)
	fields = required(fields, "vehicleData.vin", v.VIN)
	if v.MileageInstallation != nil && *v.MileageInstallation < 0 {
		fields = append(fields, errors.FieldError{Field: "vehicleData.mileageInstallation", Message: "must not be negative"})
	}
	if v.MileageRemoval != nil && *v.MileageRemoval < 0 {
		fields = append(fields, errors.FieldError{Field: "vehicleData.mileageRemoval", Message: "must not be negative"})
	}
	return fields
}
