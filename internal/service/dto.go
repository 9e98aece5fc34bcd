package service

import (
	"github.com/teilehaus/serviceportal/internal/domain"
)

// StatusChange is the body of a status mutation
type StatusChange struct {
	Status        string  `json:"status" binding:"required"`
	ProcessorName *string `json:"processorName,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

// ComplaintDetail is the joined view of one complaint. Unavailable names the
// parts that could not be loaded; the view is still returned.
type ComplaintDetail struct {
	Complaint   *domain.Complaint       `json:"complaint"`
	Items       []*domain.ComplaintItem `json:"items"`
	VehicleData *domain.VehicleData     `json:"vehicleData"`
	Attachments []*domain.Attachment    `json:"attachments"`
	Unavailable []string                `json:"unavailable,omitempty"`
}

// ReturnDetail is the joined view of one return
type ReturnDetail struct {
	Return      *domain.Return       `json:"return"`
	Items       []*domain.ReturnItem `json:"items"`
	Unavailable []string             `json:"unavailable,omitempty"`
}

// InquirySubmission is the public inquiry form
type InquirySubmission struct {
	Type domain.InquiryType     `json:"type" binding:"required"`
	Data map[string]interface{} `json:"data" binding:"required"`
}

// Parts of a detail view that can be reported as unavailable
const (
	PartItems       = "items"
	PartVehicleData = "vehicleData"
	PartAttachments = "attachments"
)
