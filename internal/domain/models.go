package domain

import (
	"time"

	"github.com/google/uuid"
)

// CustomerReference identifies the customer behind a complaint
type CustomerReference struct {
	CustomerNumber string  `json:"customerNumber"`
	CustomerName   string  `json:"customerName"`
	Email          string  `json:"email"`
	Phone          *string `json:"phone,omitempty"`
}

// ItemInput is one defective article as entered in the complaint form
type ItemInput struct {
	Manufacturer string `json:"manufacturer"`
	ArticleIndex string `json:"articleIndex"`
	ArticleName  string `json:"articleName"`
	PurchaseDate string `json:"purchaseDate"`
	Quantity     int    `json:"quantity"`
}

// VehicleInput describes the vehicle the part was installed in
type VehicleInput struct {
	VehicleType         VehicleType `json:"vehicleType"`
	Manufacturer        string      `json:"manufacturer"`
	Model               string      `json:"model"`
	VehicleTypeDetail   *string     `json:"vehicleTypeDetail,omitempty"`
	Year                string      `json:"year"`
	VIN                 string      `json:"vin"`
	InstallationDate    *string     `json:"installationDate,omitempty"`
	RemovalDate         *string     `json:"removalDate,omitempty"`
	MileageInstallation *int        `json:"mileageInstallation,omitempty"`
	MileageRemoval      *int        `json:"mileageRemoval,omitempty"`
	Installer           *string     `json:"installer,omitempty"`
}

// AttachmentInput is the metadata of an uploaded file
type AttachmentInput struct {
	FileName     string `json:"fileName"`
	FilePath     string `json:"filePath"`
	FileType     string `json:"fileType"`
	IsDiagnostic bool   `json:"isDiagnostic"`
}

// LegalAcknowledgements are the checkboxes of the last wizard step
type LegalAcknowledgements struct {
	TermsAccepted      bool `json:"termsAccepted"`
	PrivacyAccepted    bool `json:"privacyAccepted"`
	CostNoticeAccepted bool `json:"costNoticeAccepted"`
}

// ComplaintDraft is the in-progress complaint held by the wizard and sent whole on submit
type ComplaintDraft struct {
	CustomerReference
	ReceiptNumber       string                `json:"receiptNumber"`
	Items               []ItemInput           `json:"items"`
	Description         string                `json:"description"`
	ErrorDate           string                `json:"errorDate"`
	DeliveryForm        DeliveryForm          `json:"deliveryForm"`
	PreferredProcessing PreferredProcessing   `json:"preferredProcessing"`
	AdditionalInfo      *string               `json:"additionalInfo,omitempty"`
	AdditionalCosts     bool                  `json:"additionalCosts"`
	Attachments         []AttachmentInput     `json:"attachments"`
	VehicleData         *VehicleInput         `json:"vehicleData,omitempty"`
	Legal               LegalAcknowledgements `json:"legal"`
}

// Complaint represents a submitted complaint (aggregate root)
type Complaint struct {
	ID uuid.UUID `json:"id"`
	CustomerReference
	ReceiptNumber       string                `json:"receiptNumber"`
	Description         string                `json:"description"`
	ErrorDate           string                `json:"errorDate"`
	DeliveryForm        DeliveryForm          `json:"deliveryForm"`
	PreferredProcessing PreferredProcessing   `json:"preferredProcessing"`
	AdditionalInfo      *string               `json:"additionalInfo,omitempty"`
	AdditionalCosts     bool                  `json:"additionalCosts"`
	Legal               LegalAcknowledgements `json:"legal"`
	Status              ComplaintStatus       `json:"status"`
	ProcessorName       *string               `json:"processorName,omitempty"`
	Notes               *string               `json:"notes,omitempty"`
	CreatedAt           time.Time             `json:"createdAt"`
	UpdatedAt           time.Time             `json:"updatedAt"`

	// Children, populated on create and by detail reads
	Items       []*ComplaintItem `json:"items,omitempty"`
	VehicleData *VehicleData     `json:"vehicleData,omitempty"`
	Attachments []*Attachment    `json:"attachments,omitempty"`
}

// ComplaintItem is an article owned by exactly one complaint
type ComplaintItem struct {
	ID          uuid.UUID `json:"id"`
	ComplaintID uuid.UUID `json:"complaintId"`
	Position    int       `json:"position"`
	ItemInput
}

// VehicleData is the optional vehicle record of a complaint
type VehicleData struct {
	ID          uuid.UUID `json:"id"`
	ComplaintID uuid.UUID `json:"complaintId"`
	VehicleInput
}

// Attachment is file metadata owned by a complaint
type Attachment struct {
	ID          uuid.UUID `json:"id"`
	ComplaintID uuid.UUID `json:"complaintId"`
	AttachmentInput
}

// ReturnItemInput is one article line of the return form
type ReturnItemInput struct {
	ArticleNumber      string        `json:"articleNumber" validate:"required,max=64"`
	Quantity           int           `json:"quantity" validate:"required,min=1"`
	DeliveryNoteNumber *string       `json:"deliveryNoteNumber,omitempty" validate:"omitempty,max=64"`
	Condition          ItemCondition `json:"condition" validate:"required,oneof=original-packaging opened-intact damaged no-packaging"`
	ReturnReason       ReturnReason  `json:"returnReason" validate:"required,oneof=customer-withdrawal deposit damaged wrong-order other"`
	OtherReason        *string       `json:"otherReason,omitempty" validate:"omitempty,max=500"`
}

// ReturnInput is the return form as submitted
type ReturnInput struct {
	CustomerNumber string            `json:"customerNumber" validate:"required,min=3,max=32"`
	CustomerName   string            `json:"customerName" validate:"required,min=2,max=120"`
	Email          string            `json:"email" validate:"required,email,max=254"`
	Comments       *string           `json:"comments,omitempty" validate:"omitempty,max=2000"`
	Items          []ReturnItemInput `json:"items" validate:"required,min=1,dive"`
}

// Return represents a submitted return request (aggregate root)
type Return struct {
	ID             uuid.UUID     `json:"id"`
	CustomerNumber string        `json:"customerNumber"`
	CustomerName   string        `json:"customerName"`
	Email          string        `json:"email"`
	Comments       *string       `json:"comments,omitempty"`
	Status         ReturnStatus  `json:"status"`
	ProcessorName  *string       `json:"processorName,omitempty"`
	Notes          *string       `json:"notes,omitempty"`
	Items          []*ReturnItem `json:"items,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// ReturnItem is an article line owned by one return
type ReturnItem struct {
	ID       uuid.UUID `json:"id"`
	ReturnID uuid.UUID `json:"returnId"`
	Position int       `json:"position"`
	ReturnItemInput
}

// Inquiry is a contact, motor-repair or B2B registration request
type Inquiry struct {
	ID            uuid.UUID              `json:"id"`
	Type          InquiryType            `json:"type"`
	Data          map[string]interface{} `json:"data"` // JSONB
	Status        InquiryStatus          `json:"status"`
	ProcessorName *string                `json:"processorName,omitempty"`
	Notes         *string                `json:"notes,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// PopupConfig drives the marketing popup on the public site
type PopupConfig struct {
	Active          bool      `json:"active"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ImageURL        string    `json:"imageUrl"`
	ButtonText      string    `json:"buttonText"`
	ButtonURL       string    `json:"buttonUrl"`
	RedirectEnabled bool      `json:"redirectEnabled"`
	Duration        int       `json:"duration"`
	MaxViews        int       `json:"maxViews"`
	ViewInterval    int       `json:"viewInterval"`
	BackgroundColor string    `json:"backgroundColor"`
	TextColor       string    `json:"textColor"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// StatusEvent represents an audit event for a status mutation
type StatusEvent struct {
	ID            uuid.UUID  `json:"id"`
	RecordKind    RecordKind `json:"recordKind"`
	RecordID      uuid.UUID  `json:"recordId"`
	EventType     string     `json:"eventType"`
	From          string     `json:"from,omitempty"`
	To            string     `json:"to"`
	ProcessorName *string    `json:"processorName,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	Forced        bool       `json:"forced"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Operator represents an admin panel user
type Operator struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdempotencyKey stores idempotency information for public submissions
type IdempotencyKey struct {
	Key         string
	RecordKind  RecordKind
	RecordID    uuid.UUID
	RequestHash string
	CreatedAt   time.Time
}

// Filter narrows list reads. Empty fields do not filter.
type Filter struct {
	Status     string
	SearchTerm string
	Type       InquiryType
}
