package domain

// RecordKind names the aggregate a record belongs to
type RecordKind string

const (
	RecordKindComplaint RecordKind = "complaint"
	RecordKindReturn    RecordKind = "return"
	RecordKindInquiry   RecordKind = "inquiry"
)

// ComplaintStatus represents the processing status of a complaint
type ComplaintStatus string

const (
	ComplaintStatusPending    ComplaintStatus = "pending"
	ComplaintStatusInProgress ComplaintStatus = "in-progress"
	ComplaintStatusCompleted  ComplaintStatus = "completed"
	ComplaintStatusRejected   ComplaintStatus = "rejected"
)

// IsValid checks if the complaint status is valid
func (s ComplaintStatus) IsValid() bool {
	switch s {
	case ComplaintStatusPending,
		ComplaintStatusInProgress,
		ComplaintStatusCompleted,
		ComplaintStatusRejected:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a status transition is valid
func (s ComplaintStatus) CanTransitionTo(newStatus ComplaintStatus) bool {
	switch s {
	case ComplaintStatusPending:
		return newStatus == ComplaintStatusInProgress ||
			newStatus == ComplaintStatusRejected
	case ComplaintStatusInProgress:
		return newStatus == ComplaintStatusCompleted ||
			newStatus == ComplaintStatusRejected
	case ComplaintStatusCompleted, ComplaintStatusRejected:
		return false // Terminal states
	default:
		return false
	}
}

// ReturnStatus represents the processing status of a return
type ReturnStatus string

const (
	ReturnStatusPending    ReturnStatus = "pending"
	ReturnStatusApproved   ReturnStatus = "approved"
	ReturnStatusRejected   ReturnStatus = "rejected"
	ReturnStatusProcessing ReturnStatus = "processing"
	ReturnStatusCompleted  ReturnStatus = "completed"
)

// IsValid checks if the return status is valid
func (s ReturnStatus) IsValid() bool {
	switch s {
	case ReturnStatusPending,
		ReturnStatusApproved,
		ReturnStatusRejected,
		ReturnStatusProcessing,
		ReturnStatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a status transition is valid
func (s ReturnStatus) CanTransitionTo(newStatus ReturnStatus) bool {
	switch s {
	case ReturnStatusPending:
		return newStatus == ReturnStatusApproved ||
			newStatus == ReturnStatusRejected
	case ReturnStatusApproved:
		return newStatus == ReturnStatusProcessing ||
			newStatus == ReturnStatusRejected
	case ReturnStatusProcessing:
		return newStatus == ReturnStatusCompleted
	case ReturnStatusRejected, ReturnStatusCompleted:
		return false // Terminal states
	default:
		return false
	}
}

// InquiryStatus represents the handling status of an inquiry
type InquiryStatus string

const (
	InquiryStatusNew        InquiryStatus = "new"
	InquiryStatusInProgress InquiryStatus = "in-progress"
	InquiryStatusCompleted  InquiryStatus = "completed"
	InquiryStatusArchived   InquiryStatus = "archived"
)

// IsValid checks if the inquiry status is valid
func (s InquiryStatus) IsValid() bool {
	switch s {
	case InquiryStatusNew,
		InquiryStatusInProgress,
		InquiryStatusCompleted,
		InquiryStatusArchived:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a status transition is valid
func (s InquiryStatus) CanTransitionTo(newStatus InquiryStatus) bool {
	switch s {
	case InquiryStatusNew:
		return newStatus == InquiryStatusInProgress ||
			newStatus == InquiryStatusArchived
	case InquiryStatusInProgress:
		return newStatus == InquiryStatusCompleted ||
			newStatus == InquiryStatusArchived
	case InquiryStatusCompleted:
		return newStatus == InquiryStatusArchived
	case InquiryStatusArchived:
		return false
	default:
		return false
	}
}

// InquiryType distinguishes the three inquiry forms
type InquiryType string

const (
	InquiryTypeContact InquiryType = "contact"
	InquiryTypeMotor   InquiryType = "motor"
	InquiryTypeB2B     InquiryType = "b2b"
)

func (t InquiryType) IsValid() bool {
	return t == InquiryTypeContact || t == InquiryTypeMotor || t == InquiryTypeB2B
}

// StorageKey is the shared-storage key tabs use for cached inquiries of this type
func (t InquiryType) StorageKey() string {
	switch t {
	case InquiryTypeContact:
		return "contactInquiries"
	case InquiryTypeMotor:
		return "motorInquiries"
	case InquiryTypeB2B:
		return "b2bRegistrations"
	default:
		return ""
	}
}

// VehicleType of the vehicle the part was installed in
type VehicleType string

const (
	VehicleTypeCar        VehicleType = "car"
	VehicleTypeTruck      VehicleType = "truck"
	VehicleTypeMotorcycle VehicleType = "motorcycle"
	VehicleTypeShip       VehicleType = "ship"
	VehicleTypeTrain      VehicleType = "train"
)

func (t VehicleType) IsValid() bool {
	switch t {
	case VehicleTypeCar, VehicleTypeTruck, VehicleTypeMotorcycle, VehicleTypeShip, VehicleTypeTrain:
		return true
	default:
		return false
	}
}

// DeliveryForm is how the defective part reaches the shop
type DeliveryForm string

const (
	DeliveryFormPersonal DeliveryForm = "personal"
	DeliveryFormShipping DeliveryForm = "shipping"
	DeliveryFormPickup   DeliveryForm = "pickup"
)

func (f DeliveryForm) IsValid() bool {
	return f == DeliveryFormPersonal || f == DeliveryFormShipping || f == DeliveryFormPickup
}

// PreferredProcessing is the remedy the customer asks for
type PreferredProcessing string

const (
	PreferredProcessingReturn   PreferredProcessing = "return"
	PreferredProcessingExchange PreferredProcessing = "exchange"
	PreferredProcessingRepair   PreferredProcessing = "repair"
)

func (p PreferredProcessing) IsValid() bool {
	return p == PreferredProcessingReturn || p == PreferredProcessingExchange || p == PreferredProcessingRepair
}

// ItemCondition of a returned article
type ItemCondition string

const (
	ItemConditionOriginalPackaging ItemCondition = "original-packaging"
	ItemConditionOpenedIntact      ItemCondition = "opened-intact"
	ItemConditionDamaged           ItemCondition = "damaged"
	ItemConditionNoPackaging       ItemCondition = "no-packaging"
)

// ReturnReason for sending an article back
type ReturnReason string

const (
	ReturnReasonCustomerWithdrawal ReturnReason = "customer-withdrawal"
	ReturnReasonDeposit            ReturnReason = "deposit"
	ReturnReasonDamaged            ReturnReason = "damaged"
	ReturnReasonWrongOrder         ReturnReason = "wrong-order"
	ReturnReasonOther              ReturnReason = "other"
)
