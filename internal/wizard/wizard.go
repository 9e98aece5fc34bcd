// Package wizard drives the multi-step complaint form: one active step at a
// time, validation-gated forward navigation and a single atomic submit.
package wizard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/validation"
)

// Step is the index of the active form page
type Step int

const (
	StepCustomer    Step = validation.StepCustomer
	StepItems       Step = validation.StepItems
	StepDescription Step = validation.StepDescription
	StepVehicle     Step = validation.StepVehicle
	StepLegal       Step = validation.StepLegal
	StepSummary     Step = validation.StepSummary
)

func (s Step) String() string {
	switch s {
	case StepCustomer:
		return "customer"
	case StepItems:
		return "items"
	case StepDescription:
		return "description"
	case StepVehicle:
		return "vehicle"
	case StepLegal:
		return "legal"
	case StepSummary:
		return "summary"
	default:
		return "unknown"
	}
}

var (
	ErrNotOnSummary     = errors.New("submit is only possible from the summary step")
	ErrSubmitInFlight   = errors.New("a submission is already in flight")
	ErrAlreadyConfirmed = errors.New("complaint already submitted")
)

// Submitter hands a complete draft to the record store
type Submitter interface {
	SubmitComplaint(ctx context.Context, draft *domain.ComplaintDraft) (uuid.UUID, error)
}

// Wizard holds the in-progress draft. It is safe for concurrent use; while a
// submit is outstanding every mutator is a no-op.
type Wizard struct {
	mu                  sync.Mutex
	step                Step
	draft               domain.ComplaintDraft
	hasAttachments      bool
	hasDiagnosticOutput bool
	submitting          bool
	confirmedID         uuid.UUID

	// submissionKey identifies one draft to the record store. It is drawn
	// when the summary is reached and kept for retries of the same payload.
	submissionKey string
	attempted     []byte
}

type submissionKeyContextKey struct{}

// WithSubmissionKey attaches the idempotency key of a submission to ctx
func WithSubmissionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, submissionKeyContextKey{}, key)
}

// SubmissionKeyFrom returns the key attached by WithSubmissionKey
func SubmissionKeyFrom(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(submissionKeyContextKey{}).(string)
	return key, ok && key != ""
}

// New creates a wizard on the first step with one empty item and a car as vehicle
func New() *Wizard {
	return &Wizard{
		step: StepCustomer,
		draft: domain.ComplaintDraft{
			Items:       []domain.ItemInput{{Quantity: 1}},
			VehicleData: &domain.VehicleInput{VehicleType: domain.VehicleTypeCar},
			Attachments: []domain.AttachmentInput{},
		},
	}
}

// Step returns the active step
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Draft returns a deep copy of the current draft
func (w *Wizard) Draft() domain.ComplaintDraft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneDraft(w.draft)
}

// Submitting reports whether a submit is outstanding
func (w *Wizard) Submitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitting
}

// Confirmed returns the id of the submitted complaint, if any
func (w *Wizard) Confirmed() (uuid.UUID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.confirmedID, w.confirmedID != uuid.Nil
}

// Errors lists the failed rules of the active step
func (w *Wizard) Errors() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	fields := validation.StepErrors(int(w.step), &w.draft)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Field+": "+f.Message)
	}
	return out
}

// Next advances one step if the active step validates
func (w *Wizard) Next() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step >= StepSummary || w.submitting || w.confirmedID != uuid.Nil {
		return false
	}
	if !validation.ValidateStep(int(w.step), &w.draft) {
		return false
	}
	w.step++
	if w.step == StepSummary {
		w.submissionKey = uuid.NewString()
		w.attempted = nil
	}
	return true
}

// SubmissionKey returns the idempotency key the next Submit sends. It is
// empty before the summary step is reached.
func (w *Wizard) SubmissionKey() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submissionKey
}

// Back moves one step back without validating
func (w *Wizard) Back() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step <= StepCustomer || w.submitting || w.confirmedID != uuid.Nil {
		return false
	}
	w.step--
	return true
}

// Edit applies fn to the draft. Used for the plain field inputs of every step.
// A vehicle record set to nil is replaced by an empty one.
func (w *Wizard) Edit(fn func(d *domain.ComplaintDraft)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting || w.confirmedID != uuid.Nil {
		return
	}
	fn(&w.draft)
	if w.draft.VehicleData == nil {
		w.draft.VehicleData = &domain.VehicleInput{VehicleType: domain.VehicleTypeCar}
	}
}

// AddItem appends an empty item
func (w *Wizard) AddItem() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step < StepItems || w.submitting {
		return false
	}
	w.draft.Items = append(w.draft.Items, domain.ItemInput{Quantity: 1})
	return true
}

// RemoveItem drops the item at index. The first item cannot be removed.
func (w *Wizard) RemoveItem(index int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step < StepItems || w.submitting {
		return false
	}
	if index <= 0 || index >= len(w.draft.Items) || len(w.draft.Items) <= 1 {
		return false
	}
	w.draft.Items = append(w.draft.Items[:index], w.draft.Items[index+1:]...)
	return true
}

// UpdateItem applies fn to the item at index
func (w *Wizard) UpdateItem(index int, fn func(item *domain.ItemInput)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if index < 0 || index >= len(w.draft.Items) || w.submitting {
		return false
	}
	fn(&w.draft.Items[index])
	return true
}

// SetVehicleType switches the vehicle type; the vehicle record always exists in the draft
func (w *Wizard) SetVehicleType(t domain.VehicleType) {
	w.Edit(func(d *domain.ComplaintDraft) {
		d.VehicleData.VehicleType = t
	})
}

// HasAttachments reports the general-evidence toggle
func (w *Wizard) HasAttachments() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hasAttachments
}

// HasDiagnosticOutput reports the diagnostic-printout toggle
func (w *Wizard) HasDiagnosticOutput() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hasDiagnosticOutput
}

// SetHasAttachments toggles the general-evidence panel. Turning it off
// deletes every non-diagnostic attachment from the draft.
func (w *Wizard) SetHasAttachments(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return
	}
	w.hasAttachments = on
	if !on {
		w.draft.Attachments = keepAttachments(w.draft.Attachments, true)
	}
}

// SetHasDiagnosticOutput toggles the diagnostic-printout panel. Turning it
// off deletes every diagnostic attachment from the draft.
func (w *Wizard) SetHasDiagnosticOutput(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return
	}
	w.hasDiagnosticOutput = on
	if !on {
		w.draft.Attachments = keepAttachments(w.draft.Attachments, false)
	}
}

// AddAttachment records an uploaded file. The matching toggle must be on.
func (w *Wizard) AddAttachment(a domain.AttachmentInput) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return false
	}
	if a.IsDiagnostic && !w.hasDiagnosticOutput || !a.IsDiagnostic && !w.hasAttachments {
		return false
	}
	w.draft.Attachments = append(w.draft.Attachments, a)
	return true
}

// RemoveAttachment drops the attachment at index
func (w *Wizard) RemoveAttachment(index int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting || index < 0 || index >= len(w.draft.Attachments) {
		return false
	}
	w.draft.Attachments = append(w.draft.Attachments[:index], w.draft.Attachments[index+1:]...)
	return true
}

// Submit sends the whole draft. It is only allowed from the summary step
// and only once at a time. On failure the draft and step are untouched and
// the call can be repeated.
func (w *Wizard) Submit(ctx context.Context, s Submitter) (uuid.UUID, error) {
	w.mu.Lock()
	if w.confirmedID != uuid.Nil {
		w.mu.Unlock()
		return uuid.Nil, ErrAlreadyConfirmed
	}
	if w.step != StepSummary {
		w.mu.Unlock()
		return uuid.Nil, ErrNotOnSummary
	}
	if w.submitting {
		w.mu.Unlock()
		return uuid.Nil, ErrSubmitInFlight
	}
	w.submitting = true
	payload := cloneDraft(w.draft)
	data, _ := json.Marshal(payload)
	if w.submissionKey == "" || (w.attempted != nil && !bytes.Equal(w.attempted, data)) {
		w.submissionKey = uuid.NewString()
	}
	w.attempted = data
	ctx = WithSubmissionKey(ctx, w.submissionKey)
	w.mu.Unlock()

	id, err := s.SubmitComplaint(ctx, &payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		return uuid.Nil, err
	}
	w.confirmedID = id
	return id, nil
}

func keepAttachments(in []domain.AttachmentInput, diagnostic bool) []domain.AttachmentInput {
	out := make([]domain.AttachmentInput, 0, len(in))
	for _, a := range in {
		if a.IsDiagnostic == diagnostic {
			out = append(out, a)
		}
	}
	return out
}

func cloneDraft(d domain.ComplaintDraft) domain.ComplaintDraft {
	// JSON round trip covers every nested pointer and slice
	data, err := json.Marshal(d)
	if err != nil {
		panic("wizard: draft not serializable: " + err.Error())
	}
	var out domain.ComplaintDraft
	if err := json.Unmarshal(data, &out); err != nil {
		panic("wizard: draft not deserializable: " + err.Error())
	}
	return out
}
