// Package memory is a map-backed record store with the same semantics as
// the postgres repositories. It backs tests and STORE_DRIVER=memory runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/repository"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

// Store holds every table. All repositories returned by NewRepositories
// share one Store and one lock, so a cascade delete is atomic.
type Store struct {
	mu  sync.RWMutex
	seq int64
	now func() time.Time

	complaints  map[uuid.UUID]*complaintRow
	items       map[uuid.UUID][]*domain.ComplaintItem
	vehicles    map[uuid.UUID]*domain.VehicleData
	attachments map[uuid.UUID][]*domain.Attachment
	returns     map[uuid.UUID]*returnRow
	returnItems map[uuid.UUID][]*domain.ReturnItem
	inquiries   map[uuid.UUID]*inquiryRow
	popup       *domain.PopupConfig
	events      []*domain.StatusEvent
	idempotency map[string]*domain.IdempotencyKey
	operators   map[uuid.UUID]*domain.Operator
}

type complaintRow struct {
	seq int64
	domain.Complaint
}

type returnRow struct {
	seq int64
	domain.Return
}

type inquiryRow struct {
	seq int64
	domain.Inquiry
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		now:         time.Now,
		complaints:  make(map[uuid.UUID]*complaintRow),
		items:       make(map[uuid.UUID][]*domain.ComplaintItem),
		vehicles:    make(map[uuid.UUID]*domain.VehicleData),
		attachments: make(map[uuid.UUID][]*domain.Attachment),
		returns:     make(map[uuid.UUID]*returnRow),
		returnItems: make(map[uuid.UUID][]*domain.ReturnItem),
		inquiries:   make(map[uuid.UUID]*inquiryRow),
		idempotency: make(map[string]*domain.IdempotencyKey),
		operators:   make(map[uuid.UUID]*domain.Operator),
	}
}

// NewRepositories creates all repositories over a fresh store
func NewRepositories() *repository.Repositories {
	return NewStore().Repositories()
}

// Repositories exposes the store through the repository interfaces
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Complaint:     &complaintRepository{s},
		ComplaintItem: &complaintItemRepository{s},
		VehicleData:   &vehicleDataRepository{s},
		Attachment:    &attachmentRepository{s},
		Return:        &returnRepository{s},
		ReturnItem:    &returnItemRepository{s},
		Inquiry:       &inquiryRepository{s},
		PopupConfig:   &popupConfigRepository{s},
		StatusEvent:   &statusEventRepository{s},
		Idempotency:   &idempotencyRepository{s},
		Operator:      &operatorRepository{s},
	}
}

// SetClock replaces the time source; tests use it to order records
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

// matches reports a case-insensitive substring hit on any field.
// An empty term matches everything.
func matches(term string, fields ...string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func applyPatch(processorName, notes **string, patch repository.StatusPatch) {
	if patch.ProcessorName != nil {
		v := *patch.ProcessorName
		*processorName = &v
	}
	if patch.Notes != nil {
		v := *patch.Notes
		*notes = &v
	}
}

// newestFirst orders by creation time, then by insertion order
func newestFirst(created func(i int) time.Time, seq func(i int) int64) func(i, j int) bool {
	return func(i, j int) bool {
		ci, cj := created(i), created(j)
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return seq(i) > seq(j)
	}
}

type complaintRepository struct{ s *Store }

func (r *complaintRepository) Create(ctx context.Context, c *domain.Complaint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = domain.ComplaintStatusPending
	}

	items := make([]*domain.ComplaintItem, 0, len(c.Items))
	for i, item := range c.Items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.ComplaintID = c.ID
		item.Position = i
		cp := *item
		items = append(items, &cp)
	}
	r.s.items[c.ID] = items

	if c.VehicleData != nil {
		if c.VehicleData.ID == uuid.Nil {
			c.VehicleData.ID = uuid.New()
		}
		c.VehicleData.ComplaintID = c.ID
		cp := *c.VehicleData
		r.s.vehicles[c.ID] = &cp
	}

	atts := make([]*domain.Attachment, 0, len(c.Attachments))
	for _, a := range c.Attachments {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		a.ComplaintID = c.ID
		cp := *a
		atts = append(atts, &cp)
	}
	r.s.attachments[c.ID] = atts

	root := *c
	root.Items, root.VehicleData, root.Attachments = nil, nil, nil
	r.s.complaints[c.ID] = &complaintRow{seq: r.s.nextSeq(), Complaint: root}
	return nil
}

func (r *complaintRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Complaint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.complaints[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "complaint", ID: id.String()}
	}
	c := row.Complaint
	return &c, nil
}

func (r *complaintRepository) List(ctx context.Context, filter domain.Filter) ([]*domain.Complaint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rows := make([]*complaintRow, 0, len(r.s.complaints))
	for _, row := range r.s.complaints {
		if filter.Status != "" && string(row.Status) != filter.Status {
			continue
		}
		if !matches(filter.SearchTerm, row.CustomerName, row.CustomerNumber, row.ReceiptNumber, row.Email) {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, newestFirst(func(i int) time.Time { return rows[i].CreatedAt },
		func(i int) int64 { return rows[i].seq }))

	out := make([]*domain.Complaint, len(rows))
	for i, row := range rows {
		c := row.Complaint
		out[i] = &c
	}
	return out, nil
}

func (r *complaintRepository) UpdateStatus(ctx context.Context, id uuid.UUID, patch repository.StatusPatch) (*domain.Complaint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.complaints[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "complaint", ID: id.String()}
	}
	if patch.Status != "" {
		row.Status = domain.ComplaintStatus(patch.Status)
	}
	applyPatch(&row.ProcessorName, &row.Notes, patch)
	row.UpdatedAt = laterOf(r.s.now(), row.CreatedAt)
	c := row.Complaint
	return &c, nil
}

func (r *complaintRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.complaints[id]; !ok {
		return &errors.ErrNotFound{Resource: "complaint", ID: id.String()}
	}
	delete(r.s.complaints, id)
	delete(r.s.items, id)
	delete(r.s.vehicles, id)
	delete(r.s.attachments, id)
	r.s.dropTrail(domain.RecordKindComplaint, id)
	return nil
}

type complaintItemRepository struct{ s *Store }

func (r *complaintItemRepository) GetByComplaintID(ctx context.Context, complaintID uuid.UUID) ([]*domain.ComplaintItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := r.s.items[complaintID]
	out := make([]*domain.ComplaintItem, len(items))
	for i, item := range items {
		cp := *item
		out[i] = &cp
	}
	return out, nil
}

type vehicleDataRepository struct{ s *Store }

func (r *vehicleDataRepository) GetByComplaintID(ctx context.Context, complaintID uuid.UUID) (*domain.VehicleData, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.vehicles[complaintID]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

type attachmentRepository struct{ s *Store }

func (r *attachmentRepository) GetByComplaintID(ctx context.Context, complaintID uuid.UUID) ([]*domain.Attachment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	atts := r.s.attachments[complaintID]
	out := make([]*domain.Attachment, len(atts))
	for i, a := range atts {
		cp := *a
		out[i] = &cp
	}
	return out, nil
}

type returnRepository struct{ s *Store }

func (r *returnRepository) Create(ctx context.Context, ret *domain.Return) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	if ret.ID == uuid.Nil {
		ret.ID = uuid.New()
	}
	if ret.CreatedAt.IsZero() {
		ret.CreatedAt = now
	}
	ret.UpdatedAt = ret.CreatedAt
	if ret.Status == "" {
		ret.Status = domain.ReturnStatusPending
	}

	items := make([]*domain.ReturnItem, 0, len(ret.Items))
	for i, item := range ret.Items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.ReturnID = ret.ID
		item.Position = i
		cp := *item
		items = append(items, &cp)
	}
	r.s.returnItems[ret.ID] = items

	root := *ret
	root.Items = nil
	r.s.returns[ret.ID] = &returnRow{seq: r.s.nextSeq(), Return: root}
	return nil
}

func (r *returnRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Return, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.returns[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "return", ID: id.String()}
	}
	ret := row.Return
	return &ret, nil
}

func (r *returnRepository) List(ctx context.Context, filter domain.Filter) ([]*domain.Return, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rows := make([]*returnRow, 0, len(r.s.returns))
	for _, row := range r.s.returns {
		if filter.Status != "" && string(row.Status) != filter.Status {
			continue
		}
		if !matches(filter.SearchTerm, row.CustomerName, row.CustomerNumber, row.Email) {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, newestFirst(func(i int) time.Time { return rows[i].CreatedAt },
		func(i int) int64 { return rows[i].seq }))

	out := make([]*domain.Return, len(rows))
	for i, row := range rows {
		ret := row.Return
		out[i] = &ret
	}
	return out, nil
}

func (r *returnRepository) UpdateStatus(ctx context.Context, id uuid.UUID, patch repository.StatusPatch) (*domain.Return, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.returns[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "return", ID: id.String()}
	}
	if patch.Status != "" {
		row.Status = domain.ReturnStatus(patch.Status)
	}
	applyPatch(&row.ProcessorName, &row.Notes, patch)
	row.UpdatedAt = laterOf(r.s.now(), row.CreatedAt)
	ret := row.Return
	return &ret, nil
}

func (r *returnRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.returns[id]; !ok {
		return &errors.ErrNotFound{Resource: "return", ID: id.String()}
	}
	delete(r.s.returns, id)
	delete(r.s.returnItems, id)
	r.s.dropTrail(domain.RecordKindReturn, id)
	return nil
}

type returnItemRepository struct{ s *Store }

func (r *returnItemRepository) GetByReturnID(ctx context.Context, returnID uuid.UUID) ([]*domain.ReturnItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := r.s.returnItems[returnID]
	out := make([]*domain.ReturnItem, len(items))
	for i, item := range items {
		cp := *item
		out[i] = &cp
	}
	return out, nil
}

type inquiryRepository struct{ s *Store }

func (r *inquiryRepository) Create(ctx context.Context, inq *domain.Inquiry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if inq.ID == uuid.Nil {
		inq.ID = uuid.New()
	}
	if inq.Timestamp.IsZero() {
		inq.Timestamp = r.s.now()
	}
	inq.UpdatedAt = inq.Timestamp
	if inq.Status == "" {
		inq.Status = domain.InquiryStatusNew
	}
	row := &inquiryRow{seq: r.s.nextSeq(), Inquiry: *inq}
	row.Data = copyData(inq.Data)
	r.s.inquiries[inq.ID] = row
	return nil
}

func (r *inquiryRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Inquiry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.inquiries[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "inquiry", ID: id.String()}
	}
	return row.snapshot(), nil
}

func (r *inquiryRepository) List(ctx context.Context, filter domain.Filter) ([]*domain.Inquiry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rows := make([]*inquiryRow, 0, len(r.s.inquiries))
	for _, row := range r.s.inquiries {
		if filter.Type != "" && row.Type != filter.Type {
			continue
		}
		if filter.Status != "" && string(row.Status) != filter.Status {
			continue
		}
		if !matches(filter.SearchTerm, dataStrings(row.Data)...) {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, newestFirst(func(i int) time.Time { return rows[i].Timestamp },
		func(i int) int64 { return rows[i].seq }))

	out := make([]*domain.Inquiry, len(rows))
	for i, row := range rows {
		out[i] = row.snapshot()
	}
	return out, nil
}

func (r *inquiryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, patch repository.StatusPatch) (*domain.Inquiry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.inquiries[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "inquiry", ID: id.String()}
	}
	if patch.Status != "" {
		row.Status = domain.InquiryStatus(patch.Status)
	}
	applyPatch(&row.ProcessorName, &row.Notes, patch)
	row.UpdatedAt = laterOf(r.s.now(), row.Timestamp)
	return row.snapshot(), nil
}

func (r *inquiryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.inquiries[id]; !ok {
		return &errors.ErrNotFound{Resource: "inquiry", ID: id.String()}
	}
	delete(r.s.inquiries, id)
	r.s.dropTrail(domain.RecordKindInquiry, id)
	return nil
}

func (row *inquiryRow) snapshot() *domain.Inquiry {
	inq := row.Inquiry
	inq.Data = copyData(row.Data)
	return &inq
}

func copyData(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// dataStrings collects the top-level string values of an inquiry payload
func dataStrings(data map[string]interface{}) []string {
	out := make([]string, 0, len(data))
	for _, v := range data {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

type popupConfigRepository struct{ s *Store }

func (r *popupConfigRepository) Get(ctx context.Context) (*domain.PopupConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.popup == nil {
		return nil, &errors.ErrNotFound{Resource: "popup config", ID: "default"}
	}
	cfg := *r.s.popup
	return &cfg, nil
}

func (r *popupConfigRepository) Save(ctx context.Context, cfg *domain.PopupConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cfg.UpdatedAt = r.s.now()
	cp := *cfg
	r.s.popup = &cp
	return nil
}

type statusEventRepository struct{ s *Store }

func (r *statusEventRepository) Create(ctx context.Context, e *domain.StatusEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.s.now()
	}
	cp := *e
	r.s.events = append(r.s.events, &cp)
	return nil
}

func (r *statusEventRepository) ListByRecord(ctx context.Context, kind domain.RecordKind, recordID uuid.UUID) ([]*domain.StatusEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*domain.StatusEvent{}
	for _, e := range r.s.events {
		if e.RecordKind == kind && e.RecordID == recordID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// dropTrail removes the audit events and idempotency keys of a deleted
// record. Caller holds the lock.
func (s *Store) dropTrail(kind domain.RecordKind, id uuid.UUID) {
	kept := s.events[:0]
	for _, e := range s.events {
		if e.RecordKind != kind || e.RecordID != id {
			kept = append(kept, e)
		}
	}
	s.events = kept

	for key, k := range s.idempotency {
		if k.RecordKind == kind && k.RecordID == id {
			delete(s.idempotency, key)
		}
	}
}

type idempotencyRepository struct{ s *Store }

func (r *idempotencyRepository) GetByKey(ctx context.Context, key string) (*domain.IdempotencyKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	k, ok := r.s.idempotency[key]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "idempotency key", ID: key}
	}
	cp := *k
	return &cp, nil
}

func (r *idempotencyRepository) Create(ctx context.Context, key *domain.IdempotencyKey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.idempotency[key.Key]; ok {
		return &errors.ErrConflict{Message: "idempotency key already used"}
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = r.s.now()
	}
	cp := *key
	r.s.idempotency[key.Key] = &cp
	return nil
}

type operatorRepository struct{ s *Store }

func (r *operatorRepository) Create(ctx context.Context, op *domain.Operator) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.operators {
		if strings.EqualFold(existing.Email, op.Email) {
			return &errors.ErrConflict{Message: "operator email already registered"}
		}
	}
	now := r.s.now()
	if op.ID == uuid.Nil {
		op.ID = uuid.New()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = now
	}
	if op.UpdatedAt.IsZero() {
		op.UpdatedAt = now
	}
	cp := *op
	r.s.operators[op.ID] = &cp
	return nil
}

func (r *operatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	op, ok := r.s.operators[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "operator", ID: id.String()}
	}
	cp := *op
	return &cp, nil
}

func (r *operatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, op := range r.s.operators {
		if strings.EqualFold(op.Email, email) {
			cp := *op
			return &cp, nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "operator", ID: email}
}

func (r *operatorRepository) Update(ctx context.Context, op *domain.Operator) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.operators[op.ID]; !ok {
		return &errors.ErrNotFound{Resource: "operator", ID: op.ID.String()}
	}
	op.UpdatedAt = r.s.now()
	cp := *op
	r.s.operators[op.ID] = &cp
	return nil
}

func laterOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return b
	}
	return a
}
