package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/repository"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

// steppingClock returns a clock that advances one minute per call
func steppingClock() func() time.Time {
	t := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func newComplaint(name, number, receipt, email string) *domain.Complaint {
	return &domain.Complaint{
		CustomerReference: domain.CustomerReference{
			CustomerNumber: number,
			CustomerName:   name,
			Email:          email,
		},
		ReceiptNumber: receipt,
		Description:   "defekt",
		Items: []*domain.ComplaintItem{
			{ItemInput: domain.ItemInput{ArticleName: "Ölfilter", Quantity: 1}},
			{ItemInput: domain.ItemInput{ArticleName: "Luftfilter", Quantity: 2}},
		},
	}
}

func TestComplaintCreateAssignsChildren(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()

	c := newComplaint("Autohaus Meier", "KD-10001", "RE-2023-001234", "a@meier.de")
	c.VehicleData = &domain.VehicleData{VehicleInput: domain.VehicleInput{VehicleType: domain.VehicleTypeCar, VIN: "X"}}
	c.Attachments = []*domain.Attachment{{AttachmentInput: domain.AttachmentInput{FileName: "a.jpg", FilePath: "p/a.jpg"}}}
	if err := repos.Complaint.Create(ctx, c); err != nil {
		t.Fatal(err)
	}
	if c.ID == uuid.Nil || c.Status != domain.ComplaintStatusPending {
		t.Fatalf("create did not assign id/status: %+v", c)
	}

	got, err := repos.Complaint.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Items != nil || got.VehicleData != nil {
		t.Fatal("root read must not carry children")
	}

	items, _ := repos.ComplaintItem.GetByComplaintID(ctx, c.ID)
	if len(items) != 2 || items[0].Position != 0 || items[1].ArticleName != "Luftfilter" {
		t.Fatalf("unexpected items %+v", items)
	}
	vehicle, _ := repos.VehicleData.GetByComplaintID(ctx, c.ID)
	if vehicle == nil || vehicle.ComplaintID != c.ID {
		t.Fatalf("unexpected vehicle %+v", vehicle)
	}
	atts, _ := repos.Attachment.GetByComplaintID(ctx, c.ID)
	if len(atts) != 1 {
		t.Fatalf("expected one attachment, got %d", len(atts))
	}
}

func TestComplaintWithoutVehicle(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()
	c := newComplaint("A", "1", "R", "a@b.de")
	if err := repos.Complaint.Create(ctx, c); err != nil {
		t.Fatal(err)
	}
	vehicle, err := repos.VehicleData.GetByComplaintID(ctx, c.ID)
	if err != nil || vehicle != nil {
		t.Fatalf("expected nil, nil; got %v, %v", vehicle, err)
	}
}

func TestComplaintListFilter(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.SetClock(steppingClock())
	repos := store.Repositories()

	meier := newComplaint("Autohaus Meier", "KD-10001", "RE-2023-001234", "werkstatt@meier.de")
	schulz := newComplaint("Kfz Schulz", "KD-20002", "RE-2023-005555", "info@schulz.de")
	bauer := newComplaint("Bauer Motoren", "KD-30003", "RE-2024-000001", "bauer@example.com")
	for _, c := range []*domain.Complaint{meier, schulz, bauer} {
		if err := repos.Complaint.Create(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := repos.Complaint.UpdateStatus(ctx, schulz.ID, repository.StatusPatch{Status: string(domain.ComplaintStatusCompleted)}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter domain.Filter
		want   []uuid.UUID
	}{
		{"all newest first", domain.Filter{}, []uuid.UUID{bauer.ID, schulz.ID, meier.ID}},
		{"by status", domain.Filter{Status: "pending"}, []uuid.UUID{bauer.ID, meier.ID}},
		{"name case-insensitive", domain.Filter{SearchTerm: "MEIER"}, []uuid.UUID{meier.ID}},
		{"customer number", domain.Filter{SearchTerm: "kd-2"}, []uuid.UUID{schulz.ID}},
		{"receipt number", domain.Filter{SearchTerm: "2023"}, []uuid.UUID{schulz.ID, meier.ID}},
		{"email", domain.Filter{SearchTerm: "example.com"}, []uuid.UUID{bauer.ID}},
		{"status and term", domain.Filter{Status: "pending", SearchTerm: "2023"}, []uuid.UUID{meier.ID}},
		{"blank term", domain.Filter{Status: "completed", SearchTerm: "  "}, []uuid.UUID{schulz.ID}},
		{"no hit", domain.Filter{SearchTerm: "zzz"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repos.Complaint.List(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d results, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Fatalf("result %d: expected %s, got %s (%s)", i, tt.want[i], got[i].ID, got[i].CustomerName)
				}
			}
		})
	}
}

func TestUpdateStatusPatch(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.SetClock(steppingClock())
	repos := store.Repositories()

	c := newComplaint("A", "1", "R", "a@b.de")
	repos.Complaint.Create(ctx, c)

	name := "Frau Weber"
	got, err := repos.Complaint.UpdateStatus(ctx, c.ID, repository.StatusPatch{Status: "in-progress", ProcessorName: &name})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.ComplaintStatusInProgress || *got.ProcessorName != name {
		t.Fatalf("unexpected patch result %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatal("updatedAt not refreshed")
	}

	notes := "Ersatz verschickt"
	got, _ = repos.Complaint.UpdateStatus(ctx, c.ID, repository.StatusPatch{Status: "completed", Notes: &notes})
	if got.ProcessorName == nil || *got.ProcessorName != name || *got.Notes != notes {
		t.Fatalf("nil patch fields must keep stored values: %+v", got)
	}

	_, err = repos.Complaint.UpdateStatus(ctx, uuid.New(), repository.StatusPatch{Status: "completed"})
	if _, ok := err.(*errors.ErrNotFound); !ok {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestComplaintDeleteCascades(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()

	c := newComplaint("A", "1", "R", "a@b.de")
	c.VehicleData = &domain.VehicleData{}
	repos.Complaint.Create(ctx, c)
	repos.StatusEvent.Create(ctx, &domain.StatusEvent{RecordKind: domain.RecordKindComplaint, RecordID: c.ID, To: "pending"})

	if err := repos.Complaint.Delete(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := repos.Complaint.GetByID(ctx, c.ID); err == nil {
		t.Fatal("complaint still readable")
	}
	items, _ := repos.ComplaintItem.GetByComplaintID(ctx, c.ID)
	vehicle, _ := repos.VehicleData.GetByComplaintID(ctx, c.ID)
	events, _ := repos.StatusEvent.ListByRecord(ctx, domain.RecordKindComplaint, c.ID)
	if len(items) != 0 || vehicle != nil || len(events) != 0 {
		t.Fatalf("children survived delete: %d items, vehicle %v, %d events", len(items), vehicle, len(events))
	}

	if err := repos.Complaint.Delete(ctx, c.ID); err == nil {
		t.Fatal("second delete must report not found")
	}
}

func TestReturnLifecycle(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()

	ret := &domain.Return{
		CustomerNumber: "KD-20002",
		CustomerName:   "Kfz Schulz",
		Email:          "info@schulz.de",
		Items: []*domain.ReturnItem{
			{ReturnItemInput: domain.ReturnItemInput{ArticleNumber: "A1", Quantity: 1}},
		},
	}
	if err := repos.Return.Create(ctx, ret); err != nil {
		t.Fatal(err)
	}
	if ret.Status != domain.ReturnStatusPending {
		t.Fatalf("expected pending, got %s", ret.Status)
	}
	list, _ := repos.Return.List(ctx, domain.Filter{SearchTerm: "schulz"})
	if len(list) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(list))
	}
	if err := repos.Return.Delete(ctx, ret.ID); err != nil {
		t.Fatal(err)
	}
	items, _ := repos.ReturnItem.GetByReturnID(ctx, ret.ID)
	if len(items) != 0 {
		t.Fatal("return items survived delete")
	}
}

func TestInquiryListByType(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()

	contact := &domain.Inquiry{Type: domain.InquiryTypeContact, Data: map[string]interface{}{"name": "Jana", "email": "jana@example.com"}}
	b2b := &domain.Inquiry{Type: domain.InquiryTypeB2B, Data: map[string]interface{}{"companyName": "Werkstatt GmbH"}}
	repos.Inquiry.Create(ctx, contact)
	repos.Inquiry.Create(ctx, b2b)

	got, _ := repos.Inquiry.List(ctx, domain.Filter{Type: domain.InquiryTypeB2B})
	if len(got) != 1 || got[0].ID != b2b.ID {
		t.Fatalf("type filter failed: %+v", got)
	}
	got, _ = repos.Inquiry.List(ctx, domain.Filter{SearchTerm: "jana"})
	if len(got) != 1 || got[0].ID != contact.ID {
		t.Fatalf("search over data failed: %+v", got)
	}

	// returned payloads are copies
	got[0].Data["name"] = "changed"
	again, _ := repos.Inquiry.GetByID(ctx, contact.ID)
	if again.Data["name"] != "Jana" {
		t.Fatal("stored data aliased by caller")
	}
}

func TestIdempotencyKeyIsUnique(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()
	key := &domain.IdempotencyKey{Key: "k1", RecordKind: domain.RecordKindComplaint, RecordID: uuid.New(), RequestHash: "h"}
	if err := repos.Idempotency.Create(ctx, key); err != nil {
		t.Fatal(err)
	}
	if err := repos.Idempotency.Create(ctx, key); err == nil {
		t.Fatal("duplicate key accepted")
	}
	got, err := repos.Idempotency.GetByKey(ctx, "k1")
	if err != nil || got.RecordID != key.RecordID {
		t.Fatalf("unexpected lookup %v, %v", got, err)
	}
	if _, err := repos.Idempotency.GetByKey(ctx, "k2"); err == nil {
		t.Fatal("unknown key found")
	}
}

func TestDeleteDropsIdempotencyKeys(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()

	c := newComplaint("A", "1", "R", "a@b.de")
	repos.Complaint.Create(ctx, c)
	other := uuid.New()
	repos.Idempotency.Create(ctx, &domain.IdempotencyKey{Key: "mine", RecordKind: domain.RecordKindComplaint, RecordID: c.ID, RequestHash: "h"})
	repos.Idempotency.Create(ctx, &domain.IdempotencyKey{Key: "same-id-other-kind", RecordKind: domain.RecordKindReturn, RecordID: c.ID, RequestHash: "h"})
	repos.Idempotency.Create(ctx, &domain.IdempotencyKey{Key: "unrelated", RecordKind: domain.RecordKindComplaint, RecordID: other, RequestHash: "h"})

	if err := repos.Complaint.Delete(ctx, c.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := repos.Idempotency.GetByKey(ctx, "mine"); err == nil {
		t.Fatal("key of the deleted complaint still replays")
	}
	for _, key := range []string{"same-id-other-kind", "unrelated"} {
		if _, err := repos.Idempotency.GetByKey(ctx, key); err != nil {
			t.Fatalf("key %s removed: %v", key, err)
		}
	}
	// the key is free for a new submission
	if err := repos.Idempotency.Create(ctx, &domain.IdempotencyKey{Key: "mine", RecordKind: domain.RecordKindComplaint, RecordID: other, RequestHash: "h"}); err != nil {
		t.Fatalf("key not reusable: %v", err)
	}
}

func TestAttachmentsKeepSubmissionOrder(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()

	c := newComplaint("A", "1", "R", "a@b.de")
	for _, name := range []string{"zylinderkopf.jpg", "auslesung.pdf", "montage.jpg"} {
		c.Attachments = append(c.Attachments, &domain.Attachment{AttachmentInput: domain.AttachmentInput{FileName: name, FilePath: "p/" + name}})
	}
	repos.Complaint.Create(ctx, c)

	atts, err := repos.Attachment.GetByComplaintID(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(atts) != 3 || atts[0].FileName != "zylinderkopf.jpg" || atts[1].FileName != "auslesung.pdf" || atts[2].FileName != "montage.jpg" {
		t.Fatalf("attachments reordered: %+v", atts)
	}
}

func TestOperatorEmailLookup(t *testing.T) {
	ctx := context.Background()
	repos := NewRepositories()
	op := &domain.Operator{Name: "Weber", Email: "weber@teilehaus.de", IsActive: true}
	if err := repos.Operator.Create(ctx, op); err != nil {
		t.Fatal(err)
	}
	got, err := repos.Operator.GetByEmail(ctx, "WEBER@teilehaus.de")
	if err != nil || got.ID != op.ID {
		t.Fatalf("lookup failed: %v, %v", got, err)
	}
	if err := repos.Operator.Create(ctx, &domain.Operator{Email: "weber@teilehaus.de"}); err == nil {
		t.Fatal("duplicate email accepted")
	}
}
