package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/auth"
	"github.com/teilehaus/serviceportal/internal/broadcast"
	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/events"
	"github.com/teilehaus/serviceportal/internal/repository/memory"
	"github.com/teilehaus/serviceportal/internal/storage"
	"github.com/teilehaus/serviceportal/internal/wizard"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func draft() *domain.ComplaintDraft {
	return &domain.ComplaintDraft{
		CustomerReference: domain.CustomerReference{
			CustomerNumber: "KD-10001",
			CustomerName:   "Autohaus Meier",
			Email:          "werkstatt@meier.de",
		},
		ReceiptNumber: "RE-2023-001234",
		Items: []domain.ItemInput{{
			Manufacturer: "Bosch",
			ArticleIndex: "0986452044",
			ArticleName:  "Ölfilter",
			PurchaseDate: "2024-01-10",
			Quantity:     1,
		}},
		Description:         "Filter undicht nach 2000 km",
		ErrorDate:           "2024-02-01",
		DeliveryForm:        domain.DeliveryFormShipping,
		PreferredProcessing: domain.PreferredProcessingExchange,
	}
}

func strPtr(s string) *string { return &s }

func TestSubmitComplaintEndToEnd(t *testing.T) {
	repos := memory.NewRepositories()
	pub := &recordingPublisher{}
	svc := NewComplaintService(repos, nil, pub, zap.NewNop())
	ctx := context.Background()

	id, err := svc.SubmitComplaint(ctx, draft())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	detail, err := svc.GetComplaintDetail(ctx, id)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.Complaint.Status != domain.ComplaintStatusPending {
		t.Fatalf("expected pending, got %s", detail.Complaint.Status)
	}
	if detail.Complaint.ReceiptNumber != "RE-2023-001234" {
		t.Fatalf("unexpected receipt %q", detail.Complaint.ReceiptNumber)
	}
	if len(detail.Items) != 1 || detail.Items[0].ArticleName != "Ölfilter" || detail.Items[0].ComplaintID != id {
		t.Fatalf("unexpected items %+v", detail.Items)
	}
	if detail.VehicleData != nil {
		t.Fatalf("expected no vehicle data, got %+v", detail.VehicleData)
	}
	if len(detail.Unavailable) != 0 {
		t.Fatalf("unexpected unavailable parts %v", detail.Unavailable)
	}

	// vehicleData is present as null in the wire form
	raw, _ := json.Marshal(detail)
	if !strings.Contains(string(raw), `"vehicleData":null`) {
		t.Fatalf("vehicleData missing from payload: %s", raw)
	}

	list, err := svc.ListComplaints(ctx, domain.Filter{SearchTerm: "001234"})
	if err != nil || len(list) != 1 || list[0].ID != id {
		t.Fatalf("search by receipt number failed: %v %+v", err, list)
	}

	if got := pub.types(); len(got) != 1 || got[0] != events.TypeCreated {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestWizardSubmitsInProcess(t *testing.T) {
	repos := memory.NewRepositories()
	svc := NewComplaintService(repos, nil, events.NopPublisher{}, zap.NewNop())
	ctx := context.Background()

	w := wizard.New()
	w.Edit(func(d *domain.ComplaintDraft) {
		vehicle := d.VehicleData
		*d = *draft()
		vehicle.Manufacturer = "Opel"
		vehicle.Model = "Astra"
		vehicle.Year = "2016"
		vehicle.VIN = "W0L0AHL4858000001"
		d.VehicleData = vehicle
	})
	for w.Step() != wizard.StepSummary {
		if !w.Next() {
			t.Fatalf("stuck at step %s: %v", w.Step(), w.Errors())
		}
	}

	id, err := w.Submit(ctx, svc)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if confirmed, ok := w.Confirmed(); !ok || confirmed != id {
		t.Fatalf("wizard not confirmed with %s", id)
	}

	detail, err := svc.GetComplaintDetail(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if detail.VehicleData == nil || detail.VehicleData.VIN != "W0L0AHL4858000001" {
		t.Fatalf("vehicle data not stored: %+v", detail.VehicleData)
	}
	if detail.VehicleData.VehicleType != domain.VehicleTypeCar {
		t.Fatalf("expected default vehicle type, got %q", detail.VehicleData.VehicleType)
	}
}

func TestSubmitComplaintRejectsInvalidDraft(t *testing.T) {
	repos := memory.NewRepositories()
	svc := NewComplaintService(repos, nil, events.NopPublisher{}, zap.NewNop())

	d := draft()
	d.Email = "not-an-email"
	d.Items = nil

	_, err := svc.SubmitComplaint(context.Background(), d)
	verr, ok := err.(*errors.ErrValidation)
	if !ok {
		t.Fatalf("expected *ErrValidation, got %T %v", err, err)
	}
	if len(verr.Fields) < 2 {
		t.Fatalf("expected every failing field, got %v", verr.Fields)
	}

	list, _ := svc.ListComplaints(context.Background(), domain.Filter{})
	if len(list) != 0 {
		t.Fatal("invalid draft was stored")
	}
}

type failingVehicles struct{}

func (failingVehicles) GetByComplaintID(context.Context, uuid.UUID) (*domain.VehicleData, error) {
	return nil, fmt.Errorf("connection reset")
}

func TestDetailReportsUnavailableParts(t *testing.T) {
	repos := memory.NewRepositories()
	svc := NewComplaintService(repos, nil, events.NopPublisher{}, zap.NewNop())
	ctx := context.Background()

	d := draft()
	d.VehicleData = &domain.VehicleInput{VehicleType: domain.VehicleTypeCar, Manufacturer: "VW", Model: "Golf", Year: "2018", VIN: "WVWZZZ1KZJW000001"}
	id, err := svc.SubmitComplaint(ctx, d)
	if err != nil {
		t.Fatal(err)
	}

	repos.VehicleData = failingVehicles{}

	detail, err := svc.GetComplaintDetail(ctx, id)
	if err != nil {
		t.Fatalf("partial failure escaped: %v", err)
	}
	if len(detail.Unavailable) != 1 || detail.Unavailable[0] != PartVehicleData {
		t.Fatalf("unexpected unavailable %v", detail.Unavailable)
	}
	if len(detail.Items) != 1 {
		t.Fatal("healthy parts not returned")
	}

	if _, err := svc.GetComplaintDetail(ctx, uuid.New()); err == nil {
		t.Fatal("expected not found")
	} else if _, ok := err.(*errors.ErrNotFound); !ok {
		t.Fatalf("expected *ErrNotFound, got %T", err)
	}
}

func TestSetStatusIsPermissive(t *testing.T) {
	repos := memory.NewRepositories()
	pub := &recordingPublisher{}
	svc := NewComplaintService(repos, nil, pub, zap.NewNop())
	ctx := context.Background()

	id, _ := svc.SubmitComplaint(ctx, draft())

	updated, err := svc.SetStatus(ctx, id, StatusChange{Status: "completed", ProcessorName: strPtr("Sabine"), Notes: strPtr("Gutschrift erteilt")})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != domain.ComplaintStatusCompleted || *updated.ProcessorName != "Sabine" {
		t.Fatalf("unexpected complaint %+v", updated)
	}

	// a terminal status can still be left by an operator
	back, err := svc.SetStatus(ctx, id, StatusChange{Status: "pending"})
	if err != nil {
		t.Fatalf("override from terminal status refused: %v", err)
	}
	if back.Status != domain.ComplaintStatusPending {
		t.Fatalf("expected pending, got %s", back.Status)
	}
	if back.Notes == nil || *back.Notes != "Gutschrift erteilt" {
		t.Fatal("notes dropped by a patch without notes")
	}

	trail, err := svc.Events(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(trail) != 3 {
		t.Fatalf("expected 3 audit events, got %d", len(trail))
	}
	if !trail[1].Forced || trail[1].From != "pending" || trail[1].To != "completed" {
		t.Fatalf("override not recorded as forced: %+v", trail[1])
	}
	if !trail[2].Forced {
		t.Fatal("leaving a terminal status not recorded as forced")
	}

	if _, err := svc.SetStatus(ctx, id, StatusChange{Status: "archived"}); err == nil {
		t.Fatal("unknown complaint status accepted")
	} else if _, ok := err.(*errors.ErrValidation); !ok {
		t.Fatalf("expected *ErrValidation, got %T", err)
	}

	if _, err := svc.SetStatus(ctx, uuid.New(), StatusChange{Status: "completed"}); err == nil {
		t.Fatal("expected not found")
	} else if _, ok := err.(*errors.ErrNotFound); !ok {
		t.Fatalf("expected *ErrNotFound, got %T", err)
	}
}

func TestTransitionIsStrict(t *testing.T) {
	repos := memory.NewRepositories()
	svc := NewComplaintService(repos, nil, events.NopPublisher{}, zap.NewNop())
	ctx := context.Background()
	id, _ := svc.SubmitComplaint(ctx, draft())

	tests := []struct {
		to      string
		wantErr bool
	}{
		{"completed", true},
		{"in-progress", false},
		{"in-progress", true},
		{"completed", false},
		{"rejected", true},
	}
	for _, tt := range tests {
		_, err := svc.Transition(ctx, id, StatusChange{Status: tt.to})
		if tt.wantErr {
			if _, ok := err.(*errors.ErrInvalidStateTransition); !ok {
				t.Fatalf("transition to %s: expected *ErrInvalidStateTransition, got %v", tt.to, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("transition to %s: %v", tt.to, err)
		}
	}

	current, _ := repos.Complaint.GetByID(ctx, id)
	if current.Status != domain.ComplaintStatusCompleted {
		t.Fatalf("expected completed, got %s", current.Status)
	}
}

func TestDeleteCascadesAndRemovesFiles(t *testing.T) {
	repos := memory.NewRepositories()
	objects, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	pub := &recordingPublisher{}
	svc := NewComplaintService(repos, objects, pub, zap.NewNop())
	ctx := context.Background()

	key := "attachments/2024/02/photo.jpg"
	if err := objects.Put(ctx, key, strings.NewReader("jpeg"), 4, "image/jpeg"); err != nil {
		t.Fatal(err)
	}

	d := draft()
	d.Attachments = []domain.AttachmentInput{{FileName: "photo.jpg", FilePath: key, FileType: "image/jpeg"}}
	id, err := svc.SubmitComplaint(ctx, d)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.GetComplaintDetail(ctx, id); err == nil {
		t.Fatal("complaint still readable")
	}
	if items, _ := repos.ComplaintItem.GetByComplaintID(ctx, id); len(items) != 0 {
		t.Fatal("items survived delete")
	}
	if atts, _ := repos.Attachment.GetByComplaintID(ctx, id); len(atts) != 0 {
		t.Fatal("attachments survived delete")
	}
	if trail, _ := repos.StatusEvent.ListByRecord(ctx, domain.RecordKindComplaint, id); len(trail) != 0 {
		t.Fatal("audit trail survived delete")
	}
	if _, err := objects.Get(ctx, key); err == nil {
		t.Fatal("attachment file not removed")
	}
	if got := pub.types(); got[len(got)-1] != events.TypeDeleted {
		t.Fatalf("unexpected events %v", got)
	}

	if err := svc.Delete(ctx, id); err == nil {
		t.Fatal("second delete succeeded")
	} else if _, ok := err.(*errors.ErrNotFound); !ok {
		t.Fatalf("expected *ErrNotFound, got %T", err)
	}
}

func TestReturnLifecycle(t *testing.T) {
	repos := memory.NewRepositories()
	svc := NewReturnService(repos, events.NopPublisher{}, zap.NewNop())
	ctx := context.Background()

	input := &domain.ReturnInput{
		CustomerNumber: "KD-20002",
		CustomerName:   "Kfz Schulz",
		Email:          "info@kfz-schulz.de",
		Items: []domain.ReturnItemInput{
			{ArticleNumber: "0986452044", Quantity: 2, Condition: domain.ItemConditionOriginalPackaging, ReturnReason: domain.ReturnReasonWrongOrder, OtherReason: strPtr("stale")},
			{ArticleNumber: "1457429192", Quantity: 1, Condition: domain.ItemConditionDamaged, ReturnReason: domain.ReturnReasonOther, OtherReason: strPtr("Doppelt bestellt")},
		},
	}
	id, err := svc.SubmitReturn(ctx, input)
	if err != nil {
		t.Fatal(err)
	}

	detail, err := svc.GetReturnDetail(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if detail.Return.Status != domain.ReturnStatusPending || len(detail.Items) != 2 {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if detail.Items[0].OtherReason != nil {
		t.Fatal("free-text reason kept for a fixed reason")
	}
	if detail.Items[1].OtherReason == nil || *detail.Items[1].OtherReason != "Doppelt bestellt" {
		t.Fatal("free-text reason lost")
	}

	if _, err := svc.Transition(ctx, id, StatusChange{Status: "processing"}); err == nil {
		t.Fatal("pending -> processing allowed")
	}
	for _, status := range []string{"approved", "processing", "completed"} {
		if _, err := svc.Transition(ctx, id, StatusChange{Status: status}); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	list, _ := svc.ListReturns(ctx, domain.Filter{Status: "completed", SearchTerm: "schulz"})
	if len(list) != 1 {
		t.Fatalf("expected 1 return, got %d", len(list))
	}

	if err := svc.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Events(ctx, id); err == nil {
		t.Fatal("events of deleted return readable")
	}
}

func TestInquiryMutationsAreBroadcast(t *testing.T) {
	repos := memory.NewRepositories()
	logger := zap.NewNop()
	channel := broadcast.NewChannel(broadcast.NewStorage(), broadcast.NewHub(logger), nil, logger)
	svc := NewInquiryService(repos, channel, events.NopPublisher{}, logger)

	var otherTab, ownTab []broadcast.Message
	channel.Subscribe(broadcast.KeyContactInquiries, "tab-b", func(m broadcast.Message) { otherTab = append(otherTab, m) })
	channel.Subscribe(broadcast.KeyContactInquiries, "tab-a", func(m broadcast.Message) { ownTab = append(ownTab, m) })

	ctx := WithOrigin(context.Background(), "tab-a")
	inq, err := svc.SubmitInquiry(ctx, InquirySubmission{
		Type: domain.InquiryTypeContact,
		Data: map[string]interface{}{"name": "Jana", "email": "jana@example.com", "message": "Rückruf bitte"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if inq.Status != domain.InquiryStatusNew {
		t.Fatalf("expected new, got %s", inq.Status)
	}

	if _, err := svc.SetStatus(ctx, inq.ID, StatusChange{Status: "in-progress"}); err != nil {
		t.Fatal(err)
	}

	if len(ownTab) != 0 {
		t.Fatal("originating tab notified")
	}
	if len(otherTab) != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", len(otherTab))
	}

	var cached []domain.Inquiry
	raw, _ := channel.Get(broadcast.KeyContactInquiries)
	if err := json.Unmarshal(raw, &cached); err != nil {
		t.Fatal(err)
	}
	if len(cached) != 1 || cached[0].Status != domain.InquiryStatusInProgress {
		t.Fatalf("stale cache %+v", cached)
	}

	if err := svc.Delete(ctx, inq.ID); err != nil {
		t.Fatal(err)
	}
	raw, _ = channel.Get(broadcast.KeyContactInquiries)
	if string(raw) != "[]" {
		t.Fatalf("expected empty list after delete, got %s", raw)
	}
}

func TestSubmitInquiryRejectsUnknownType(t *testing.T) {
	svc := NewInquiryService(memory.NewRepositories(), nil, events.NopPublisher{}, zap.NewNop())
	_, err := svc.SubmitInquiry(context.Background(), InquirySubmission{Type: "fax", Data: map[string]interface{}{}})
	if _, ok := err.(*errors.ErrValidation); !ok {
		t.Fatalf("expected *ErrValidation, got %T", err)
	}
}

func TestPopupConfig(t *testing.T) {
	repos := memory.NewRepositories()
	logger := zap.NewNop()
	channel := broadcast.NewChannel(broadcast.NewStorage(), broadcast.NewHub(logger), nil, logger)
	svc := NewPopupService(repos, channel, logger)
	ctx := context.Background()

	cfg, err := svc.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Active {
		t.Fatal("default config is active")
	}

	if _, err := svc.Save(ctx, &domain.PopupConfig{RedirectEnabled: true}); err == nil {
		t.Fatal("redirect without url accepted")
	}

	saved, err := svc.Save(ctx, &domain.PopupConfig{Active: true, Title: "Sommeraktion", MaxViews: 2})
	if err != nil {
		t.Fatal(err)
	}
	if saved.UpdatedAt.IsZero() {
		t.Fatal("updatedAt not stamped")
	}

	got, _ := svc.Get(ctx)
	if !got.Active || got.Title != "Sommeraktion" {
		t.Fatalf("unexpected config %+v", got)
	}
	if raw, ok := channel.Get(broadcast.KeyPopupConfig); !ok || !strings.Contains(string(raw), "Sommeraktion") {
		t.Fatalf("config not broadcast: %s", raw)
	}
}

func TestLogin(t *testing.T) {
	repos := memory.NewRepositories()
	issuer := auth.NewIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	svc := NewAuthService(repos, issuer, zap.NewNop())
	ctx := context.Background()

	op, err := svc.CreateOperator(ctx, "Sabine Krause", "sabine@teilehaus.de", "geheim-passwort")
	if err != nil {
		t.Fatal(err)
	}

	res, err := svc.Login(ctx, "Sabine@Teilehaus.de", "geheim-passwort")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Name != "Sabine Krause" {
		t.Fatalf("unexpected name %q", res.Name)
	}
	claims, err := issuer.Parse(res.Token)
	if err != nil || claims.OperatorID != op.ID {
		t.Fatalf("token does not identify operator: %v", err)
	}

	for _, tc := range []struct{ email, password string }{
		{"sabine@teilehaus.de", "falsch-falsch"},
		{"niemand@teilehaus.de", "geheim-passwort"},
	} {
		if _, err := svc.Login(ctx, tc.email, tc.password); err == nil {
			t.Fatalf("login with %s/%s succeeded", tc.email, tc.password)
		} else if _, ok := err.(*errors.ErrUnauthorized); !ok {
			t.Fatalf("expected *ErrUnauthorized, got %T", err)
		}
	}

	op.IsActive = false
	if err := repos.Operator.Update(ctx, op); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(ctx, "sabine@teilehaus.de", "geheim-passwort"); err == nil {
		t.Fatal("inactive operator logged in")
	}

	if _, err := svc.CreateOperator(ctx, "", "x", "kurz"); err == nil {
		t.Fatal("invalid operator accepted")
	}
}
