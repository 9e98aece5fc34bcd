package portalclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/admin"
	"github.com/teilehaus/serviceportal/internal/api"
	"github.com/teilehaus/serviceportal/internal/auth"
	"github.com/teilehaus/serviceportal/internal/broadcast"
	"github.com/teilehaus/serviceportal/internal/config"
	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/events"
	"github.com/teilehaus/serviceportal/internal/repository/memory"
	"github.com/teilehaus/serviceportal/internal/service"
	"github.com/teilehaus/serviceportal/internal/storage"
	"github.com/teilehaus/serviceportal/internal/wizard"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

// startPortal runs the full API over an in-memory store
func startPortal(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	objects, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	deps := api.Dependencies{
		Repos:     memory.NewRepositories(),
		Objects:   objects,
		Channel:   broadcast.NewChannel(broadcast.NewStorage(), broadcast.NewHub(logger), nil, logger),
		Publisher: events.NopPublisher{},
		Issuer:    auth.NewIssuer("0123456789abcdef0123456789abcdef", time.Hour),
	}
	if _, err := service.NewAuthService(deps.Repos, deps.Issuer, logger).
		CreateOperator(context.Background(), "Sabine Krause", "sabine@teilehaus.de", "geheim-passwort"); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Environment: "test",
		RateLimit:   config.RateLimitConfig{RPS: 100, Burst: 100},
		CORS:        config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
	srv := httptest.NewServer(api.NewRouter(cfg, deps, logger))
	t.Cleanup(srv.Close)
	return srv
}

func fillWizard(t *testing.T, w *wizard.Wizard) {
	t.Helper()
	w.Edit(func(d *domain.ComplaintDraft) {
		d.CustomerNumber = "KD-10001"
		d.CustomerName = "Autohaus Meier"
		d.Email = "werkstatt@meier.de"
		d.ReceiptNumber = "RE-2023-001234"
	})
	if !w.Next() {
		t.Fatalf("customer step: %v", w.Errors())
	}
	w.UpdateItem(0, func(item *domain.ItemInput) {
		item.Manufacturer = "Bosch"
		item.ArticleIndex = "0986452044"
		item.ArticleName = "Ölfilter"
		item.PurchaseDate = "2024-01-10"
		item.Quantity = 1
	})
	for w.Step() != wizard.StepSummary {
		w.Edit(func(d *domain.ComplaintDraft) {
			d.Description = "Filter undicht nach 2000 km"
			d.ErrorDate = "2024-02-01"
			d.DeliveryForm = domain.DeliveryFormShipping
			d.PreferredProcessing = domain.PreferredProcessingExchange
			d.VehicleData.Manufacturer = "VW"
			d.VehicleData.Model = "Golf"
			d.VehicleData.Year = "2018"
			d.VehicleData.VIN = "WVWZZZ1KZJW000001"
		})
		if !w.Next() {
			t.Fatalf("step %v: %v", w.Step(), w.Errors())
		}
	}
}

func TestWizardSubmitsThroughClient(t *testing.T) {
	srv := startPortal(t)
	client := NewClient(srv.URL, zap.NewNop())
	ctx := context.Background()

	w := wizard.New()
	fillWizard(t, w)

	id, err := w.Submit(ctx, client)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// a retry under the wizard's key replays the first result
	draft := w.Draft()
	again, err := client.SubmitComplaint(wizard.WithSubmissionKey(ctx, w.SubmissionKey()), &draft)
	if err != nil || again != id {
		t.Fatalf("replay returned %s, %v; want %s", again, err, id)
	}

	if _, err := client.Login(ctx, "sabine@teilehaus.de", "geheim-passwort"); err != nil {
		t.Fatalf("login: %v", err)
	}
	detail, err := client.Complaints().Detail(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if detail.Complaint.ReceiptNumber != "RE-2023-001234" || len(detail.Items) != 1 {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if detail.VehicleData == nil || detail.VehicleData.VIN != "WVWZZZ1KZJW000001" {
		t.Fatalf("unexpected detail %+v", detail)
	}
}

func TestSameContentAfterDeleteIsANewComplaint(t *testing.T) {
	srv := startPortal(t)
	client := NewClient(srv.URL, zap.NewNop())
	ctx := context.Background()
	if _, err := client.Login(ctx, "sabine@teilehaus.de", "geheim-passwort"); err != nil {
		t.Fatal(err)
	}

	first := wizard.New()
	fillWizard(t, first)
	id, err := first.Submit(ctx, client)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Complaints().Delete(ctx, id); err != nil {
		t.Fatal(err)
	}

	// the customer files the identical complaint again
	second := wizard.New()
	fillWizard(t, second)
	again, err := second.Submit(ctx, client)
	if err != nil {
		t.Fatal(err)
	}
	if again == id {
		t.Fatal("deleted complaint id handed out again")
	}
	if _, err := client.Complaints().Detail(ctx, again); err != nil {
		t.Fatalf("new complaint not readable: %v", err)
	}

	// without a key every submission is a new record
	d := second.Draft()
	third, err := client.SubmitComplaint(ctx, &d)
	if err != nil || third == again {
		t.Fatalf("keyless submit returned %s, %v", third, err)
	}
}

func TestClientErrorMapping(t *testing.T) {
	srv := startPortal(t)
	client := NewClient(srv.URL, zap.NewNop())
	ctx := context.Background()

	_, err := client.Complaints().List(ctx, domain.Filter{})
	if _, ok := err.(*errors.ErrUnauthorized); !ok {
		t.Fatalf("expected *ErrUnauthorized, got %T %v", err, err)
	}

	if _, err := client.Login(ctx, "sabine@teilehaus.de", "falsch"); err == nil {
		t.Fatal("login with wrong password succeeded")
	}
	if _, err := client.Login(ctx, "sabine@teilehaus.de", "geheim-passwort"); err != nil {
		t.Fatal(err)
	}

	_, err = client.Complaints().Detail(ctx, uuid.New())
	if _, ok := err.(*errors.ErrNotFound); !ok {
		t.Fatalf("expected *ErrNotFound, got %T %v", err, err)
	}

	_, err = client.SubmitComplaint(ctx, &domain.ComplaintDraft{})
	verr, ok := err.(*errors.ErrValidation)
	if !ok || len(verr.Fields) == 0 {
		t.Fatalf("expected *ErrValidation with fields, got %T %v", err, err)
	}

	id, err := client.SubmitReturn(ctx, &domain.ReturnInput{
		CustomerNumber: "KD-20002",
		CustomerName:   "Kfz Schulz",
		Email:          "info@kfz-schulz.de",
		Items: []domain.ReturnItemInput{{
			ArticleNumber: "0986452044", Quantity: 1,
			Condition: domain.ItemConditionDamaged, ReturnReason: domain.ReturnReasonDamaged,
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.Returns().Transition(ctx, id, service.StatusChange{Status: "completed"})
	terr, ok := err.(*errors.ErrInvalidStateTransition)
	if !ok || terr.From != "pending" || terr.To != "completed" {
		t.Fatalf("expected *ErrInvalidStateTransition pending->completed, got %T %v", err, err)
	}

	srv.Close()
	_, err = client.Returns().List(ctx, domain.Filter{})
	if _, ok := err.(*errors.ErrTransport); !ok {
		t.Fatalf("expected *ErrTransport, got %T %v", err, err)
	}
}

func TestServerErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"upstream down"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, zap.NewNop()).PopupConfig(context.Background())
	terr, ok := err.(*errors.ErrTransport)
	if !ok || terr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected *ErrTransport 502, got %T %v", err, err)
	}
}

func TestUploadAttachment(t *testing.T) {
	srv := startPortal(t)
	client := NewClient(srv.URL, zap.NewNop())

	att, err := client.UploadAttachment(context.Background(), "Rechnung 42.pdf", strings.NewReader("%PDF-1.4"), false)
	if err != nil {
		t.Fatal(err)
	}
	if att.FileName != "Rechnung 42.pdf" || att.IsDiagnostic || !strings.HasSuffix(att.FilePath, "-Rechnung_42.pdf") {
		t.Fatalf("unexpected attachment %+v", att)
	}
}

func TestConsoleOverClient(t *testing.T) {
	srv := startPortal(t)
	client := NewClient(srv.URL, zap.NewNop())
	ctx := context.Background()

	fill := wizard.New()
	fillWizard(t, fill)
	id, err := fill.Submit(ctx, client)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Login(ctx, "sabine@teilehaus.de", "geheim-passwort"); err != nil {
		t.Fatal(err)
	}

	console := admin.NewConsole[*domain.Complaint, *service.ComplaintDetail](client.Complaints(),
		func(c *domain.Complaint) uuid.UUID { return c.ID })
	if err := console.Refresh(ctx, domain.Filter{SearchTerm: "meier"}); err != nil {
		t.Fatal(err)
	}
	if len(console.Records()) != 1 {
		t.Fatalf("expected 1 record, got %d", len(console.Records()))
	}
	if err := console.Open(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := console.SetStatus(ctx, id, service.StatusChange{Status: "in-progress"}); err != nil {
		t.Fatal(err)
	}
	detail, _ := console.Detail()
	if detail.Complaint.Status != domain.ComplaintStatusInProgress || detail.Complaint.ProcessorName == nil {
		t.Fatalf("unexpected detail %+v", detail.Complaint)
	}
	if err := console.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, open := console.Detail(); open {
		t.Fatal("detail still open after delete")
	}
}
