package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packfinderz-orderdesk/api/controllers"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/desk"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/journal"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/orders"
	pkgAuth "github.com/angelmondragon/packfinderz-orderdesk/pkg/auth"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/config"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/logger"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/metrics"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubDesk struct {
	dispatched []string
}

func (s *stubDesk) View(_ context.Context, actor orders.Actor, _ orders.Filters, _ bool) (desk.View, error) {
	return desk.View{Actor: actor.Kind, ReadOnly: actor.Kind != enums.ActorKindSeller, Orders: []desk.ViewOrder{}}, nil
}

func (s *stubDesk) Errors(context.Context, orders.Actor) (map[string]string, error) {
	return map[string]string{}, nil
}

func (s *stubDesk) ClearError(context.Context, orders.Actor, string) error {
	return nil
}

func (s *stubDesk) Activity(context.Context, orders.Actor, string, pagination.Params) (journal.ActivityPage, error) {
	return journal.ActivityPage{Attempts: nil}, nil
}

func (s *stubDesk) AdvanceStatus(_ context.Context, _ orders.Actor, _ orders.Filters, orderID, itemID string, status enums.LineItemStatus, _ string) (desk.Result, error) {
	s.dispatched = append(s.dispatched, "status:"+orderID+"/"+itemID+":"+status.String())
	return desk.Result{Outcome: enums.DispatchOutcomeSucceeded}, nil
}

func (s *stubDesk) CancelItem(_ context.Context, _ orders.Actor, _ orders.Filters, orderID, itemID, _ string) (desk.Result, error) {
	s.dispatched = append(s.dispatched, "cancel:"+orderID+"/"+itemID)
	return desk.Result{Outcome: enums.DispatchOutcomeSucceeded}, nil
}

func (s *stubDesk) ConfirmPaymentCollection(_ context.Context, _ orders.Actor, _ orders.Filters, orderID, itemID string) (desk.Result, error) {
	s.dispatched = append(s.dispatched, "payment:"+orderID+"/"+itemID)
	return desk.Result{Outcome: enums.DispatchOutcomeSucceeded}, nil
}

func (s *stubDesk) AddTracking(_ context.Context, _ orders.Actor, _ orders.Filters, orderID, _ string) (desk.Result, error) {
	s.dispatched = append(s.dispatched, "tracking:"+orderID)
	return desk.Result{Outcome: enums.DispatchOutcomeSucceeded}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "orderdesk-test", ExpirationMinutes: 60},
	}
}

func newTestRouter(t *testing.T, svc *stubDesk) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	metrics.NewDispatchMetrics(reg).ObserveDispatch("cancel_item", "succeeded", time.Millisecond)
	router := NewRouter(RouterParams{
		Config:   cfg,
		Logger:   logger.New(logger.Options{ServiceName: "router-test", Level: logger.ParseLevel("error"), Output: io.Discard}),
		Desk:     svc,
		Checks:   map[string]controllers.Pinger{"redis": stubPinger{}},
		Gatherer: reg,
	})
	return router, cfg
}

func bearer(t *testing.T, cfg *config.Config, kind enums.ActorKind) string {
	t.Helper()
	payload := pkgAuth.AccessTokenPayload{UserID: uuid.New(), Actor: kind}
	if kind == enums.ActorKindSeller {
		storeID := uuid.New()
		payload.StoreID = &storeID
	}
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), payload)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	router, _ := newTestRouter(t, &stubDesk{})

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(resp.Body.String(), "orderdesk_dispatch_total") {
		t.Fatalf("expected dispatch metrics in exposition, got %s", resp.Body.String())
	}
}

func TestOrdersRequireAuth(t *testing.T) {
	router, _ := newTestRouter(t, &stubDesk{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestBuyerCanViewButNotDispatch(t *testing.T) {
	svc := &stubDesk{}
	router, cfg := newTestRouter(t, svc)
	auth := bearer(t, cfg, enums.ActorKindBuyer)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", auth)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected buyer view 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"read_only":true`) {
		t.Fatalf("expected read-only view, got %s", resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/orders/O1/items/I1/cancel", nil)
	req.Header.Set("Authorization", auth)
	req.Header.Set("Idempotency-Key", "k1")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
	if len(svc.dispatched) != 0 {
		t.Fatalf("buyer dispatch reached the desk: %v", svc.dispatched)
	}
}

func TestSellerDispatchRoutes(t *testing.T) {
	svc := &stubDesk{}
	router, cfg := newTestRouter(t, svc)
	auth := bearer(t, cfg, enums.ActorKindSeller)

	tests := []struct {
		path string
		body string
	}{
		{"/api/v1/orders/O1/items/I1/status", `{"status":"processing"}`},
		{"/api/v1/orders/O1/items/I2/cancel", `{"reason":"Out of stock"}`},
		{"/api/v1/orders/O1/items/I3/payment-collection", ""},
		{"/api/v1/orders/O1/tracking", `{"tracking_number":"TRK"}`},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
		req.Header.Set("Authorization", auth)
		req.Header.Set("Idempotency-Key", uuid.NewString())
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d: %s", tt.path, resp.Code, resp.Body.String())
		}
	}

	want := []string{"status:O1/I1:processing", "cancel:O1/I2", "payment:O1/I3", "tracking:O1"}
	if strings.Join(svc.dispatched, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected dispatches %v", svc.dispatched)
	}
}

func TestDispatchRequiresIdempotencyKey(t *testing.T) {
	svc := &stubDesk{}
	router, cfg := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/O1/tracking", strings.NewReader(`{"tracking_number":"TRK"}`))
	req.Header.Set("Authorization", bearer(t, cfg, enums.ActorKindSeller))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(svc.dispatched) != 0 {
		t.Fatalf("dispatch ran without idempotency key")
	}
}
