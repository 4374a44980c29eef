package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/api"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/dlq"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/event"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/ext"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/store/memory"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/webhook"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// deactivationRecorder captures webhook deactivation hook invocations.
type deactivationRecorder struct {
	mu  sync.Mutex
	ids []id.WebhookID
}

func (r *deactivationRecorder) Name() string { return "deactivation-recorder" }

func (r *deactivationRecorder) OnWebhookDeactivated(_ context.Context, c *webhook.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, c.ID)
	return nil
}

// harness bundles the store, router, and extension recorder used by the tests.
type harness struct {
	store      *memory.Store
	router     chi.Router
	recorder   *deactivationRecorder
	webhookSvc *webhook.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := memory.New()
	logger := slog.New(slog.DiscardHandler)

	recorder := &deactivationRecorder{}
	registry := ext.NewRegistry(logger)
	registry.Register(recorder)

	svc := webhook.NewService(store)
	srv := api.New(svc, store, store, registry, logger)

	r := chi.NewRouter()
	srv.Mount(r)

	return &harness{store: store, router: r, recorder: recorder, webhookSvc: svc}
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) register(t *testing.T, url string, events ...event.Type) *webhook.Config {
	t.Helper()
	c := &webhook.Config{URL: url, Secret: testSecret, Events: events}
	if err := h.webhookSvc.Create(context.Background(), c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return c
}

// ---------- Webhooks ----------

func TestCreateWebhook(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name: "valid config",
			body: fmt.Sprintf(`{"url":"https://example.com/hook","secret":%q,"events":["APPLICATION_RECEIVED"]}`,
				testSecret),
			wantStatus: http.StatusCreated,
		},
		{
			name: "short secret",
			body: `{"url":"https://example.com/hook","secret":"short","events":["APPLICATION_RECEIVED"]}`,

			wantStatus: http.StatusBadRequest,
		},
		{
			name: "http scheme",
			body: fmt.Sprintf(`{"url":"http://example.com/hook","secret":%q,"events":["APPLICATION_RECEIVED"]}`,
				testSecret),
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown event type",
			body: fmt.Sprintf(`{"url":"https://example.com/hook","secret":%q,"events":["nope"]}`,
				testSecret),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid JSON",
			body:       `{"url":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			w := h.do(t, http.MethodPost, "/webhooks", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestCreateWebhookRedactsSecret(t *testing.T) {
	h := newHarness(t)
	body := fmt.Sprintf(`{"url":"https://example.com/hook","secret":%q,"events":["APPLICATION_RECEIVED"]}`, testSecret)

	w := h.do(t, http.MethodPost, "/webhooks", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), testSecret) {
		t.Fatal("response body leaks the signing secret")
	}

	var resp struct {
		ID     id.WebhookID `json:"id"`
		Active bool         `json:"active"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID.IsNil() {
		t.Fatal("response missing webhook id")
	}
	if !resp.Active {
		t.Fatal("new webhook should be active")
	}
}

func TestGetWebhook(t *testing.T) {
	h := newHarness(t)
	c := h.register(t, "https://example.com/hook", event.ApplicationReceived)

	w := h.do(t, http.MethodGet, "/webhooks/"+c.ID.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodGet, "/webhooks/"+id.NewWebhookID().String(), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status = %d, want 404", w.Code)
	}

	w = h.do(t, http.MethodGet, "/webhooks/not-an-id", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed id: status = %d, want 400", w.Code)
	}
}

func TestListWebhooks(t *testing.T) {
	h := newHarness(t)
	h.register(t, "https://a.example.com/hook", event.ApplicationReceived)
	h.register(t, "https://b.example.com/hook", event.DocumentProcessed)

	w := h.do(t, http.MethodGet, "/webhooks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var out []json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}

	w = h.do(t, http.MethodGet, "/webhooks?limit=1&offset=1", "")
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("paginated len = %d, want 1", len(out))
	}
}

func TestDeactivateWebhook(t *testing.T) {
	h := newHarness(t)
	c := h.register(t, "https://example.com/hook", event.ApplicationReceived)

	w := h.do(t, http.MethodPost, "/webhooks/"+c.ID.String()+"/deactivate", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Active bool `json:"active"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Active {
		t.Fatal("webhook still active after deactivation")
	}

	// Config survives with history preserved, it is not hard-deleted.
	got, err := h.store.GetWebhook(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("GetWebhook after deactivate: %v", err)
	}
	if got.Active {
		t.Fatal("store still reports webhook active")
	}

	h.recorder.mu.Lock()
	defer h.recorder.mu.Unlock()
	if len(h.recorder.ids) != 1 || h.recorder.ids[0] != c.ID {
		t.Fatalf("deactivation hook ids = %v, want [%s]", h.recorder.ids, c.ID)
	}
}

func TestDeactivateUnknownWebhook(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/webhooks/"+id.NewWebhookID().String()+"/deactivate", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

// ---------- Deliveries ----------

func TestListDeliveries(t *testing.T) {
	h := newHarness(t)
	c := h.register(t, "https://example.com/hook", event.ApplicationReceived)

	for i := 0; i < 3; i++ {
		a := &delivery.Attempt{
			Entity:    hookrelay.NewEntity(),
			ID:        id.NewDeliveryID(),
			WebhookID: c.ID,
			EventID:   id.NewEventID(),
			EventType: event.ApplicationReceived,
			Body:      []byte(`{}`),
			Status:    delivery.StatusPending,
		}
		if err := h.store.CreateAttempt(context.Background(), a); err != nil {
			t.Fatalf("CreateAttempt: %v", err)
		}
	}

	w := h.do(t, http.MethodGet, "/webhooks/"+c.ID.String()+"/deliveries", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var attempts []*delivery.Attempt
	if err := json.Unmarshal(w.Body.Bytes(), &attempts); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("len = %d, want 3", len(attempts))
	}

	w = h.do(t, http.MethodGet, "/webhooks/"+c.ID.String()+"/deliveries?limit=2", "")
	if err := json.Unmarshal(w.Body.Bytes(), &attempts); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("paginated len = %d, want 2", len(attempts))
	}

	w = h.do(t, http.MethodGet, "/webhooks/"+id.NewWebhookID().String()+"/deliveries", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown webhook: status = %d, want 404", w.Code)
	}
}

// ---------- Dead letter queue ----------

func TestDLQEndpoints(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entries := []*dlq.Entry{
		{ID: id.NewDLQID(), Kind: dlq.KindMalformedMessage, Body: []byte("garbage"), Error: "bad envelope"},
		{ID: id.NewDLQID(), Kind: dlq.KindDeliveryExhausted, Body: []byte(`{}`), Error: "budget exhausted"},
	}
	for _, e := range entries {
		if err := h.store.PushDLQ(ctx, e); err != nil {
			t.Fatalf("PushDLQ: %v", err)
		}
	}

	w := h.do(t, http.MethodGet, "/dlq", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var listed []*dlq.Entry
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("len = %d, want 2", len(listed))
	}

	w = h.do(t, http.MethodGet, "/dlq?kind=malformed_message", "")
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(listed) != 1 || listed[0].Kind != dlq.KindMalformedMessage {
		t.Fatalf("kind filter returned %d entries", len(listed))
	}

	w = h.do(t, http.MethodGet, "/dlq/count", "")
	var count struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &count); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if count.Count != 2 {
		t.Fatalf("count = %d, want 2", count.Count)
	}

	w = h.do(t, http.MethodGet, "/dlq/count?kind=delivery_exhausted", "")
	if err := json.Unmarshal(w.Body.Bytes(), &count); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if count.Count != 1 {
		t.Fatalf("filtered count = %d, want 1", count.Count)
	}
}
