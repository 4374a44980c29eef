package engine_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/backoff"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/dlq"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/engine"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/event"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/ext"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/retry"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/signature"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/store/memory"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/webhook"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type rig struct {
	store   *memory.Store
	engine  *engine.Engine
	sweeper *retry.Sweeper
}

// newRig builds an engine over a memory store with a zero-delay backoff,
// so scheduled retries are immediately due and can be driven by SweepOnce.
func newRig(t *testing.T, maxRetries int, opts ...engine.Option) *rig {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	s := memory.New()
	policy := retry.NewPolicy(maxRetries, backoff.NewConstant(0))
	eng := engine.New(s, s, dlq.NewService(s, maxRetries), ext.NewRegistry(logger), policy, logger, opts...)
	sw := retry.NewSweeper(s, eng, logger, retry.WithClaimLease(time.Minute))

	return &rig{store: s, engine: eng, sweeper: sw}
}

func (r *rig) register(t *testing.T, url string, active bool, events ...event.Type) *webhook.Config {
	t.Helper()
	c := &webhook.Config{
		Entity: hookrelay.NewEntity(),
		ID:     id.NewWebhookID(),
		URL:    url,
		Secret: testSecret,
		Events: events,
		Active: active,
	}
	if err := r.store.CreateWebhook(context.Background(), c); err != nil {
		t.Fatalf("CreateWebhook: %v", err)
	}
	return c
}

func (r *rig) attempts(t *testing.T, webhookID id.WebhookID) []*delivery.Attempt {
	t.Helper()
	atts, err := r.store.ListAttemptsByWebhook(context.Background(), webhookID, delivery.ListOpts{})
	if err != nil {
		t.Fatalf("ListAttemptsByWebhook: %v", err)
	}
	return atts
}

func newEvent(t event.Type) *event.Event {
	return &event.Event{
		ID:            id.NewEventID(),
		CorrelationID: "corr-123",
		Type:          t,
		Payload:       json.RawMessage(`{"applicationId":"app-1","amount":50000}`),
		ProducedAt:    time.Now().UTC(),
	}
}

// Scenario: a subscribed webhook endpoint returns 200 on the first call.
func TestDeliverSuccessFirstAttempt(t *testing.T) {
	var (
		gotBody      []byte
		gotSignature string
		gotCorrID    string
		gotContent   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotBody, _ = io.ReadAll(req.Body)
		gotSignature = req.Header.Get(signature.Header)
		gotCorrID = req.Header.Get(engine.CorrelationHeader)
		gotContent = req.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := newRig(t, 5)
	c := r.register(t, srv.URL, true, event.ApplicationReceived)

	if err := r.engine.Deliver(context.Background(), newEvent(event.ApplicationReceived)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	atts := r.attempts(t, c.ID)
	if len(atts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(atts))
	}
	a := atts[0]
	if a.Status != delivery.StatusSuccess {
		t.Errorf("Status = %s, want SUCCESS", a.Status)
	}
	if a.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", a.AttemptCount)
	}
	if a.LastStatusCode != 200 {
		t.Errorf("LastStatusCode = %d, want 200", a.LastStatusCode)
	}

	if gotContent != "application/json" {
		t.Errorf("Content-Type = %q", gotContent)
	}
	if gotCorrID != "corr-123" {
		t.Errorf("correlation header = %q, want corr-123", gotCorrID)
	}
	if !signature.Verify(testSecret, gotBody, gotSignature) {
		t.Error("request signature does not verify against the shared secret")
	}
	if string(gotBody) != string(a.Body) {
		t.Error("wire body differs from the ledgered canonical body")
	}
}

// Scenario: the endpoint fails three times with 500 and then recovers.
func TestDeliverRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := newRig(t, 5)
	c := r.register(t, srv.URL, true, event.ApplicationReceived)
	ctx := context.Background()

	if err := r.engine.Deliver(ctx, newEvent(event.ApplicationReceived)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	// Each sweep executes exactly one scheduled retry.
	for i := range 3 {
		atts := r.attempts(t, c.ID)
		if atts[0].Status != delivery.StatusRetryScheduled {
			t.Fatalf("after attempt %d: Status = %s, want RETRY_SCHEDULED", i+1, atts[0].Status)
		}
		r.sweeper.SweepOnce(ctx)
	}

	atts := r.attempts(t, c.ID)
	if len(atts) != 1 {
		t.Fatalf("attempts = %d, want a single ledger row", len(atts))
	}
	a := atts[0]
	if a.Status != delivery.StatusSuccess {
		t.Errorf("Status = %s, want SUCCESS", a.Status)
	}
	if a.AttemptCount != 4 {
		t.Errorf("AttemptCount = %d, want 4", a.AttemptCount)
	}
	if got := calls.Load(); got != 4 {
		t.Errorf("HTTP calls = %d, want 4", got)
	}
}

// Scenario: the endpoint times out on every call; the budget is five
// attempts and there is never a sixth call.
func TestDeliverExhaustsRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := newRig(t, 5, engine.WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	c := r.register(t, srv.URL, true, event.ApplicationReceived)
	ctx := context.Background()

	if err := r.engine.Deliver(ctx, newEvent(event.ApplicationReceived)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	for range 4 {
		r.sweeper.SweepOnce(ctx)
	}

	atts := r.attempts(t, c.ID)
	a := atts[0]
	if a.Status != delivery.StatusMaxRetriesExceeded {
		t.Fatalf("Status = %s, want MAX_RETRIES_EXCEEDED", a.Status)
	}
	if a.AttemptCount != 5 {
		t.Errorf("AttemptCount = %d, want 5", a.AttemptCount)
	}
	if a.LastError == "" {
		t.Error("LastError empty after timeout failures")
	}

	// A terminal attempt must never be claimed again.
	r.sweeper.SweepOnce(ctx)
	if got := calls.Load(); got != 5 {
		t.Errorf("HTTP calls = %d, want exactly 5", got)
	}

	// Exhaustion is surfaced on the DLQ.
	entries, err := r.store.ListDLQ(ctx, dlq.ListOpts{Kind: dlq.KindDeliveryExhausted})
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("DLQ entries = %d, want 1", len(entries))
	}
	if entries[0].DeliveryID != a.ID || entries[0].AttemptCount != 5 {
		t.Errorf("DLQ entry = %+v, want delivery %s with 5 attempts", entries[0], a.ID)
	}
}

// Scenario: the webhook is deactivated between its second failed attempt
// and the third scheduled retry.
func TestRedeliverSkipsDeactivatedWebhook(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := newRig(t, 5)
	c := r.register(t, srv.URL, true, event.ApplicationReceived)
	ctx := context.Background()

	if err := r.engine.Deliver(ctx, newEvent(event.ApplicationReceived)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	r.sweeper.SweepOnce(ctx) // second attempt, also fails

	c.Active = false
	if err := r.store.UpdateWebhook(ctx, c); err != nil {
		t.Fatalf("UpdateWebhook: %v", err)
	}

	r.sweeper.SweepOnce(ctx) // third retry is due, but the webhook is gone

	atts := r.attempts(t, c.ID)
	a := atts[0]
	if a.Status != delivery.StatusSkipped {
		t.Errorf("Status = %s, want SKIPPED", a.Status)
	}
	if a.AttemptCount != 2 {
		t.Errorf("AttemptCount = %d, want 2: a skip makes no HTTP call", a.AttemptCount)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("HTTP calls = %d, want 2", got)
	}
}

func TestDeliverNeverCallsInactiveWebhook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("inactive webhook received a request")
	}))
	defer srv.Close()

	r := newRig(t, 5)
	c := r.register(t, srv.URL, false, event.ApplicationReceived)

	if err := r.engine.Deliver(context.Background(), newEvent(event.ApplicationReceived)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if atts := r.attempts(t, c.ID); len(atts) != 0 {
		t.Errorf("attempts = %d, want 0 for an inactive webhook", len(atts))
	}
}

func TestDeliverIsolatesWebhookFailures(t *testing.T) {
	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer okSrv.Close()
	badSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer badSrv.Close()

	r := newRig(t, 5)
	ok := r.register(t, okSrv.URL, true, event.DocumentProcessed)
	bad := r.register(t, badSrv.URL, true, event.DocumentProcessed)

	if err := r.engine.Deliver(context.Background(), newEvent(event.DocumentProcessed)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if atts := r.attempts(t, ok.ID); len(atts) != 1 || atts[0].Status != delivery.StatusSuccess {
		t.Errorf("healthy webhook: %+v, want one SUCCESS attempt", atts)
	}
	if atts := r.attempts(t, bad.ID); len(atts) != 1 || atts[0].Status != delivery.StatusRetryScheduled {
		t.Errorf("failing webhook: %+v, want one RETRY_SCHEDULED attempt", atts)
	}
}

func TestDeliverNoSubscribersIsNoop(t *testing.T) {
	r := newRig(t, 5)
	if err := r.engine.Deliver(context.Background(), newEvent(event.DocumentFailed)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	n, err := r.store.CountAttempts(context.Background(), delivery.CountOpts{})
	if err != nil {
		t.Fatalf("CountAttempts: %v", err)
	}
	if n != 0 {
		t.Errorf("attempts = %d, want 0", n)
	}
}

func TestDeliverNonRetryableClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	r := newRig(t, 5)
	c := r.register(t, srv.URL, true, event.ApplicationReceived)
	ctx := context.Background()

	if err := r.engine.Deliver(ctx, newEvent(event.ApplicationReceived)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	r.sweeper.SweepOnce(ctx)

	atts := r.attempts(t, c.ID)
	a := atts[0]
	if a.Status != delivery.StatusMaxRetriesExceeded {
		t.Errorf("Status = %s, want MAX_RETRIES_EXCEEDED on first 401", a.Status)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("HTTP calls = %d, want 1: 401 is not retried", got)
	}
}

// Canonicalization must make key order irrelevant to the signature.
func TestDeliverCanonicalBodyIsKeySorted(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotBody, _ = io.ReadAll(req.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := newRig(t, 5)
	r.register(t, srv.URL, true, event.ApplicationReceived)

	ev := newEvent(event.ApplicationReceived)
	ev.Payload = json.RawMessage(`{"zeta":1,"alpha":2}`)
	if err := r.engine.Deliver(context.Background(), ev); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("wire body is not JSON: %v", err)
	}
	// Key-sorted canonical form puts alpha before zeta in the raw bytes.
	alpha := bytes.Index(gotBody, []byte(`"alpha"`))
	zeta := bytes.Index(gotBody, []byte(`"zeta"`))
	if alpha < 0 || zeta < 0 || alpha > zeta {
		t.Errorf("body %s is not key-sorted", gotBody)
	}
}
