package retry_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/backoff"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/event"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/retry"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/store/memory"
)

func TestRetryable(t *testing.T) {
	p := retry.NewPolicy(5, backoff.NewConstant(time.Second))

	tests := []struct {
		name string
		o    retry.Outcome
		want bool
	}{
		{"transport error", retry.Outcome{Err: errors.New("connection refused")}, true},
		{"500", retry.Outcome{StatusCode: 500}, true},
		{"503", retry.Outcome{StatusCode: 503}, true},
		{"408 request timeout", retry.Outcome{StatusCode: 408}, true},
		{"429 too many requests", retry.Outcome{StatusCode: 429}, true},
		{"400 bad request", retry.Outcome{StatusCode: 400}, false},
		{"401 unauthorized", retry.Outcome{StatusCode: 401}, false},
		{"404 not found", retry.Outcome{StatusCode: 404}, false},
		{"410 gone", retry.Outcome{StatusCode: 410}, false},
		{"301 redirect", retry.Outcome{StatusCode: 301}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Retryable(tt.o); got != tt.want {
				t.Errorf("Retryable(%+v) = %v, want %v", tt.o, got, tt.want)
			}
		})
	}
}

func TestRetryableClientErrorsOptIn(t *testing.T) {
	p := retry.NewPolicy(5, backoff.NewConstant(time.Second))
	p.RetryClientErrors = true

	for _, code := range []int{400, 404, 422} {
		if !p.Retryable(retry.Outcome{StatusCode: code}) {
			t.Errorf("with RetryClientErrors, %d should be retryable", code)
		}
	}
}

func newFailedAttempt(count int) *delivery.Attempt {
	return &delivery.Attempt{
		Entity:        hookrelay.NewEntity(),
		ID:            id.NewDeliveryID(),
		WebhookID:     id.NewWebhookID(),
		EventID:       id.NewEventID(),
		CorrelationID: "corr-1",
		EventType:     event.ApplicationReceived,
		Body:          []byte(`{}`),
		Status:        delivery.StatusPending,
		AttemptCount:  count,
	}
}

func TestResolveSchedulesRetry(t *testing.T) {
	p := retry.NewPolicy(5, backoff.NewConstant(10*time.Second))
	now := time.Now().UTC()

	a := newFailedAttempt(1)
	next, err := p.Resolve(a, retry.Outcome{StatusCode: 503}, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if next == nil {
		t.Fatal("expected a next retry time")
	}
	if a.Status != delivery.StatusRetryScheduled {
		t.Errorf("Status = %s, want RETRY_SCHEDULED", a.Status)
	}
	if got := next.Sub(now); got != 10*time.Second {
		t.Errorf("retry delay = %s, want 10s", got)
	}
	if a.NextRetryAt == nil || !a.NextRetryAt.Equal(*next) {
		t.Error("NextRetryAt not recorded on the attempt")
	}
}

func TestResolveExhaustsBudget(t *testing.T) {
	p := retry.NewPolicy(5, backoff.NewConstant(time.Second))
	now := time.Now().UTC()

	a := newFailedAttempt(5)
	next, err := p.Resolve(a, retry.Outcome{StatusCode: 503}, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if next != nil {
		t.Error("exhausted attempt still got a retry time")
	}
	if a.Status != delivery.StatusMaxRetriesExceeded {
		t.Errorf("Status = %s, want MAX_RETRIES_EXCEEDED", a.Status)
	}
	if a.NextRetryAt != nil {
		t.Error("NextRetryAt not cleared on terminal status")
	}
}

func TestResolveNonRetryableFailsImmediately(t *testing.T) {
	p := retry.NewPolicy(5, backoff.NewConstant(time.Second))

	a := newFailedAttempt(1)
	next, err := p.Resolve(a, retry.Outcome{StatusCode: 404}, time.Now().UTC())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if next != nil {
		t.Error("non-retryable failure still got a retry time")
	}
	if a.Status != delivery.StatusMaxRetriesExceeded {
		t.Errorf("Status = %s, want MAX_RETRIES_EXCEEDED after first 404", a.Status)
	}
}

func TestResolveFromTerminalIsRejected(t *testing.T) {
	p := retry.NewPolicy(5, backoff.NewConstant(time.Second))

	a := newFailedAttempt(1)
	a.Status = delivery.StatusSuccess
	if _, err := p.Resolve(a, retry.Outcome{StatusCode: 503}, time.Now().UTC()); !errors.Is(err, hookrelay.ErrInvalidState) {
		t.Errorf("Resolve on terminal attempt error = %v, want ErrInvalidState", err)
	}
}

// ──────────────────────────────────────────────────
// Sweeper
// ──────────────────────────────────────────────────

type redeliverRecorder struct {
	ids []id.DeliveryID
	err error
}

func (r *redeliverRecorder) Redeliver(_ context.Context, a *delivery.Attempt) error {
	r.ids = append(r.ids, a.ID)
	return r.err
}

func TestSweeperClaimsAndRedelivers(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	due := newFailedAttempt(1)
	due.Status = delivery.StatusRetryScheduled
	past := now.Add(-time.Second)
	due.NextRetryAt = &past

	future := newFailedAttempt(1)
	future.Status = delivery.StatusRetryScheduled
	later := now.Add(time.Hour)
	future.NextRetryAt = &later

	for _, a := range []*delivery.Attempt{due, future} {
		if err := s.CreateAttempt(ctx, a); err != nil {
			t.Fatalf("CreateAttempt: %v", err)
		}
	}

	rec := &redeliverRecorder{}
	sw := retry.NewSweeper(s, rec, slog.New(slog.DiscardHandler),
		retry.WithClaimLease(time.Minute),
		retry.WithSweepBatch(10),
	)

	sw.SweepOnce(ctx)

	if len(rec.ids) != 1 {
		t.Fatalf("redelivered %d attempts, want 1", len(rec.ids))
	}
	if rec.ids[0] != due.ID {
		t.Errorf("redelivered %s, want %s", rec.ids[0], due.ID)
	}

	// The claim lease keeps the attempt invisible to an immediate second
	// sweep even though the engine has not recorded an outcome yet.
	sw.SweepOnce(ctx)
	if len(rec.ids) != 1 {
		t.Errorf("second sweep redelivered again; lease not honored")
	}
}

func TestSweeperStartStop(t *testing.T) {
	s := memory.New()
	rec := &redeliverRecorder{}
	sw := retry.NewSweeper(s, rec, slog.New(slog.DiscardHandler),
		retry.WithSweepInterval(10*time.Millisecond),
	)

	ctx := context.Background()
	if err := sw.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Idempotent start.
	if err := sw.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := sw.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Idempotent stop.
	if err := sw.Stop(stopCtx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
