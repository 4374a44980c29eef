// Package engine implements webhook delivery: fan-out of one event to every
// subscribed active webhook, the signed HTTP POST, and the ledger transition
// for each outcome. Each (webhook, event) pair is delivered independently;
// one endpoint's failure never affects another's.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/dlq"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/event"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/ext"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/limit"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/middleware"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/retry"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/signature"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/webhook"
)

// CorrelationHeader carries the event's correlation id on every delivery
// request.
const CorrelationHeader = "X-Correlation-Id"

// maxDrainBytes bounds how much of a response body is read before the
// connection is returned to the pool.
const maxDrainBytes = 64 << 10

// Engine delivers events to webhooks and records every outcome in the
// ledger before returning, so callers can acknowledge the source message
// knowing the delivery state is durable.
type Engine struct {
	registry   webhook.Store
	ledger     delivery.Store
	dlqService *dlq.Service
	extensions *ext.Registry
	policy     retry.Policy
	limiter    *limit.Manager
	client     *http.Client
	mw         middleware.Middleware
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithHTTPClient sets the HTTP client used for deliveries. The default
// client has a 30s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.client = c }
}

// WithLimiter sets a per-host throttle checked before each HTTP call.
func WithLimiter(m *limit.Manager) Option {
	return func(e *Engine) { e.limiter = m }
}

// WithMiddleware sets the middleware chain wrapped around each attempt.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) { e.mw = middleware.Chain(mws...) }
}

// New creates a delivery engine.
func New(
	registry webhook.Store,
	ledger delivery.Store,
	dlqService *dlq.Service,
	extensions *ext.Registry,
	policy retry.Policy,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		registry:   registry,
		ledger:     ledger,
		dlqService: dlqService,
		extensions: extensions,
		policy:     policy,
		client:     &http.Client{Timeout: 30 * time.Second},
		mw:         middleware.Chain(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Deliver fans an event out to every active webhook subscribed to its
// type. One PENDING ledger row is created per target, then each delivery
// is executed and its outcome durably recorded.
//
// The returned error reflects persistence failures only: a webhook
// endpoint failing is a recorded outcome, not an error. A non-nil return
// means some outcome could not be recorded and the source message must
// not be acknowledged.
func (e *Engine) Deliver(ctx context.Context, ev *event.Event) error {
	body, err := ev.CanonicalBody()
	if err != nil {
		return fmt.Errorf("engine: canonical body: %w", err)
	}

	targets, err := e.registry.FindActiveByEvent(ctx, ev.Type)
	if err != nil {
		return fmt.Errorf("engine: resolve webhooks: %w", err)
	}
	if len(targets) == 0 {
		e.logger.Debug("no active webhooks for event",
			slog.String("event_id", ev.ID.String()),
			slog.String("event_type", string(ev.Type)),
		)
		return nil
	}

	var firstErr error
	for _, c := range targets {
		a := &delivery.Attempt{
			Entity:        hookrelay.NewEntity(),
			ID:            id.NewDeliveryID(),
			WebhookID:     c.ID,
			EventID:       ev.ID,
			CorrelationID: ev.CorrelationID,
			EventType:     ev.Type,
			Body:          body,
			Status:        delivery.StatusPending,
		}
		if err := e.ledger.CreateAttempt(ctx, a); err != nil {
			e.logger.Error("create attempt",
				slog.String("webhook_id", c.ID.String()),
				slog.String("event_id", ev.ID.String()),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := e.execute(ctx, a, c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Redeliver executes a retry claimed from the ledger. The webhook's
// active flag is re-checked first: a webhook deactivated while the retry
// was pending moves the attempt to SKIPPED without an HTTP call and
// without consuming the attempt counter.
func (e *Engine) Redeliver(ctx context.Context, a *delivery.Attempt) error {
	c, err := e.registry.GetWebhook(ctx, a.WebhookID)
	switch {
	case errors.Is(err, hookrelay.ErrWebhookNotFound):
		return e.skip(ctx, a)
	case err != nil:
		return fmt.Errorf("engine: load webhook: %w", err)
	case !c.Active:
		return e.skip(ctx, a)
	}
	return e.execute(ctx, a, c)
}

func (e *Engine) skip(ctx context.Context, a *delivery.Attempt) error {
	if err := a.Transition(delivery.StatusSkipped); err != nil {
		return err
	}
	if err := e.ledger.UpdateAttempt(ctx, a); err != nil {
		return fmt.Errorf("engine: record skip: %w", err)
	}
	e.logger.Info("delivery skipped, webhook inactive",
		slog.String("delivery_id", a.ID.String()),
		slog.String("webhook_id", a.WebhookID.String()),
	)
	e.extensions.EmitDeliverySkipped(ctx, a)
	return nil
}

// execute performs one HTTP attempt and records its outcome. The returned
// error reflects persistence failures only.
func (e *Engine) execute(ctx context.Context, a *delivery.Attempt, c *webhook.Config) error {
	if e.limiter != nil && !e.limiter.Acquire(c.URL) {
		return e.reschedule(ctx, a)
	}
	if e.limiter != nil {
		defer e.limiter.Release(c.URL)
	}

	// This attempt is about to execute; the counter is its 1-indexed ordinal.
	a.AttemptCount++

	e.extensions.EmitDeliveryStarted(ctx, a)

	var statusCode int
	terminal := func(ctx context.Context) error {
		code, postErr := e.post(ctx, a, c)
		statusCode = code
		return postErr
	}

	start := time.Now()
	err := e.mw(ctx, a, terminal)
	elapsed := time.Since(start)
	now := time.Now().UTC()

	a.LastStatusCode = statusCode

	if err == nil {
		a.LastError = ""
		if terr := a.Transition(delivery.StatusSuccess); terr != nil {
			return terr
		}
		if uerr := e.ledger.UpdateAttempt(ctx, a); uerr != nil {
			return fmt.Errorf("engine: record success: %w", uerr)
		}
		e.extensions.EmitDeliverySucceeded(ctx, a, elapsed)
		return nil
	}

	a.LastError = err.Error()

	outcome := retry.Outcome{StatusCode: statusCode}
	if statusCode == 0 {
		outcome = retry.Outcome{Err: err}
	}

	next, rerr := e.policy.Resolve(a, outcome, now)
	if rerr != nil {
		return rerr
	}
	if uerr := e.ledger.UpdateAttempt(ctx, a); uerr != nil {
		return fmt.Errorf("engine: record failure: %w", uerr)
	}

	if next != nil {
		e.logger.Warn("delivery failed, retry scheduled",
			slog.String("delivery_id", a.ID.String()),
			slog.String("webhook_id", a.WebhookID.String()),
			slog.Int("attempt", a.AttemptCount),
			slog.Int("status_code", statusCode),
			slog.Time("next_retry_at", *next),
		)
		e.extensions.EmitDeliveryRetrying(ctx, a, *next)
		return nil
	}

	e.logger.Error("delivery terminally failed",
		slog.String("delivery_id", a.ID.String()),
		slog.String("webhook_id", a.WebhookID.String()),
		slog.Int("attempt", a.AttemptCount),
		slog.Int("status_code", statusCode),
		slog.String("error", a.LastError),
	)
	e.extensions.EmitDeliveryFailed(ctx, a, err)

	if derr := e.dlqService.PushExhausted(ctx, a); derr != nil {
		return fmt.Errorf("engine: push dlq: %w", derr)
	}
	return nil
}

// reschedule re-arms a host-throttled attempt without consuming the
// attempt counter: no HTTP call was made.
func (e *Engine) reschedule(ctx context.Context, a *delivery.Attempt) error {
	if err := a.Transition(delivery.StatusRetryScheduled); err != nil {
		return err
	}
	attempt := a.AttemptCount
	if attempt < 1 {
		attempt = 1
	}
	next := time.Now().UTC().Add(e.policy.Backoff.Delay(attempt))
	a.NextRetryAt = &next

	if err := e.ledger.UpdateAttempt(ctx, a); err != nil {
		return fmt.Errorf("engine: record throttle: %w", err)
	}
	e.logger.Debug("delivery throttled",
		slog.String("delivery_id", a.ID.String()),
		slog.String("webhook_id", a.WebhookID.String()),
		slog.Time("next_retry_at", next),
	)
	e.extensions.EmitDeliveryRetrying(ctx, a, next)
	return nil
}

// post performs the signed HTTP POST. It returns the response status code
// (zero when no response was received) and a non-nil error for anything
// other than a 2xx response.
func (e *Engine) post(ctx context.Context, a *delivery.Attempt, c *webhook.Config) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(a.Body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.Header, signature.Sign(c.Secret, a.Body))
	req.Header.Set(CorrelationHeader, a.CorrelationID)

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
}
