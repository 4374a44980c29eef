// Package ext defines the extension system for hookrelay.
// Extensions are notified of lifecycle events (delivery succeeded, retry
// scheduled, dead-lettered, etc.) and can react to them — logging, metrics,
// alerting, etc.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/queue"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/webhook"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Delivery lifecycle hooks
// ──────────────────────────────────────────────────

// DeliveryStarted is called when an attempt begins executing.
type DeliveryStarted interface {
	OnDeliveryStarted(ctx context.Context, a *delivery.Attempt) error
}

// DeliverySucceeded is called after the endpoint returns 2xx.
type DeliverySucceeded interface {
	OnDeliverySucceeded(ctx context.Context, a *delivery.Attempt, elapsed time.Duration) error
}

// DeliveryRetrying is called when an attempt fails but a retry is scheduled.
type DeliveryRetrying interface {
	OnDeliveryRetrying(ctx context.Context, a *delivery.Attempt, nextRetryAt time.Time) error
}

// DeliveryFailed is called when a delivery fails terminally
// (MAX_RETRIES_EXCEEDED). This is the operator alerting hook.
type DeliveryFailed interface {
	OnDeliveryFailed(ctx context.Context, a *delivery.Attempt, err error) error
}

// DeliverySkipped is called when a scheduled attempt is skipped because
// the webhook was deactivated.
type DeliverySkipped interface {
	OnDeliverySkipped(ctx context.Context, a *delivery.Attempt) error
}

// ──────────────────────────────────────────────────
// Queue and registry hooks
// ──────────────────────────────────────────────────

// MessageDeadLettered is called when a malformed queue message is parked
// on the dead letter path without creating a delivery attempt.
type MessageDeadLettered interface {
	OnMessageDeadLettered(ctx context.Context, m *queue.Message, reason error) error
}

// WebhookDeactivated is called after a webhook is logically deleted.
type WebhookDeactivated interface {
	OnWebhookDeactivated(ctx context.Context, c *webhook.Config) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
