package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/ext"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/queue"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/webhook"
)

// Compile-time interface checks.
var (
	_ ext.Extension           = (*LoggingExtension)(nil)
	_ ext.DeliverySucceeded   = (*LoggingExtension)(nil)
	_ ext.DeliveryRetrying    = (*LoggingExtension)(nil)
	_ ext.DeliveryFailed      = (*LoggingExtension)(nil)
	_ ext.DeliverySkipped     = (*LoggingExtension)(nil)
	_ ext.MessageDeadLettered = (*LoggingExtension)(nil)
	_ ext.WebhookDeactivated  = (*LoggingExtension)(nil)
	_ ext.Shutdown            = (*LoggingExtension)(nil)
)

// LoggingExtension emits one structured log line per lifecycle event.
// Terminal failures log at Error so they surface in operator alerting;
// everything else logs at Info.
type LoggingExtension struct {
	logger *slog.Logger
}

// NewLoggingExtension creates a LoggingExtension writing to the given logger.
func NewLoggingExtension(logger *slog.Logger) *LoggingExtension {
	return &LoggingExtension{logger: logger}
}

// Name implements ext.Extension.
func (l *LoggingExtension) Name() string { return "observability-logging" }

func attemptAttrs(a *delivery.Attempt) []any {
	return []any{
		"delivery_id", a.ID,
		"webhook_id", a.WebhookID,
		"correlation_id", a.CorrelationID,
		"event_type", a.EventType,
		"attempt_count", a.AttemptCount,
	}
}

// OnDeliverySucceeded implements ext.DeliverySucceeded.
func (l *LoggingExtension) OnDeliverySucceeded(ctx context.Context, a *delivery.Attempt, elapsed time.Duration) error {
	l.logger.InfoContext(ctx, "delivery succeeded",
		append(attemptAttrs(a), "status_code", a.LastStatusCode, "elapsed", elapsed)...)
	return nil
}

// OnDeliveryRetrying implements ext.DeliveryRetrying.
func (l *LoggingExtension) OnDeliveryRetrying(ctx context.Context, a *delivery.Attempt, nextRetryAt time.Time) error {
	l.logger.InfoContext(ctx, "delivery retry scheduled",
		append(attemptAttrs(a), "status_code", a.LastStatusCode, "next_retry_at", nextRetryAt)...)
	return nil
}

// OnDeliveryFailed implements ext.DeliveryFailed.
func (l *LoggingExtension) OnDeliveryFailed(ctx context.Context, a *delivery.Attempt, err error) error {
	l.logger.ErrorContext(ctx, "delivery failed permanently",
		append(attemptAttrs(a), "status_code", a.LastStatusCode, "error", err)...)
	return nil
}

// OnDeliverySkipped implements ext.DeliverySkipped.
func (l *LoggingExtension) OnDeliverySkipped(ctx context.Context, a *delivery.Attempt) error {
	l.logger.InfoContext(ctx, "delivery skipped", attemptAttrs(a)...)
	return nil
}

// OnMessageDeadLettered implements ext.MessageDeadLettered.
func (l *LoggingExtension) OnMessageDeadLettered(ctx context.Context, m *queue.Message, reason error) error {
	l.logger.ErrorContext(ctx, "message dead-lettered",
		"message_id", m.ID, "reason", reason)
	return nil
}

// OnWebhookDeactivated implements ext.WebhookDeactivated.
func (l *LoggingExtension) OnWebhookDeactivated(ctx context.Context, c *webhook.Config) error {
	l.logger.InfoContext(ctx, "webhook deactivated", "webhook_id", c.ID, "url", c.URL)
	return nil
}

// OnShutdown implements ext.Shutdown.
func (l *LoggingExtension) OnShutdown(ctx context.Context) error {
	l.logger.InfoContext(ctx, "relay shutting down")
	return nil
}
