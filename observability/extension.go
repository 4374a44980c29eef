package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/ext"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/queue"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/webhook"
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/observability"

// Compile-time interface checks.
var (
	_ ext.Extension           = (*MetricsExtension)(nil)
	_ ext.DeliveryStarted     = (*MetricsExtension)(nil)
	_ ext.DeliverySucceeded   = (*MetricsExtension)(nil)
	_ ext.DeliveryRetrying    = (*MetricsExtension)(nil)
	_ ext.DeliveryFailed      = (*MetricsExtension)(nil)
	_ ext.DeliverySkipped     = (*MetricsExtension)(nil)
	_ ext.MessageDeadLettered = (*MetricsExtension)(nil)
	_ ext.WebhookDeactivated  = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide delivery lifecycle counters via
// OpenTelemetry. Register it on the relay to track delivery starts,
// successes, retries, terminal failures, skips, dead-lettered messages, and
// webhook deactivations. If no MeterProvider is configured the instruments
// are noop.
type MetricsExtension struct {
	started      metric.Int64Counter
	succeeded    metric.Int64Counter
	retried      metric.Int64Counter
	failed       metric.Int64Counter
	skipped      metric.Int64Counter
	deadLettered metric.Int64Counter
	deactivated  metric.Int64Counter
	deliveryTime metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension using the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. This variant allows injecting a specific MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// On instrument-creation error the OTel API returns noop instruments,
	// so the extension degrades gracefully.
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{event}"))
		return c
	}
	hist, _ := meter.Float64Histogram(
		"hookrelay.delivery.success_duration",
		metric.WithDescription("End-to-end duration of a successful delivery in seconds"),
		metric.WithUnit("s"),
	)
	return &MetricsExtension{
		started:      counter("hookrelay.delivery.started", "Delivery attempts started"),
		succeeded:    counter("hookrelay.delivery.succeeded", "Deliveries acknowledged with 2xx"),
		retried:      counter("hookrelay.delivery.retried", "Delivery attempts rescheduled for retry"),
		failed:       counter("hookrelay.delivery.failed", "Deliveries that exhausted their retry budget"),
		skipped:      counter("hookrelay.delivery.skipped", "Scheduled attempts skipped for deactivated webhooks"),
		deadLettered: counter("hookrelay.message.dead_lettered", "Malformed queue messages dead-lettered"),
		deactivated:  counter("hookrelay.webhook.deactivated", "Webhooks logically deleted"),
		deliveryTime: hist,
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func (m *MetricsExtension) eventAttrs(a *delivery.Attempt) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("event_type", string(a.EventType)))
}

// OnDeliveryStarted implements ext.DeliveryStarted.
func (m *MetricsExtension) OnDeliveryStarted(ctx context.Context, a *delivery.Attempt) error {
	m.started.Add(ctx, 1, m.eventAttrs(a))
	return nil
}

// OnDeliverySucceeded implements ext.DeliverySucceeded.
func (m *MetricsExtension) OnDeliverySucceeded(ctx context.Context, a *delivery.Attempt, elapsed time.Duration) error {
	m.succeeded.Add(ctx, 1, m.eventAttrs(a))
	m.deliveryTime.Record(ctx, elapsed.Seconds(), m.eventAttrs(a))
	return nil
}

// OnDeliveryRetrying implements ext.DeliveryRetrying.
func (m *MetricsExtension) OnDeliveryRetrying(ctx context.Context, a *delivery.Attempt, _ time.Time) error {
	m.retried.Add(ctx, 1, m.eventAttrs(a))
	return nil
}

// OnDeliveryFailed implements ext.DeliveryFailed.
func (m *MetricsExtension) OnDeliveryFailed(ctx context.Context, a *delivery.Attempt, _ error) error {
	m.failed.Add(ctx, 1, m.eventAttrs(a))
	return nil
}

// OnDeliverySkipped implements ext.DeliverySkipped.
func (m *MetricsExtension) OnDeliverySkipped(ctx context.Context, a *delivery.Attempt) error {
	m.skipped.Add(ctx, 1, m.eventAttrs(a))
	return nil
}

// OnMessageDeadLettered implements ext.MessageDeadLettered.
func (m *MetricsExtension) OnMessageDeadLettered(ctx context.Context, _ *queue.Message, _ error) error {
	m.deadLettered.Add(ctx, 1)
	return nil
}

// OnWebhookDeactivated implements ext.WebhookDeactivated.
func (m *MetricsExtension) OnWebhookDeactivated(ctx context.Context, _ *webhook.Config) error {
	m.deactivated.Add(ctx, 1)
	return nil
}
