package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
)

// tracerName is the instrumentation scope name for hookrelay tracing.
const tracerName = "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"

// Tracing returns middleware that wraps each delivery attempt in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a pass-through
// with zero overhead.
//
// Span attributes include: hookrelay.delivery.id, hookrelay.webhook.id,
// hookrelay.correlation_id, hookrelay.event_type, hookrelay.attempt.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, a *delivery.Attempt, next Handler) error {
		ctx, span := tracer.Start(ctx, "hookrelay.delivery.attempt",
			trace.WithAttributes(
				attribute.String("hookrelay.delivery.id", a.ID.String()),
				attribute.String("hookrelay.webhook.id", a.WebhookID.String()),
				attribute.String("hookrelay.correlation_id", a.CorrelationID),
				attribute.String("hookrelay.event_type", string(a.EventType)),
				attribute.Int("hookrelay.attempt", a.AttemptCount),
			),
			trace.WithSpanKind(trace.SpanKindClient),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
