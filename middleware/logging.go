package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
)

// Logging returns middleware that logs the start and outcome of each
// delivery attempt.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, a *delivery.Attempt, next Handler) error {
		logger.Info("delivery attempt started",
			slog.String("delivery_id", a.ID.String()),
			slog.String("webhook_id", a.WebhookID.String()),
			slog.String("correlation_id", a.CorrelationID),
			slog.String("event_type", string(a.EventType)),
			slog.Int("attempt", a.AttemptCount),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn("delivery attempt failed",
				slog.String("delivery_id", a.ID.String()),
				slog.String("webhook_id", a.WebhookID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("delivery attempt succeeded",
				slog.String("delivery_id", a.ID.String()),
				slog.String("webhook_id", a.WebhookID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
