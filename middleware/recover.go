package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
)

// Recover returns middleware that recovers from panics in the delivery
// chain. Panics are converted to errors and logged with a stack trace, so
// one broken delivery can never take down a consumer worker.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, a *delivery.Attempt, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("delivery panicked",
					slog.String("delivery_id", a.ID.String()),
					slog.String("webhook_id", a.WebhookID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in delivery %s: %v", a.ID.String(), r)
			}
		}()
		return next(ctx)
	}
}
