package middleware

import (
	"context"
	"time"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
)

// Timeout returns middleware that enforces a per-attempt deadline. When the
// deadline is exceeded the context is cancelled and the HTTP call returns
// context.DeadlineExceeded, which the retry scheduler treats as a
// transient failure.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *delivery.Attempt, next Handler) error {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
