package hookrelay

import "time"

// Config holds configuration for the relay.
type Config struct {
	// Prefetch is the maximum number of unacknowledged queue messages held
	// at any time. It also bounds consumer concurrency.
	Prefetch int

	// MaxRetries is the maximum number of delivery attempts per webhook
	// per event before the delivery is marked terminally failed.
	MaxRetries int

	// DeliveryTimeout bounds each outbound HTTP call.
	DeliveryTimeout time.Duration

	// BackoffBase is the base delay for exponential retry backoff.
	// The delay before retry n is BackoffBase * 2^(n-1) plus jitter.
	BackoffBase time.Duration

	// BackoffMax caps the deterministic part of the backoff delay.
	// Zero means no cap.
	BackoffMax time.Duration

	// DisableJitter removes the random jitter term from retry backoff,
	// giving strict exponential delays. Leaving jitter on avoids
	// synchronized retry storms.
	DisableJitter bool

	// RetryClientErrors makes 4xx responses other than 408 and 429
	// retryable. By default those responses fail the delivery immediately,
	// since they are unlikely to ever succeed on retry.
	RetryClientErrors bool

	// SweepInterval is how often the retry sweeper polls the ledger for
	// due retries.
	SweepInterval time.Duration

	// SweepBatch is the maximum number of due retries claimed per sweep.
	SweepBatch int

	// RetryClaimLease is how long a claimed retry stays invisible to other
	// sweepers. If the process crashes mid-attempt, the retry becomes due
	// again once the lease expires.
	RetryClaimLease time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Prefetch:        10,
		MaxRetries:      5,
		DeliveryTimeout: 30 * time.Second,
		BackoffBase:     1 * time.Second,
		SweepInterval:   1 * time.Second,
		SweepBatch:      100,
		RetryClaimLease: 5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}
