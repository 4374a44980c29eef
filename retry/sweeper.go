package retry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
)

// Redeliverer executes a claimed retry attempt. Implemented by the
// delivery engine; an interface here keeps the sweeper free of an engine
// dependency.
type Redeliverer interface {
	Redeliver(ctx context.Context, a *delivery.Attempt) error
}

// Sweeper polls the ledger for due RETRY_SCHEDULED attempts, claims them,
// and hands them to the engine. Claiming pushes NextRetryAt forward by the
// lease, so running several sweepers against one ledger is safe.
type Sweeper struct {
	ledger delivery.Store
	engine Redeliverer
	logger *slog.Logger

	interval time.Duration
	lease    time.Duration
	batch    int

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval sets how often the sweeper polls the ledger.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.interval = d }
}

// WithClaimLease sets how long a claimed retry stays invisible to other
// sweepers.
func WithClaimLease(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.lease = d }
}

// WithSweepBatch sets the maximum number of retries claimed per sweep.
func WithSweepBatch(n int) SweeperOption {
	return func(s *Sweeper) { s.batch = n }
}

// NewSweeper creates a retry sweeper.
func NewSweeper(ledger delivery.Store, engine Redeliverer, logger *slog.Logger, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		ledger:   ledger,
		engine:   engine,
		logger:   logger,
		interval: time.Second,
		lease:    5 * time.Minute,
		batch:    100,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the sweep loop. It returns immediately.
func (s *Sweeper) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true

	s.logger.Info("retry sweeper starting",
		slog.Duration("interval", s.interval),
		slog.Duration("lease", s.lease),
		slog.Int("batch", s.batch),
	)

	s.wg.Add(1)
	go s.sweepLoop()
	return nil
}

// Stop signals the sweep loop to stop and waits for the in-flight sweep
// to finish or the context to expire.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("retry sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.SweepOnce(context.Background())
		}
	}
}

// SweepOnce claims all currently due retries (up to the batch size) and
// redelivers them. Exported so callers can trigger a sweep deterministically.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := time.Now().UTC()

	claimed, err := s.ledger.ClaimDueRetries(ctx, now, s.lease, s.batch)
	if err != nil {
		s.logger.Error("claim due retries", slog.String("error", err.Error()))
		return
	}

	for _, a := range claimed {
		select {
		case <-s.stopCh:
			// Unprocessed claims become due again when the lease expires.
			return
		default:
		}

		if err := s.engine.Redeliver(ctx, a); err != nil {
			s.logger.Error("redeliver attempt",
				slog.String("delivery_id", a.ID.String()),
				slog.String("webhook_id", a.WebhookID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}
