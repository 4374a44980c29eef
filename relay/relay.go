// Package relay wires the full delivery pipeline: queue consumer, delivery
// engine, retry sweeper, and store lifecycle, behind a single Start/Stop
// coordinator.
package relay

import (
	"context"
	"log/slog"
	"net/http"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/backoff"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/consumer"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/dlq"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/engine"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/ext"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/limit"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/middleware"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/queue"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/retry"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/store"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/webhook"
)

// Option configures a Relay.
type Option func(*Relay) error

// Relay is the central coordinator. It owns the queue consumer, the
// delivery engine, the retry sweeper, and the store lifecycle.
//
// Create one with New() and functional options, then call Start. Stop
// drains in-flight work up to Config.ShutdownTimeout; unfinished
// deliveries are recovered from ledger state on the next start.
type Relay struct {
	config     hookrelay.Config
	logger     *slog.Logger
	store      store.Store
	source     queue.Source
	limiter    *limit.Manager
	mws        []middleware.Middleware
	registered []ext.Extension

	extensions *ext.Registry
	webhookSvc *webhook.Service
	dlqSvc     *dlq.Service
	engine     *engine.Engine
	consumer   *consumer.Consumer
	sweeper    *retry.Sweeper

	started bool
}

// New creates a Relay with the given options and wires all subsystems.
// A store and a queue source are required.
func New(opts ...Option) (*Relay, error) {
	r := &Relay{
		config: hookrelay.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.store == nil {
		return nil, hookrelay.ErrNoStore
	}
	if r.source == nil {
		return nil, hookrelay.ErrNoSource
	}

	r.extensions = ext.NewRegistry(r.logger)
	for _, e := range r.registered {
		r.extensions.Register(e)
	}

	var bo backoff.Strategy
	if r.config.DisableJitter {
		bo = backoff.NewExponential(r.config.BackoffBase, r.config.BackoffMax)
	} else {
		bo = backoff.NewExponentialWithJitter(r.config.BackoffBase, r.config.BackoffMax)
	}
	policy := retry.NewPolicy(r.config.MaxRetries, bo)
	policy.RetryClientErrors = r.config.RetryClientErrors

	r.webhookSvc = webhook.NewService(r.store)
	r.dlqSvc = dlq.NewService(r.store, r.config.MaxRetries)

	engineOpts := []engine.Option{
		engine.WithHTTPClient(&http.Client{Timeout: r.config.DeliveryTimeout}),
	}
	if r.limiter != nil {
		engineOpts = append(engineOpts, engine.WithLimiter(r.limiter))
	}
	if len(r.mws) > 0 {
		engineOpts = append(engineOpts, engine.WithMiddleware(r.mws...))
	}
	r.engine = engine.New(r.store, r.store, r.dlqSvc, r.extensions, policy, r.logger, engineOpts...)

	r.consumer = consumer.New(r.source, r.engine, r.dlqSvc, r.extensions, r.logger,
		consumer.WithPrefetch(r.config.Prefetch))

	r.sweeper = retry.NewSweeper(r.store, r.engine, r.logger,
		retry.WithSweepInterval(r.config.SweepInterval),
		retry.WithClaimLease(r.config.RetryClaimLease),
		retry.WithSweepBatch(r.config.SweepBatch))

	return r, nil
}

// Start begins consuming messages and sweeping due retries.
func (r *Relay) Start(ctx context.Context) error {
	if r.started {
		return nil
	}
	if err := r.store.Ping(ctx); err != nil {
		return err
	}
	if err := r.sweeper.Start(ctx); err != nil {
		return err
	}
	if err := r.consumer.Start(ctx); err != nil {
		_ = r.sweeper.Stop(ctx)
		return err
	}
	r.started = true
	r.logger.Info("relay started",
		"consumer_id", r.consumer.ConsumerID(),
		"prefetch", r.config.Prefetch,
		"max_retries", r.config.MaxRetries)
	return nil
}

// Stop gracefully shuts down the relay: the consumer stops fetching, the
// sweeper finishes its current sweep, extensions are notified, and the
// store is closed. Stop waits at most Config.ShutdownTimeout.
func (r *Relay) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if r.started {
		if err := r.consumer.Stop(ctx); err != nil {
			r.logger.Error("consumer stop error", "error", err)
			firstErr = err
		}
		if err := r.sweeper.Stop(ctx); err != nil {
			r.logger.Error("sweeper stop error", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		r.started = false
	}

	r.extensions.EmitShutdown(ctx)

	if err := r.store.Close(); err != nil {
		r.logger.Error("store close error", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Logger returns the relay's logger.
func (r *Relay) Logger() *slog.Logger { return r.logger }

// Config returns a copy of the relay's configuration.
func (r *Relay) Config() hookrelay.Config { return r.config }

// Store returns the relay's store.
func (r *Relay) Store() store.Store { return r.store }

// Webhooks returns the webhook registry service.
func (r *Relay) Webhooks() *webhook.Service { return r.webhookSvc }

// DLQ returns the dead letter queue service.
func (r *Relay) DLQ() *dlq.Service { return r.dlqSvc }

// Engine returns the delivery engine.
func (r *Relay) Engine() *engine.Engine { return r.engine }

// Extensions returns the extension registry.
func (r *Relay) Extensions() *ext.Registry { return r.extensions }

// WithConfig sets the relay configuration.
func WithConfig(c hookrelay.Config) Option {
	return func(r *Relay) error {
		r.config = c
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) error {
		r.logger = l
		return nil
	}
}

// WithStore sets the persistence backend. Required.
func WithStore(s store.Store) Option {
	return func(r *Relay) error {
		r.store = s
		return nil
	}
}

// WithSource sets the queue source to consume. Required.
func WithSource(s queue.Source) Option {
	return func(r *Relay) error {
		r.source = s
		return nil
	}
}

// WithExtensions registers lifecycle extensions.
func WithExtensions(exts ...ext.Extension) Option {
	return func(r *Relay) error {
		r.registered = append(r.registered, exts...)
		return nil
	}
}

// WithMiddleware sets the middleware chain wrapped around each delivery
// attempt.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(r *Relay) error {
		r.mws = append(r.mws, mws...)
		return nil
	}
}

// WithLimiter sets per-host delivery throttling.
func WithLimiter(m *limit.Manager) Option {
	return func(r *Relay) error {
		r.limiter = m
		return nil
	}
}
