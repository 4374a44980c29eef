// Package consumer runs the queue-facing side of the relay: a bounded set
// of worker goroutines that fetch messages from a queue.Source, decode
// them at the queue boundary, dispatch well-formed events to the delivery
// engine, and acknowledge each message only after every outcome is
// durably recorded.
//
// At-least-once semantics follow from the ack discipline: a crash between
// delivery and ack makes the broker redeliver the message, and a duplicate
// (webhook, event) ledger row is the accepted artifact. A crash between
// row creation and the first outcome write leaves the original row
// PENDING forever: the sweeper claims only RETRY_SCHEDULED rows, so the
// orphan is never re-executed and stays visible in delivery history
// alongside the redelivered row.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/dlq"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/event"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/ext"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/queue"
)

// Deliverer dispatches a decoded event to every subscribed webhook and
// records all outcomes before returning. Implemented by the engine.
type Deliverer interface {
	Deliver(ctx context.Context, ev *event.Event) error
}

// Consumer owns one queue connection lifecycle: explicit Start/Stop, a
// bounded number of worker goroutines, and a reconnect backoff on fetch
// errors. Each worker holds at most one unacknowledged message, so the
// prefetch setting bounds both concurrency and unacked messages.
type Consumer struct {
	source     queue.Source
	engine     Deliverer
	dlqService *dlq.Service
	extensions *ext.Registry
	logger     *slog.Logger

	prefetch     int
	fetchBackoff time.Duration
	consumerID   id.ConsumerID

	ctx     context.Context
	cancel  context.CancelFunc
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithPrefetch sets the maximum number of unacknowledged messages held at
// any time. It equals the number of worker goroutines.
func WithPrefetch(n int) Option {
	return func(c *Consumer) { c.prefetch = n }
}

// WithFetchBackoff sets the pause before refetching after a queue error.
func WithFetchBackoff(d time.Duration) Option {
	return func(c *Consumer) { c.fetchBackoff = d }
}

// New creates a consumer over the given source and engine.
func New(
	source queue.Source,
	engine Deliverer,
	dlqService *dlq.Service,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...Option,
) *Consumer {
	c := &Consumer{
		source:       source,
		engine:       engine,
		dlqService:   dlqService,
		extensions:   extensions,
		logger:       logger,
		prefetch:     10,
		fetchBackoff: time.Second,
		consumerID:   id.NewConsumerID(),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConsumerID returns the consumer's unique identifier.
func (c *Consumer) ConsumerID() id.ConsumerID { return c.consumerID }

// Start launches the worker goroutines. It returns immediately.
func (c *Consumer) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	c.running = true
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.logger.Info("consumer starting",
		slog.String("consumer_id", c.consumerID.String()),
		slog.Int("prefetch", c.prefetch),
	)

	for range c.prefetch {
		c.wg.Add(1)
		go c.consumeLoop()
	}
	return nil
}

// Stop signals all workers to stop and waits for them to exit or the
// context to expire. In-flight HTTP attempts are cancelled; a cancelled
// attempt records a retryable failure, and messages still unacknowledged
// will be redelivered by the broker.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	c.logger.Info("consumer stopping", slog.String("consumer_id", c.consumerID.String()))

	close(c.stopCh)
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("consumer stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// consumeLoop is run by each worker goroutine. One message at a time:
// fetch, dispatch, ack.
func (c *Consumer) consumeLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		msgs, err := c.source.Fetch(c.ctx, 1)
		if err != nil {
			if errors.Is(err, hookrelay.ErrQueueClosed) || errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("queue fetch", slog.String("error", err.Error()))
			select {
			case <-c.stopCh:
				return
			case <-time.After(c.fetchBackoff):
			}
			continue
		}

		for _, m := range msgs {
			c.handle(c.ctx, m)
		}
	}
}

// handle processes one message. The message is acknowledged only when its
// terminal disposition is durable: every delivery outcome recorded in the
// ledger, or the malformed body parked on the DLQ. Anything less leaves
// the message unacked for broker redelivery.
func (c *Consumer) handle(ctx context.Context, m *queue.Message) {
	ev, err := event.Decode(m.Body)
	if err != nil {
		c.handleMalformed(ctx, m, err)
		return
	}

	if err := c.engine.Deliver(ctx, ev); err != nil {
		c.logger.Error("deliver event, message left unacked",
			slog.String("message_id", m.ID),
			slog.String("event_id", ev.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := c.source.Ack(ctx, m); err != nil {
		c.logger.Error("ack message",
			slog.String("message_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}

// handleMalformed parks a structurally invalid message. No delivery
// attempt exists for it; the engine is never invoked.
func (c *Consumer) handleMalformed(ctx context.Context, m *queue.Message, cause error) {
	c.logger.Warn("malformed message dead-lettered",
		slog.String("message_id", m.ID),
		slog.Int("deliveries", m.Deliveries),
		slog.String("error", cause.Error()),
	)

	if err := c.dlqService.PushMalformed(ctx, m, cause); err != nil {
		// Leave the message unacked; redelivery retries the DLQ write.
		c.logger.Error("push malformed to dlq",
			slog.String("message_id", m.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := c.source.DeadLetter(ctx, m, cause); err != nil {
		c.logger.Error("dead-letter message",
			slog.String("message_id", m.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	c.extensions.EmitMessageDeadLettered(ctx, m, cause)
}
