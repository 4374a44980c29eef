// Package redis implements queue.Source on Redis Streams with consumer
// groups. Events are appended to a stream with XADD; consumers fetch with
// XREADGROUP (the unread count bounds the prefetch window), acknowledge
// with XACK, and park malformed messages on a dead letter stream. Messages
// left pending by a crashed consumer are adopted with XAUTOCLAIM, so an
// unacknowledged message is always redelivered eventually.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	src := redisqueue.New(client)
//	defer src.Close()
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/queue"
)

// Ensure Queue implements queue.Source at compile time.
var _ queue.Source = (*Queue)(nil)

// Default stream layout.
const (
	DefaultStream     = "hookrelay:events"
	DefaultGroup      = "hookrelay:consumers"
	DefaultDeadStream = "hookrelay:events:dead"
)

// bodyField is the stream entry field carrying the raw message payload.
const bodyField = "body"

// Option configures the Queue.
type Option func(*Queue)

// WithStream sets the event stream key.
func WithStream(stream string) Option {
	return func(q *Queue) { q.stream = stream }
}

// WithGroup sets the consumer group name.
func WithGroup(group string) Option {
	return func(q *Queue) { q.group = group }
}

// WithDeadStream sets the dead letter stream key.
func WithDeadStream(stream string) Option {
	return func(q *Queue) { q.deadStream = stream }
}

// WithBlock sets how long a Fetch blocks waiting for new entries before
// returning empty-handed.
func WithBlock(d time.Duration) Option {
	return func(q *Queue) { q.block = d }
}

// WithClaimMinIdle sets the idle threshold after which pending entries of
// other consumers are adopted via XAUTOCLAIM.
func WithClaimMinIdle(d time.Duration) Option {
	return func(q *Queue) { q.claimMinIdle = d }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// Queue is a Redis Streams implementation of queue.Source. The caller owns
// the Redis client lifecycle; Close only stops this source.
type Queue struct {
	client       goredis.Cmdable
	stream       string
	group        string
	deadStream   string
	consumer     string
	block        time.Duration
	claimMinIdle time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	ready   bool
	closed  bool
}

// New creates a Redis Streams queue source. Each source registers itself as
// a distinct consumer within the group.
func New(client goredis.Cmdable, opts ...Option) *Queue {
	q := &Queue{
		client:       client,
		stream:       DefaultStream,
		group:        DefaultGroup,
		deadStream:   DefaultDeadStream,
		consumer:     id.NewConsumerID().String(),
		block:        5 * time.Second,
		claimMinIdle: time.Minute,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Publish appends a raw event body to the stream. Producer-side helper.
func (q *Queue) Publish(ctx context.Context, body []byte) (string, error) {
	msgID, err := q.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{bodyField: body},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("queue/redis: publish: %w", err)
	}
	return msgID, nil
}

// ensureGroup creates the consumer group if it does not exist yet.
func (q *Queue) ensureGroup(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ready {
		return nil
	}
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("queue/redis: create group: %w", err)
	}
	q.ready = true
	return nil
}

// Fetch returns up to n messages. Stuck pending entries of crashed
// consumers are adopted first; otherwise new entries are read with
// XREADGROUP, blocking up to the configured block interval.
func (q *Queue) Fetch(ctx context.Context, n int) ([]*queue.Message, error) {
	if q.isClosed() {
		return nil, hookrelay.ErrQueueClosed
	}
	if err := q.ensureGroup(ctx); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = 1
	}

	// Adopt entries whose consumer looks dead.
	claimed, _, err := q.client.XAutoClaim(ctx, &goredis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  q.claimMinIdle,
		Start:    "0",
		Count:    int64(n),
	}).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("queue/redis: autoclaim: %w", err)
	}
	if len(claimed) > 0 {
		return q.toMessages(claimed, 2), nil
	}

	streams, err := q.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    int64(n),
		Block:    q.block,
	}).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil // block interval elapsed with no entries
	}
	if err != nil {
		return nil, fmt.Errorf("queue/redis: read group: %w", err)
	}

	var msgs []*queue.Message
	for _, s := range streams {
		msgs = append(msgs, q.toMessages(s.Messages, 1)...)
	}
	return msgs, nil
}

func (q *Queue) toMessages(entries []goredis.XMessage, deliveries int) []*queue.Message {
	msgs := make([]*queue.Message, 0, len(entries))
	for _, e := range entries {
		body, ok := e.Values[bodyField].(string)
		if !ok {
			// Entry without a body field cannot be processed at all.
			// Park it directly and move on.
			q.logger.Warn("stream entry missing body field", slog.String("entry_id", e.ID))
			_ = q.DeadLetter(context.Background(), &queue.Message{ID: e.ID},
				fmt.Errorf("%w: stream entry missing %s field", hookrelay.ErrMalformedMessage, bodyField))
			continue
		}
		msgs = append(msgs, &queue.Message{
			ID:         e.ID,
			Body:       []byte(body),
			Deliveries: deliveries,
		})
	}
	return msgs
}

// Ack acknowledges a message in the consumer group.
func (q *Queue) Ack(ctx context.Context, m *queue.Message) error {
	if err := q.client.XAck(ctx, q.stream, q.group, m.ID).Err(); err != nil {
		return fmt.Errorf("queue/redis: ack %s: %w", m.ID, err)
	}
	return nil
}

// DeadLetter moves a message onto the dead letter stream and acknowledges
// the original so it leaves the pending list.
func (q *Queue) DeadLetter(ctx context.Context, m *queue.Message, reason error) error {
	reasonText := ""
	if reason != nil {
		reasonText = reason.Error()
	}

	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: q.deadStream,
		Values: map[string]any{
			bodyField: m.Body,
			"origin":  m.ID,
			"error":   reasonText,
		},
	})
	pipe.XAck(ctx, q.stream, q.group, m.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue/redis: dead-letter %s: %w", m.ID, err)
	}
	return nil
}

// Close marks this source closed. The Redis client is owned by the caller
// and is not touched; pending entries stay in the group for the next
// consumer to adopt.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
