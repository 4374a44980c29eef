// Package client provides the producer-side API for publishing notification
// events onto the durable queue consumed by the relay.
//
// Usage:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	c := client.New(redisqueue.New(rdb))
//
//	msgID, err := c.Publish(ctx, event.ApplicationReceived, corrID, payload)
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/event"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
)

// Publisher is the queue-side contract the client publishes through.
// queue/redis.Queue implements it.
type Publisher interface {
	Publish(ctx context.Context, body []byte) (string, error)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client publishes notification events in the envelope format the relay
// consumes. It assigns event identity and produced-at timestamps; delivery
// fan-out and signing happen relay-side.
type Client struct {
	sink   Publisher
	logger *slog.Logger
}

// New creates a producer client over the given queue.
func New(sink Publisher, opts ...Option) *Client {
	c := &Client{sink: sink, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish marshals payload, wraps it in the event envelope, and appends it
// to the queue. It returns the broker-assigned message ID.
//
// The payload must marshal to a non-null JSON value and the correlation ID
// must be non-empty; the relay dead-letters envelopes violating either.
func (c *Client) Publish(ctx context.Context, t event.Type, correlationID string, payload any) (string, error) {
	if correlationID == "" {
		return "", fmt.Errorf("client: empty correlation id")
	}
	if !t.Valid() {
		return "", fmt.Errorf("client: unknown event type %q", t)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("client: marshal payload: %w", err)
	}
	if string(raw) == "null" {
		return "", fmt.Errorf("client: payload must not be null")
	}

	ev := &event.Event{
		ID:            id.NewEventID(),
		CorrelationID: correlationID,
		Type:          t,
		Payload:       raw,
		ProducedAt:    time.Now().UTC(),
	}
	body, err := event.Encode(ev)
	if err != nil {
		return "", fmt.Errorf("client: encode event: %w", err)
	}

	msgID, err := c.sink.Publish(ctx, body)
	if err != nil {
		return "", fmt.Errorf("client: publish: %w", err)
	}
	c.logger.Debug("event published",
		"message_id", msgID,
		"event_type", t,
		"correlation_id", correlationID)
	return msgID, nil
}
