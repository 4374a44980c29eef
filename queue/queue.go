// Package queue defines the consumer-side contract for the durable event
// queue. Hookrelay does not implement queue storage; it consumes an
// externally durable queue through the Source interface.
//
// A Source is owned by exactly one consumer lifecycle object with explicit
// open/close — it is never ambient global state. Messages stay unacknowledged
// until the consumer has durably recorded a delivery outcome; on crash the
// broker redelivers them, which gives at-least-once semantics.
package queue

import "context"

// Message is a raw queue message plus the broker metadata needed for
// acknowledgement.
type Message struct {
	// ID is the broker-assigned message identifier.
	ID string

	// Body is the raw message payload.
	Body []byte

	// Deliveries counts how many times the broker has handed this message
	// to a consumer, including the current delivery. Values above 1
	// indicate redelivery after a crash or an unacknowledged handoff.
	Deliveries int
}

// Source is a durable queue consumed by the relay.
//
// Fetch blocks until at least one message is available, the context is
// cancelled, or the source is closed. It returns at most n messages; the
// caller holds them unacknowledged until Ack or DeadLetter, so the number
// of messages fetched and not yet resolved bounds the prefetch window.
type Source interface {
	// Fetch returns up to n messages. A closed source returns
	// hookrelay.ErrQueueClosed; any other error is a broker failure the
	// consumer should retry with backoff.
	Fetch(ctx context.Context, n int) ([]*Message, error)

	// Ack acknowledges a message, removing it from the queue permanently.
	Ack(ctx context.Context, m *Message) error

	// DeadLetter removes a message from normal flow and parks it for
	// manual inspection, recording the reason.
	DeadLetter(ctx context.Context, m *Message, reason error) error

	// Close releases the source. In-flight unacknowledged messages are
	// redelivered by the broker to a future consumer.
	Close() error
}
