package dlq

import (
	"time"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
)

// Kind classifies why an entry landed in the dead letter queue.
type Kind string

const (
	// KindMalformedMessage marks a queue message that could not be decoded
	// into an event envelope. No delivery attempt exists for it.
	KindMalformedMessage Kind = "malformed_message"

	// KindDeliveryExhausted marks a delivery attempt that consumed its
	// full retry budget without a successful response.
	KindDeliveryExhausted Kind = "delivery_exhausted"
)

// Entry represents a message or delivery that has been taken out of the
// normal pipeline and parked for inspection.
type Entry struct {
	ID   id.DLQID `json:"id"`
	Kind Kind     `json:"kind"`

	// MessageID is the broker-assigned message identifier, when known.
	MessageID string `json:"message_id,omitempty"`

	// DeliveryID and WebhookID are set for delivery_exhausted entries.
	DeliveryID id.DeliveryID `json:"delivery_id,omitempty"`
	WebhookID  id.WebhookID  `json:"webhook_id,omitempty"`

	CorrelationID string `json:"correlation_id,omitempty"`
	EventType     string `json:"event_type,omitempty"`

	// Body is the raw message body for malformed entries, or the canonical
	// request body for exhausted deliveries.
	Body []byte `json:"body"`

	Error        string `json:"error"`
	AttemptCount int    `json:"attempt_count"`
	MaxRetries   int    `json:"max_retries"`

	FailedAt  time.Time `json:"failed_at"`
	CreatedAt time.Time `json:"created_at"`
}
