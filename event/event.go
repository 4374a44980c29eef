// Package event defines the notification event envelope consumed from the
// durable queue, and the structural validation applied at the queue boundary.
// Events are immutable once decoded; they are produced by upstream services
// and consumed at-least-once.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
)

// Type identifies the kind of domain event carried by a notification.
type Type string

// Known event types published by the upstream application and document
// services.
const (
	ApplicationReceived Type = "APPLICATION_RECEIVED"
	ApplicationUpdated  Type = "APPLICATION_UPDATED"
	DocumentProcessed   Type = "DOCUMENT_PROCESSED"
	DocumentFailed      Type = "DOCUMENT_FAILED"
)

// Types lists all known event types in a stable order.
func Types() []Type {
	return []Type{ApplicationReceived, ApplicationUpdated, DocumentProcessed, DocumentFailed}
}

// Valid reports whether t is a known event type.
func (t Type) Valid() bool {
	switch t {
	case ApplicationReceived, ApplicationUpdated, DocumentProcessed, DocumentFailed:
		return true
	default:
		return false
	}
}

// Event is a notification event consumed from the queue. Payload is an
// opaque structured value; hookrelay performs no schema validation beyond
// the structural checks in Decode.
type Event struct {
	ID            id.EventID      `json:"id"`
	CorrelationID string          `json:"correlation_id"`
	Type          Type            `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	ProducedAt    time.Time       `json:"produced_at"`
}

// envelope is the wire shape of a queue message.
type envelope struct {
	CorrelationID string          `json:"correlationId"`
	EventType     string          `json:"eventType"`
	Payload       json.RawMessage `json:"payload"`
	ProducedAt    time.Time       `json:"producedAt,omitempty"`
}

// Decode parses a raw queue message into an Event and applies structural
// validation. A message missing correlationId, eventType, or payload is
// malformed; the error wraps hookrelay.ErrMalformedMessage so callers can
// route it to the dead letter path without creating a delivery attempt.
//
// An unknown event type is not malformed: it decodes cleanly and simply
// matches no webhook subscriptions.
func Decode(data []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", hookrelay.ErrMalformedMessage, err)
	}

	if env.CorrelationID == "" {
		return nil, fmt.Errorf("%w: missing correlationId", hookrelay.ErrMalformedMessage)
	}
	if env.EventType == "" {
		return nil, fmt.Errorf("%w: missing eventType", hookrelay.ErrMalformedMessage)
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil, fmt.Errorf("%w: missing payload", hookrelay.ErrMalformedMessage)
	}

	producedAt := env.ProducedAt
	if producedAt.IsZero() {
		producedAt = time.Now().UTC()
	}

	return &Event{
		ID:            id.NewEventID(),
		CorrelationID: env.CorrelationID,
		Type:          Type(env.EventType),
		Payload:       env.Payload,
		ProducedAt:    producedAt,
	}, nil
}

// Encode serializes an Event into the queue wire format. It is the inverse
// of Decode and is used by producers and tests.
func Encode(ev *Event) ([]byte, error) {
	return json.Marshal(envelope{
		CorrelationID: ev.CorrelationID,
		EventType:     string(ev.Type),
		Payload:       ev.Payload,
		ProducedAt:    ev.ProducedAt,
	})
}

// CanonicalBody returns the canonical JSON byte string of the event payload.
// Object keys are sorted and insignificant whitespace is removed, so the
// same payload always signs to the same HMAC regardless of how the producer
// formatted it.
func (e *Event) CanonicalBody() ([]byte, error) {
	// Decode with UseNumber so numeric values re-marshal verbatim.
	// A plain any round-trip goes through float64 and corrupts integers
	// above 2^53.
	dec := json.NewDecoder(bytes.NewReader(e.Payload))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("event: canonicalize payload: %w", err)
	}

	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("event: canonicalize payload: %w", err)
	}
	return body, nil
}
