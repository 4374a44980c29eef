package dlq

import (
	"context"
	"time"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/queue"
)

// Service provides high-level DLQ operations over a Store.
type Service struct {
	store      Store
	maxRetries int
}

// NewService creates a DLQ service. maxRetries is recorded on exhausted
// entries so an operator can see the budget that was consumed.
func NewService(store Store, maxRetries int) *Service {
	return &Service{store: store, maxRetries: maxRetries}
}

// PushMalformed parks a queue message that failed envelope decoding.
// The raw body is preserved for inspection; no delivery attempt is
// created for malformed messages.
func (s *Service) PushMalformed(ctx context.Context, m *queue.Message, cause error) error {
	now := time.Now().UTC()
	entry := &Entry{
		ID:        id.NewDLQID(),
		Kind:      KindMalformedMessage,
		MessageID: m.ID,
		Body:      m.Body,
		Error:     cause.Error(),
		FailedAt:  now,
		CreatedAt: now,
	}
	return s.store.PushDLQ(ctx, entry)
}

// PushExhausted parks a delivery attempt that has consumed its retry
// budget. The canonical request body and last error are preserved so the
// delivery can be replayed manually.
func (s *Service) PushExhausted(ctx context.Context, a *delivery.Attempt) error {
	now := time.Now().UTC()
	entry := &Entry{
		ID:            id.NewDLQID(),
		Kind:          KindDeliveryExhausted,
		DeliveryID:    a.ID,
		WebhookID:     a.WebhookID,
		CorrelationID: a.CorrelationID,
		EventType:     string(a.EventType),
		Body:          a.Body,
		Error:         a.LastError,
		AttemptCount:  a.AttemptCount,
		MaxRetries:    s.maxRetries,
		FailedAt:      now,
		CreatedAt:     now,
	}
	return s.store.PushDLQ(ctx, entry)
}

// DLQStore returns the underlying DLQ store for direct access to List,
// Get, Purge, and Count operations.
func (s *Service) DLQStore() Store {
	return s.store
}
