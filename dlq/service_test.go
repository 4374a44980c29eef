package dlq_test

import (
	"context"
	"errors"
	"testing"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/dlq"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/event"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/queue"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/store/memory"
)

func TestService_PushMalformed(t *testing.T) {
	s := memory.New()
	svc := dlq.NewService(s, 5)
	ctx := context.Background()

	m := &queue.Message{ID: "1700000000000-0", Body: []byte(`not json`)}
	cause := errors.New("missing correlationId")

	if err := svc.PushMalformed(ctx, m, cause); err != nil {
		t.Fatalf("PushMalformed: %v", err)
	}

	entries, err := s.ListDLQ(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 DLQ entry, got %d", len(entries))
	}

	e := entries[0]
	if e.Kind != dlq.KindMalformedMessage {
		t.Errorf("Kind = %q, want %q", e.Kind, dlq.KindMalformedMessage)
	}
	if e.MessageID != m.ID {
		t.Errorf("MessageID = %q, want %q", e.MessageID, m.ID)
	}
	if string(e.Body) != "not json" {
		t.Errorf("Body = %q, raw body not preserved", e.Body)
	}
	if e.Error != "missing correlationId" {
		t.Errorf("Error = %q, want cause message", e.Error)
	}
	if !e.DeliveryID.IsNil() {
		t.Error("malformed entry has a delivery ID; no attempt should exist")
	}
	if e.FailedAt.IsZero() || e.CreatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestService_PushExhausted(t *testing.T) {
	s := memory.New()
	svc := dlq.NewService(s, 5)
	ctx := context.Background()

	a := &delivery.Attempt{
		Entity:        hookrelay.NewEntity(),
		ID:            id.NewDeliveryID(),
		WebhookID:     id.NewWebhookID(),
		EventID:       id.NewEventID(),
		CorrelationID: "corr-42",
		EventType:     event.DocumentProcessed,
		Body:          []byte(`{"documentId":"d1"}`),
		Status:        delivery.StatusMaxRetriesExceeded,
		AttemptCount:  5,
		LastError:     "503 Service Unavailable",
	}

	if err := svc.PushExhausted(ctx, a); err != nil {
		t.Fatalf("PushExhausted: %v", err)
	}

	entries, err := s.ListDLQ(ctx, dlq.ListOpts{Kind: dlq.KindDeliveryExhausted})
	if err != nil {
		t.Fatalf("ListDLQ: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 DLQ entry, got %d", len(entries))
	}

	e := entries[0]
	if e.DeliveryID != a.ID {
		t.Errorf("DeliveryID = %v, want %v", e.DeliveryID, a.ID)
	}
	if e.WebhookID != a.WebhookID {
		t.Errorf("WebhookID = %v, want %v", e.WebhookID, a.WebhookID)
	}
	if e.CorrelationID != "corr-42" {
		t.Errorf("CorrelationID = %q, want corr-42", e.CorrelationID)
	}
	if e.EventType != string(event.DocumentProcessed) {
		t.Errorf("EventType = %q, want %q", e.EventType, event.DocumentProcessed)
	}
	if string(e.Body) != string(a.Body) {
		t.Error("canonical body not preserved")
	}
	if e.AttemptCount != 5 || e.MaxRetries != 5 {
		t.Errorf("counts = %d/%d, want 5/5", e.AttemptCount, e.MaxRetries)
	}
	if e.Error != "503 Service Unavailable" {
		t.Errorf("Error = %q, want last delivery error", e.Error)
	}
}

func TestService_DLQStore(t *testing.T) {
	s := memory.New()
	svc := dlq.NewService(s, 3)

	if svc.DLQStore() != dlq.Store(s) {
		t.Error("DLQStore did not return the underlying store")
	}
}
