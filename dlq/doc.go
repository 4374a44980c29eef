// Package dlq provides the dead letter queue for messages and deliveries
// that have been taken out of the normal pipeline.
//
// Two kinds of entries exist:
//
//   - malformed_message: a queue message whose body could not be decoded
//     into an event envelope. It is parked immediately, without creating a
//     delivery attempt, and the broker message is acknowledged so it is
//     not redelivered forever.
//   - delivery_exhausted: a delivery attempt that consumed its full retry
//     budget (or failed with a non-retryable response). The canonical
//     request body, final error, and attempt count are preserved.
//
// # Service
//
// [Service] wraps the DLQ store with the two push paths:
//
//	svc := dlq.NewService(store, maxRetries)
//
//	// Called by the consumer when envelope decoding fails.
//	svc.PushMalformed(ctx, msg, err)
//
//	// Called by the delivery engine on terminal failure.
//	svc.PushExhausted(ctx, attempt)
//
// Inspection goes through the store directly:
//
//	svc.DLQStore().ListDLQ(ctx, dlq.ListOpts{Limit: 50})
//	svc.DLQStore().CountDLQ(ctx, dlq.KindDeliveryExhausted)
//
// # Admin API
//
// The DLQ is exposed via the HTTP admin API:
//   - GET /v1/dlq        — list entries
//   - GET /v1/dlq/count  — entry count
package dlq
