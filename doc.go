// Package hookrelay provides an asynchronous webhook notification delivery
// engine. It consumes domain events from a durable queue, fans them out to
// registered HTTPS endpoints with HMAC-signed payloads, and drives a
// retry/backoff state machine with a dead-letter terminal path under
// at-least-once delivery semantics.
//
// Hookrelay is designed as a library, not a service. Import it, configure a
// store and a queue source, and start the relay:
//
//	r, err := relay.New(
//	    relay.WithStore(pgStore),
//	    relay.WithSource(redisQueue),
//	)
//
// # Architecture
//
// Hookrelay follows a composable store pattern where each subsystem
// (webhook registry, delivery ledger, dead letter queue) defines its own
// store interface. A single backend implements all of them.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package hookrelay
