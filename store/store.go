// Package store defines the aggregate persistence interface. Each subsystem
// (webhook, delivery, dlq) defines its own store interface; the composite
// Store composes them all. Backends: Postgres and Memory.
package store

import (
	"context"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/dlq"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/webhook"
)

// Store is the aggregate persistence interface. A single backend
// (postgres, memory) implements all subsystem stores, so the registry,
// the delivery ledger, and the dead letter queue share one transaction
// domain.
type Store interface {
	webhook.Store
	delivery.Store
	dlq.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
