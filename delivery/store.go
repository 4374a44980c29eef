package delivery

import (
	"context"
	"time"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
)

// ListOpts controls pagination for attempt list queries.
type ListOpts struct {
	// Limit is the maximum number of attempts to return. Zero means no limit.
	Limit int
	// Offset is the number of attempts to skip.
	Offset int
}

// CountOpts controls filtering for attempt count queries.
type CountOpts struct {
	// WebhookID filters by webhook. The Nil ID means all webhooks.
	WebhookID id.WebhookID
	// Status filters by status. Empty means all statuses.
	Status Status
}

// Store defines the persistence contract for the delivery ledger.
//
// The ledger is the only state shared across concurrent workers. Every
// read-modify-write of an attempt row must be atomic per delivery ID so
// two workers can never race on the same retry.
type Store interface {
	// CreateAttempt persists a new attempt in pending state.
	CreateAttempt(ctx context.Context, a *Attempt) error

	// GetAttempt retrieves an attempt by ID.
	GetAttempt(ctx context.Context, deliveryID id.DeliveryID) (*Attempt, error)

	// UpdateAttempt persists changes to an existing attempt as a single
	// atomic write.
	UpdateAttempt(ctx context.Context, a *Attempt) error

	// ClaimDueRetries atomically claims up to limit RETRY_SCHEDULED
	// attempts whose NextRetryAt is at or before now. Claiming pushes
	// NextRetryAt forward by lease, so a claimed attempt is invisible to
	// other sweepers until the lease expires. If the claimant crashes
	// before recording an outcome, the attempt simply becomes due again —
	// crash recovery is re-derived entirely from ledger state.
	//
	// PENDING rows are never claimed: a row orphaned in PENDING by a
	// crash before its first outcome write is superseded by the broker
	// redelivering the unacked message, which creates a fresh row.
	ClaimDueRetries(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*Attempt, error)

	// ListAttemptsByWebhook returns attempts for a webhook, newest first.
	ListAttemptsByWebhook(ctx context.Context, webhookID id.WebhookID, opts ListOpts) ([]*Attempt, error)

	// CountAttempts returns the number of attempts matching the options.
	CountAttempts(ctx context.Context, opts CountOpts) (int64, error)
}
