package dlq

import (
	"context"
	"time"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
)

// ListOpts controls pagination and filtering for DLQ list queries.
type ListOpts struct {
	// Limit is the maximum number of entries to return. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
	// Kind filters by entry kind. Empty means all kinds.
	Kind Kind
}

// Store defines the persistence contract for the dead letter queue.
type Store interface {
	// PushDLQ adds an entry to the dead letter queue.
	PushDLQ(ctx context.Context, entry *Entry) error

	// ListDLQ returns DLQ entries matching the given options, newest first.
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// GetDLQ retrieves a DLQ entry by ID.
	GetDLQ(ctx context.Context, entryID id.DLQID) (*Entry, error)

	// PurgeDLQ removes DLQ entries with FailedAt before the given time.
	// Returns the number of entries removed.
	PurgeDLQ(ctx context.Context, before time.Time) (int64, error)

	// CountDLQ returns the number of entries matching the given kind.
	// An empty kind counts everything.
	CountDLQ(ctx context.Context, kind Kind) (int64, error)
}
