package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/dlq"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/event"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/webhook"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ webhook.Store  = (*Store)(nil)
	_ delivery.Store = (*Store)(nil)
	_ dlq.Store      = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	webhooks map[string]*webhook.Config
	// webhookOrder preserves insertion order so FindActiveByEvent fans out
	// deterministically.
	webhookOrder []string

	attempts map[string]*delivery.Attempt
	dlqs     map[string]*dlq.Entry
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		webhooks: make(map[string]*webhook.Config),
		attempts: make(map[string]*delivery.Attempt),
		dlqs:     make(map[string]*dlq.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Webhook Store
// ──────────────────────────────────────────────────

// CreateWebhook persists a new webhook configuration.
func (m *Store) CreateWebhook(_ context.Context, c *webhook.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := c.ID.String()
	if _, exists := m.webhooks[key]; exists {
		return hookrelay.ErrWebhookExists
	}
	cp := *c
	cp.Events = append([]event.Type(nil), c.Events...)
	m.webhooks[key] = &cp
	m.webhookOrder = append(m.webhookOrder, key)
	return nil
}

// GetWebhook retrieves a webhook configuration by ID.
func (m *Store) GetWebhook(_ context.Context, webhookID id.WebhookID) (*webhook.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.webhooks[webhookID.String()]
	if !ok {
		return nil, hookrelay.ErrWebhookNotFound
	}
	return copyWebhook(c), nil
}

// UpdateWebhook persists changes to an existing configuration.
func (m *Store) UpdateWebhook(_ context.Context, c *webhook.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := c.ID.String()
	if _, ok := m.webhooks[key]; !ok {
		return hookrelay.ErrWebhookNotFound
	}
	cp := *c
	cp.Events = append([]event.Type(nil), c.Events...)
	cp.UpdatedAt = time.Now().UTC()
	m.webhooks[key] = &cp
	return nil
}

// ListWebhooks returns all configurations in insertion order.
func (m *Store) ListWebhooks(_ context.Context, opts webhook.ListOpts) ([]*webhook.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*webhook.Config, 0, len(m.webhookOrder))
	for _, key := range m.webhookOrder {
		result = append(result, copyWebhook(m.webhooks[key]))
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

// FindActiveByEvent returns active configurations subscribed to the given
// event type, in insertion order.
func (m *Store) FindActiveByEvent(_ context.Context, t event.Type) ([]*webhook.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*webhook.Config
	for _, key := range m.webhookOrder {
		c := m.webhooks[key]
		if !c.Active || !c.SubscribedTo(t) {
			continue
		}
		result = append(result, copyWebhook(c))
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Delivery Store
// ──────────────────────────────────────────────────

// CreateAttempt persists a new attempt in pending state.
func (m *Store) CreateAttempt(_ context.Context, a *delivery.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := a.ID.String()
	if _, exists := m.attempts[key]; exists {
		return hookrelay.ErrAttemptExists
	}
	cp := *a
	m.attempts[key] = &cp
	return nil
}

// GetAttempt retrieves an attempt by ID.
func (m *Store) GetAttempt(_ context.Context, deliveryID id.DeliveryID) (*delivery.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.attempts[deliveryID.String()]
	if !ok {
		return nil, hookrelay.ErrAttemptNotFound
	}
	cp := *a
	return &cp, nil
}

// UpdateAttempt persists changes to an existing attempt.
func (m *Store) UpdateAttempt(_ context.Context, a *delivery.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := a.ID.String()
	if _, ok := m.attempts[key]; !ok {
		return hookrelay.ErrAttemptNotFound
	}
	cp := *a
	cp.UpdatedAt = time.Now().UTC()
	m.attempts[key] = &cp
	return nil
}

// ClaimDueRetries atomically claims retry-scheduled attempts whose
// NextRetryAt has passed, pushing NextRetryAt forward by lease so other
// sweepers skip them until the lease expires.
func (m *Store) ClaimDueRetries(_ context.Context, now time.Time, lease time.Duration, limit int) ([]*delivery.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := make([]*delivery.Attempt, 0, len(m.attempts))
	for _, a := range m.attempts {
		if a.Status != delivery.StatusRetryScheduled {
			continue
		}
		if a.NextRetryAt == nil || a.NextRetryAt.After(now) {
			continue
		}
		candidates = append(candidates, a)
	}

	// Oldest due first.
	sort.Slice(candidates, func(i, k int) bool {
		return candidates[i].NextRetryAt.Before(*candidates[k].NextRetryAt)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]*delivery.Attempt, len(candidates))
	for i, a := range candidates {
		leased := now.Add(lease)
		a.NextRetryAt = &leased
		a.UpdatedAt = now
		// Return a copy so callers can mutate without racing with the store.
		cp := *a
		result[i] = &cp
	}

	return result, nil
}

// ListAttemptsByWebhook returns attempts for a webhook, newest first.
func (m *Store) ListAttemptsByWebhook(_ context.Context, webhookID id.WebhookID, opts delivery.ListOpts) ([]*delivery.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*delivery.Attempt, 0)
	for _, a := range m.attempts {
		if a.WebhookID != webhookID {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		if !result[i].CreatedAt.Equal(result[k].CreatedAt) {
			return result[i].CreatedAt.After(result[k].CreatedAt)
		}
		// CreatedAt ties are broken by the K-sortable ID.
		return result[i].ID.String() > result[k].ID.String()
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// CountAttempts returns the number of attempts matching the given options.
func (m *Store) CountAttempts(_ context.Context, opts delivery.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, a := range m.attempts {
		if !opts.WebhookID.IsNil() && a.WebhookID != opts.WebhookID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		n++
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// DLQ Store
// ──────────────────────────────────────────────────

// PushDLQ adds an entry to the dead letter queue.
func (m *Store) PushDLQ(_ context.Context, entry *dlq.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	m.dlqs[entry.ID.String()] = &cp
	return nil
}

// ListDLQ returns DLQ entries matching the given options, newest first.
func (m *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(m.dlqs))
	for _, e := range m.dlqs {
		if opts.Kind != "" && e.Kind != opts.Kind {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		if !result[i].FailedAt.Equal(result[k].FailedAt) {
			return result[i].FailedAt.After(result[k].FailedAt)
		}
		return result[i].ID.String() > result[k].ID.String()
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// GetDLQ retrieves a DLQ entry by ID.
func (m *Store) GetDLQ(_ context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return nil, hookrelay.ErrDLQNotFound
	}
	cp := *e
	return &cp, nil
}

// PurgeDLQ removes DLQ entries with FailedAt before the given time.
func (m *Store) PurgeDLQ(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for key, e := range m.dlqs {
		if e.FailedAt.Before(before) {
			delete(m.dlqs, key)
			removed++
		}
	}
	return removed, nil
}

// CountDLQ returns the number of entries matching the given kind.
func (m *Store) CountDLQ(_ context.Context, kind dlq.Kind) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, e := range m.dlqs {
		if kind != "" && e.Kind != kind {
			continue
		}
		n++
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyWebhook(c *webhook.Config) *webhook.Config {
	cp := *c
	cp.Events = append([]event.Type(nil), c.Events...)
	return &cp
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
