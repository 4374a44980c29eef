package webhook

import (
	"context"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/event"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
)

// ListOpts controls pagination for webhook list queries.
type ListOpts struct {
	// Limit is the maximum number of configs to return. Zero means no limit.
	Limit int
	// Offset is the number of configs to skip.
	Offset int
}

// Store defines the persistence contract for webhook configurations.
type Store interface {
	// CreateWebhook persists a new webhook configuration.
	CreateWebhook(ctx context.Context, c *Config) error

	// GetWebhook retrieves a webhook configuration by ID.
	GetWebhook(ctx context.Context, webhookID id.WebhookID) (*Config, error)

	// UpdateWebhook persists changes to an existing configuration.
	UpdateWebhook(ctx context.Context, c *Config) error

	// ListWebhooks returns all configurations in insertion order.
	ListWebhooks(ctx context.Context, opts ListOpts) ([]*Config, error)

	// FindActiveByEvent returns active configurations subscribed to the
	// given event type, in stable insertion order. Fan-out order is
	// therefore deterministic.
	FindActiveByEvent(ctx context.Context, t event.Type) ([]*Config, error)
}
