package webhook

import (
	"context"
	"time"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/event"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
)

// Service provides high-level registry operations over a Store. It owns
// validation and defaulting; callers never write configs to the store
// directly.
type Service struct {
	store Store
}

// NewService creates a registry service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create validates the configuration, assigns identity and timestamps, and
// persists it in active state. A configuration that fails validation is
// rejected synchronously with a *hookrelay.ValidationError and never stored.
func (s *Service) Create(ctx context.Context, c *Config) error {
	if err := c.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if c.ID.IsNil() {
		c.ID = id.NewWebhookID()
	}
	c.Active = true
	c.CreatedAt = now
	c.UpdatedAt = now

	return s.store.CreateWebhook(ctx, c)
}

// Get retrieves a webhook configuration by ID.
func (s *Service) Get(ctx context.Context, webhookID id.WebhookID) (*Config, error) {
	return s.store.GetWebhook(ctx, webhookID)
}

// List returns all webhook configurations in insertion order.
func (s *Service) List(ctx context.Context, opts ListOpts) ([]*Config, error) {
	return s.store.ListWebhooks(ctx, opts)
}

// Deactivate performs the logical delete: active=false, updatedAt=now.
// Scheduled retries for this webhook are skipped at delivery time, not
// cancelled here. Returns hookrelay.ErrWebhookNotFound for unknown IDs.
func (s *Service) Deactivate(ctx context.Context, webhookID id.WebhookID) (*Config, error) {
	c, err := s.store.GetWebhook(ctx, webhookID)
	if err != nil {
		return nil, err
	}

	c.Active = false
	c.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateWebhook(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// FindActiveByEvent returns active configurations subscribed to the given
// event type in stable insertion order.
func (s *Service) FindActiveByEvent(ctx context.Context, t event.Type) ([]*Config, error) {
	return s.store.FindActiveByEvent(ctx, t)
}
