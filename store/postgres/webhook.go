package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/event"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/webhook"
)

const webhookColumns = `id, url, secret, events, active, created_at, updated_at`

// CreateWebhook persists a new webhook configuration.
func (s *Store) CreateWebhook(ctx context.Context, c *webhook.Config) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hookrelay_webhooks (id, url, secret, events, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID.String(), c.URL, c.Secret, eventTypeStrings(c.Events), c.Active,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return hookrelay.ErrWebhookExists
		}
		return fmt.Errorf("hookrelay/postgres: create webhook: %w", err)
	}
	return nil
}

// GetWebhook retrieves a webhook configuration by ID.
func (s *Store) GetWebhook(ctx context.Context, webhookID id.WebhookID) (*webhook.Config, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+webhookColumns+` FROM hookrelay_webhooks WHERE id = $1`,
		webhookID.String(),
	)

	c, err := scanWebhook(row)
	if err != nil {
		if isNoRows(err) {
			return nil, hookrelay.ErrWebhookNotFound
		}
		return nil, fmt.Errorf("hookrelay/postgres: get webhook: %w", err)
	}
	return c, nil
}

// UpdateWebhook persists changes to an existing configuration.
func (s *Store) UpdateWebhook(ctx context.Context, c *webhook.Config) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE hookrelay_webhooks SET
			url = $2, secret = $3, events = $4, active = $5, updated_at = NOW()
		WHERE id = $1`,
		c.ID.String(), c.URL, c.Secret, eventTypeStrings(c.Events), c.Active,
	)
	if err != nil {
		return fmt.Errorf("hookrelay/postgres: update webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return hookrelay.ErrWebhookNotFound
	}
	return nil
}

// ListWebhooks returns all configurations in insertion order. The TypeID
// primary key is K-sortable, so ordering by id is creation order.
func (s *Store) ListWebhooks(ctx context.Context, opts webhook.ListOpts) ([]*webhook.Config, error) {
	query := `SELECT ` + webhookColumns + ` FROM hookrelay_webhooks ORDER BY id ASC`
	args := []any{}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("hookrelay/postgres: list webhooks: %w", err)
	}
	defer rows.Close()

	return collectWebhooks(rows)
}

// FindActiveByEvent returns active configurations subscribed to the given
// event type, in insertion order.
func (s *Store) FindActiveByEvent(ctx context.Context, t event.Type) ([]*webhook.Config, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+webhookColumns+`
		FROM hookrelay_webhooks
		WHERE active AND $1 = ANY(events)
		ORDER BY id ASC`,
		string(t),
	)
	if err != nil {
		return nil, fmt.Errorf("hookrelay/postgres: find active by event: %w", err)
	}
	defer rows.Close()

	return collectWebhooks(rows)
}

// ──────────────────────────────────────────────────
// Scan helpers
// ──────────────────────────────────────────────────

func scanWebhook(row pgx.Row) (*webhook.Config, error) {
	var (
		c      webhook.Config
		rawID  string
		events []string
	)
	err := row.Scan(&rawID, &c.URL, &c.Secret, &events, &c.Active,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	parsed, err := id.ParseWebhookID(rawID)
	if err != nil {
		return nil, fmt.Errorf("hookrelay/postgres: parse webhook id %q: %w", rawID, err)
	}
	c.ID = parsed

	c.Events = make([]event.Type, len(events))
	for i, e := range events {
		c.Events[i] = event.Type(e)
	}
	return &c, nil
}

func collectWebhooks(rows pgx.Rows) ([]*webhook.Config, error) {
	var result []*webhook.Config
	for rows.Next() {
		c, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hookrelay/postgres: iterate webhooks: %w", err)
	}
	return result, nil
}

func eventTypeStrings(types []event.Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
