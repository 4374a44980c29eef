package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/delivery"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/event"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
)

const deliveryColumns = `id, webhook_id, event_id, correlation_id, event_type, body,
	status, attempt_count, last_status_code, last_error, next_retry_at,
	created_at, updated_at`

// CreateAttempt persists a new attempt in pending state.
func (s *Store) CreateAttempt(ctx context.Context, a *delivery.Attempt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hookrelay_deliveries (
			id, webhook_id, event_id, correlation_id, event_type, body,
			status, attempt_count, last_status_code, last_error, next_retry_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID.String(), a.WebhookID.String(), a.EventID.String(),
		a.CorrelationID, string(a.EventType), a.Body,
		string(a.Status), a.AttemptCount, a.LastStatusCode, a.LastError,
		a.NextRetryAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return hookrelay.ErrAttemptExists
		}
		return fmt.Errorf("hookrelay/postgres: create attempt: %w", err)
	}
	return nil
}

// GetAttempt retrieves an attempt by ID.
func (s *Store) GetAttempt(ctx context.Context, deliveryID id.DeliveryID) (*delivery.Attempt, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM hookrelay_deliveries WHERE id = $1`,
		deliveryID.String(),
	)

	a, err := scanAttempt(row)
	if err != nil {
		if isNoRows(err) {
			return nil, hookrelay.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("hookrelay/postgres: get attempt: %w", err)
	}
	return a, nil
}

// UpdateAttempt persists changes to an existing attempt as a single
// atomic row write.
func (s *Store) UpdateAttempt(ctx context.Context, a *delivery.Attempt) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE hookrelay_deliveries SET
			status = $2, attempt_count = $3, last_status_code = $4,
			last_error = $5, next_retry_at = $6, body = $7,
			updated_at = NOW()
		WHERE id = $1`,
		a.ID.String(), string(a.Status), a.AttemptCount, a.LastStatusCode,
		a.LastError, a.NextRetryAt, a.Body,
	)
	if err != nil {
		return fmt.Errorf("hookrelay/postgres: update attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return hookrelay.ErrAttemptNotFound
	}
	return nil
}

// ClaimDueRetries atomically claims up to limit retry-scheduled attempts
// whose NextRetryAt has passed. Uses SELECT FOR UPDATE SKIP LOCKED so
// concurrent sweepers never claim the same attempt; the claim pushes
// NextRetryAt forward by lease.
func (s *Store) ClaimDueRetries(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*delivery.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		WITH claimed AS (
			UPDATE hookrelay_deliveries
			SET next_retry_at = $2, updated_at = NOW()
			WHERE id IN (
				SELECT id FROM hookrelay_deliveries
				WHERE status = 'RETRY_SCHEDULED'
				  AND next_retry_at <= $1
				ORDER BY next_retry_at ASC
				FOR UPDATE SKIP LOCKED
				LIMIT $3
			)
			RETURNING `+deliveryColumns+`
		)
		SELECT * FROM claimed ORDER BY id ASC`,
		now, now.Add(lease), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("hookrelay/postgres: claim due retries: %w", err)
	}
	defer rows.Close()

	return collectAttempts(rows)
}

// ListAttemptsByWebhook returns attempts for a webhook, newest first.
func (s *Store) ListAttemptsByWebhook(ctx context.Context, webhookID id.WebhookID, opts delivery.ListOpts) ([]*delivery.Attempt, error) {
	query := `SELECT ` + deliveryColumns + `
		FROM hookrelay_deliveries
		WHERE webhook_id = $1
		ORDER BY created_at DESC, id DESC`
	args := []any{webhookID.String()}
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
		return nil, fmt.Errorf("hookrelay/postgres: list attempts: %w", err)
	}
	defer rows.Close()

	return collectAttempts(rows)
}

// CountAttempts returns the number of attempts matching the given options.
func (s *Store) CountAttempts(ctx context.Context, opts delivery.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM hookrelay_deliveries WHERE TRUE`
	args := []any{}
	if !opts.WebhookID.IsNil() {
		args = append(args, opts.WebhookID.String())
		query += fmt.Sprintf(" AND webhook_id = $%d", len(args))
	}
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("hookrelay/postgres: count attempts: %w", err)
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Scan helpers
// ──────────────────────────────────────────────────

func scanAttempt(row pgx.Row) (*delivery.Attempt, error) {
	var (
		a                       delivery.Attempt
		rawID, rawWhID, rawEvID string
		status, eventType       string
	)
	err := row.Scan(&rawID, &rawWhID, &rawEvID, &a.CorrelationID, &eventType,
		&a.Body, &status, &a.AttemptCount, &a.LastStatusCode, &a.LastError,
		&a.NextRetryAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if a.ID, err = id.ParseDeliveryID(rawID); err != nil {
		return nil, fmt.Errorf("hookrelay/postgres: parse delivery id %q: %w", rawID, err)
	}
	if a.WebhookID, err = id.ParseWebhookID(rawWhID); err != nil {
		return nil, fmt.Errorf("hookrelay/postgres: parse webhook id %q: %w", rawWhID, err)
	}
	if a.EventID, err = id.ParseEventID(rawEvID); err != nil {
		return nil, fmt.Errorf("hookrelay/postgres: parse event id %q: %w", rawEvID, err)
	}
	a.Status = delivery.Status(status)
	a.EventType = event.Type(eventType)
	return &a, nil
}

func collectAttempts(rows pgx.Rows) ([]*delivery.Attempt, error) {
	var result []*delivery.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hookrelay/postgres: iterate attempts: %w", err)
	}
	return result, nil
}
