package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	hookrelay "github.com/blitzy-public-samples/mca-solution-fku9fu-sub001"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/dlq"
	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/id"
)

const dlqColumns = `id, kind, message_id, delivery_id, webhook_id, correlation_id,
	event_type, body, error, attempt_count, max_retries, failed_at, created_at`

// PushDLQ adds an entry to the dead letter queue.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hookrelay_dlq (
			id, kind, message_id, delivery_id, webhook_id, correlation_id,
			event_type, body, error, attempt_count, max_retries, failed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		entry.ID.String(), string(entry.Kind), entry.MessageID,
		entry.DeliveryID, entry.WebhookID,
		entry.CorrelationID, entry.EventType, entry.Body, entry.Error,
		entry.AttemptCount, entry.MaxRetries, entry.FailedAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("hookrelay/postgres: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns DLQ entries matching the given options, newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	query := `SELECT ` + dlqColumns + ` FROM hookrelay_dlq WHERE TRUE`
	args := []any{}
	if opts.Kind != "" {
		args = append(args, string(opts.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	query += " ORDER BY failed_at DESC, id DESC"
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
		return nil, fmt.Errorf("hookrelay/postgres: list dlq: %w", err)
	}
	defer rows.Close()

	var result []*dlq.Entry
	for rows.Next() {
		e, scanErr := scanDLQEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hookrelay/postgres: iterate dlq: %w", err)
	}
	return result, nil
}

// GetDLQ retrieves a DLQ entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+dlqColumns+` FROM hookrelay_dlq WHERE id = $1`,
		entryID.String(),
	)

	e, err := scanDLQEntry(row)
	if err != nil {
		if isNoRows(err) {
			return nil, hookrelay.ErrDLQNotFound
		}
		return nil, fmt.Errorf("hookrelay/postgres: get dlq: %w", err)
	}
	return e, nil
}

// PurgeDLQ removes DLQ entries with FailedAt before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM hookrelay_dlq WHERE failed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("hookrelay/postgres: purge dlq: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountDLQ returns the number of entries matching the given kind.
func (s *Store) CountDLQ(ctx context.Context, kind dlq.Kind) (int64, error) {
	query := `SELECT COUNT(*) FROM hookrelay_dlq`
	args := []any{}
	if kind != "" {
		args = append(args, string(kind))
		query += " WHERE kind = $1"
	}

	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("hookrelay/postgres: count dlq: %w", err)
	}
	return n, nil
}

func scanDLQEntry(row pgx.Row) (*dlq.Entry, error) {
	var (
		e     dlq.Entry
		rawID string
		kind  string
	)
	err := row.Scan(&rawID, &kind, &e.MessageID, &e.DeliveryID, &e.WebhookID,
		&e.CorrelationID, &e.EventType, &e.Body, &e.Error,
		&e.AttemptCount, &e.MaxRetries, &e.FailedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	if e.ID, err = id.ParseDLQID(rawID); err != nil {
		return nil, fmt.Errorf("hookrelay/postgres: parse dlq id %q: %w", rawID, err)
	}
	e.Kind = dlq.Kind(kind)
	return &e, nil
}
