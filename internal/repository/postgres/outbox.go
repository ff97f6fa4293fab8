package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-api/internal/model"
	"github.com/clinicore/scheduling-api/internal/repository"
)

// claimTx unwraps a claim transaction created by BeginTx.
func claimTx(tx repository.Tx) *sql.Tx {
	return tx.(*sql.Tx)
}

// Create inserts an outbox row. Called inside the same transaction as
// the aggregate write, so the event becomes visible if and only if the
// state change commits.
func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, aggregate_id, event_type, payload, status,
			retry_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt

	_, err := r.ext(ctx).ExecContext(ctx, query,
		event.ID,
		event.AggregateID,
		event.EventType,
		event.Payload,
		event.Status,
		event.RetryCount,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) BeginTx(ctx context.Context) (repository.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

// GetPendingEventsWithLock claims a batch of dispatchable rows. The
// row locks hold until tx commits, so concurrent dispatchers skip
// each other's batches.
func (r *outboxRepository) GetPendingEventsWithLock(ctx context.Context, tx repository.Tx, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, aggregate_id, event_type, payload, status,
			   error_message, retry_count, retry_at,
			   created_at, updated_at, processed_at
		FROM outbox_events
		WHERE status IN ('pending', 'retry')
		AND (retry_at IS NULL OR retry_at <= NOW())
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := claimTx(tx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to lock pending events: %w", err)
	}
	defer rows.Close()

	var events []*model.OutboxEvent
	for rows.Next() {
		var ev model.OutboxEvent
		if err := rows.Scan(
			&ev.ID, &ev.AggregateID, &ev.EventType, &ev.Payload, &ev.Status,
			&ev.ErrorMessage, &ev.RetryCount, &ev.RetryAt,
			&ev.CreatedAt, &ev.UpdatedAt, &ev.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (r *outboxRepository) UpdateStatusTx(ctx context.Context, tx repository.Tx, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = $1,
			error_message = $2,
			retry_at = $3,
			processed_at = CASE WHEN $1 = 'processed' THEN NOW() ELSE processed_at END,
			updated_at = NOW()
		WHERE id = $4
	`
	_, err := claimTx(tx).ExecContext(ctx, query, status, errorMessage, retryAt, id)
	return err
}

func (r *outboxRepository) MarkRetryTx(ctx context.Context, tx repository.Tx, id uuid.UUID, errorMessage string, retryAt time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = 'retry',
			error_message = $1,
			retry_count = retry_count + 1,
			retry_at = $2,
			updated_at = NOW()
		WHERE id = $3
	`
	_, err := claimTx(tx).ExecContext(ctx, query, errorMessage, retryAt.UTC(), id)
	return err
}

// MoveToDeadLetterTx copies an exhausted event into the dead-letter
// table and removes it from the active outbox.
func (r *outboxRepository) MoveToDeadLetterTx(ctx context.Context, tx repository.Tx, event *model.OutboxEvent, errorMessage string) error {
	insert := `
		INSERT INTO outbox_events_deadletter (
			event_id, aggregate_id, event_type, payload,
			error_message, retry_count, created_at, dead_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	if _, err := claimTx(tx).ExecContext(ctx, insert,
		event.ID, event.AggregateID, event.EventType, event.Payload,
		errorMessage, event.RetryCount, event.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}

	if _, err := claimTx(tx).ExecContext(ctx, `DELETE FROM outbox_events WHERE id = $1`, event.ID); err != nil {
		return fmt.Errorf("failed to remove dead event: %w", err)
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = 'processed'
		AND processed_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return result.RowsAffected()
}
