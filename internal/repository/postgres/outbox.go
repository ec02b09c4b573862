package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

const (
	outboxColumns = `id, event_type, payload, status, error_message, retry_count,
		created_at, processed_at, updated_at`

	insertOutboxEvent = `
		INSERT INTO outbox_events (` + outboxColumns + `)
		VALUES (:id, :event_type, :payload, :status, :error_message, :retry_count,
			:created_at, :processed_at, :updated_at)`

	// Rows locked by another worker's open transaction are skipped, not waited on.
	selectPendingOutbox = `
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2
		FOR UPDATE SKIP LOCKED`

	markOutboxProcessed = `
		UPDATE outbox_events
		SET status = $2, error_message = NULL, processed_at = $3, updated_at = $3
		WHERE id = $1`

	markOutboxFailed = `
		UPDATE outbox_events
		SET retry_count = retry_count + 1,
			error_message = $2,
			status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE status END,
			updated_at = $5
		WHERE id = $1`

	purgeProcessedOutbox = `
		DELETE FROM outbox_events
		WHERE status = $1 AND processed_at < $2`
)

var errEmptyPayload = errors.New("outbox event has no payload")

type outboxRepository struct {
	BaseRepository
	now func() time.Time
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{BaseRepository: base, now: time.Now}
}

// Create joins the caller's transaction when ctx carries one, so the event
// commits or rolls back with the state change it describes.
func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || len(event.Payload) == 0 {
		return errEmptyPayload
	}

	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.RetryCount = 0
	event.ErrorMessage = nil
	event.ProcessedAt = nil
	event.CreatedAt = r.now().UTC()
	event.UpdatedAt = event.CreatedAt

	if _, err := sqlx.NamedExecContext(ctx, r.conn(ctx), insertOutboxEvent, event); err != nil {
		return fmt.Errorf("insert outbox event %s: %w", event.EventType, err)
	}
	return nil
}

func (r *outboxRepository) ListPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	events := []*model.OutboxEvent{}
	if err := r.conn(ctx).SelectContext(ctx, &events, selectPendingOutbox, model.OutboxStatusPending, limit); err != nil {
		return nil, fmt.Errorf("list pending outbox events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := r.conn(ctx).ExecContext(ctx, markOutboxProcessed, id, model.OutboxStatusProcessed, r.now().UTC())
	if err != nil {
		return fmt.Errorf("mark outbox event %s processed: %w", id, err)
	}
	return affectedOne(res)
}

// MarkFailed records the failure; the event stays pending until it has
// failed maxRetries times.
func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, maxRetries int) error {
	res, err := r.conn(ctx).ExecContext(ctx, markOutboxFailed,
		id, reason, maxRetries, model.OutboxStatusFailed, r.now().UTC())
	if err != nil {
		return fmt.Errorf("mark outbox event %s failed: %w", id, err)
	}
	return affectedOne(res)
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.conn(ctx).ExecContext(ctx, purgeProcessedOutbox, model.OutboxStatusProcessed, before)
	if err != nil {
		return 0, fmt.Errorf("purge processed outbox events: %w", err)
	}
	return res.RowsAffected()
}
