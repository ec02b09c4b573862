package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
)

type outboxRepository struct {
	s *Store
}

func NewOutboxRepository(s *Store) repository.OutboxRepository {
	return &outboxRepository{s: s}
}

func (r *outboxRepository) Create(_ context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	event.ID = uuid.New()
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	event.Status = model.OutboxStatusPending
	r.s.outbox.Set(event.ID.String(), *event, cache.NoExpiration)
	return nil
}

func (r *outboxRepository) ListPending(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	pending := values(r.s.outbox,
		func(e *model.OutboxEvent) bool { return e.Status == model.OutboxStatusPending },
		func(a, b *model.OutboxEvent) bool { return a.CreatedAt.Before(b.CreatedAt) },
	)
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *outboxRepository) MarkProcessed(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(e *model.OutboxEvent) {
		now := time.Now()
		e.Status = model.OutboxStatusProcessed
		e.ErrorMessage = nil
		e.ProcessedAt = &now
	})
}

func (r *outboxRepository) MarkFailed(_ context.Context, id uuid.UUID, reason string, maxRetries int) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.RetryCount++
		e.ErrorMessage = &reason
		if e.RetryCount >= maxRetries {
			e.Status = model.OutboxStatusFailed
		}
	})
}

func (r *outboxRepository) update(id uuid.UUID, fn func(*model.OutboxEvent)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := get[model.OutboxEvent](r.s.outbox, id.String())
	if !ok {
		return repository.ErrNotFound
	}
	fn(e)
	e.UpdatedAt = time.Now()
	r.s.outbox.Set(id.String(), *e, cache.NoExpiration)
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	old := values(r.s.outbox, func(e *model.OutboxEvent) bool {
		return e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before)
	}, nil)
	for _, e := range old {
		r.s.outbox.Delete(e.ID.String())
	}
	return int64(len(old)), nil
}
