package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

// OutboxCleaner deletes published events older than the retention window.
type OutboxCleaner struct {
	repo      repository.OutboxRepository
	retention time.Duration
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewOutboxCleaner(repo repository.OutboxRepository, retention time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *OutboxCleaner {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &OutboxCleaner{
		repo:      repo,
		retention: retention,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

func (w *OutboxCleaner) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)
	n, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		w.metrics.DatabaseOperations.WithLabelValues("purge_outbox", "error").Inc()
		return 0, err
	}
	w.metrics.DatabaseOperations.WithLabelValues("purge_outbox", "success").Inc()
	w.metrics.OutboxEventsPurged.Add(float64(n))
	if n > 0 {
		w.logger.Info("Purged processed outbox events", "count", n, "before", cutoff)
	}
	return n, nil
}
