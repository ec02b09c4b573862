package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/hospital-api/pkg/logger"
)

// Scheduler runs named jobs on cron specs such as "0 8 * * *".
type Scheduler struct {
	cron    *cron.Cron
	logger  *logger.Logger
	timeout time.Duration
	ctx     context.Context
}

func NewScheduler(log *logger.Logger, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  log,
		timeout: timeout,
		ctx:     context.Background(),
	}
}

// Add registers fn under name. Errors are logged; the job keeps its schedule.
func (s *Scheduler) Add(name, spec string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.run(name, fn)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	return nil
}

func (s *Scheduler) run(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.Error(err, "Scheduled job failed", "job", name)
		return
	}
	s.logger.Debug("Scheduled job finished", "job", name, "duration", time.Since(start).String())
}

// Start runs the schedule until ctx is done, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("Scheduler started", "jobs", len(s.cron.Entries()))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}
