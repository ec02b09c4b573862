package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	MinPollInterval = 10 * time.Second
	MaxPollInterval = 15 * time.Second
)

// Poller keeps a dashboard fresh. A failed background refresh is logged and
// the last good snapshot is kept.
type Poller struct {
	load     func(ctx context.Context) (*Dashboard, error)
	interval time.Duration
	logger   *zap.Logger

	mu      sync.RWMutex
	last    *Dashboard
	updates chan *Dashboard
}

// NewPoller refreshes s's dashboard every interval, clamped to 10-15s.
func NewPoller(s *Session, interval time.Duration) *Poller {
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	if interval > MaxPollInterval {
		interval = MaxPollInterval
	}
	return newPoller(s.Dashboard, interval, s.client.logger)
}

func newPoller(load func(ctx context.Context) (*Dashboard, error), interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		load:     load,
		interval: interval,
		logger:   logger,
		updates:  make(chan *Dashboard, 1),
	}
}

// Refresh loads now. Unlike background refreshes, its error is returned.
func (p *Poller) Refresh(ctx context.Context) error {
	d, err := p.load(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = d

	// Drop a snapshot nobody read yet in favour of the new one.
	select {
	case <-p.updates:
	default:
	}
	p.updates <- d
	return nil
}

// Snapshot returns the last good dashboard, or nil before the first load.
func (p *Poller) Snapshot() *Dashboard {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Updates delivers each new snapshot. Slow readers only see the newest.
func (p *Poller) Updates() <-chan *Dashboard {
	return p.updates
}

// Run loads once, returning that error, then refreshes on every tick until
// ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.Refresh(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.logger.Warn("dashboard refresh failed", zap.Error(err))
			}
		}
	}
}
