// Package jobs runs periodic maintenance for the booking engine.
package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Sweepable drops expired state and reports how many items went.
type Sweepable interface {
	SweepExpired(ctx context.Context) (int, error)
}

type Sweeper struct {
	target   Sweepable
	logger   *slog.Logger
	interval time.Duration
	name     string
}

type SweeperConfig struct {
	Name     string
	Interval time.Duration
}

func NewSweeper(target Sweepable, logger *slog.Logger, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Name == "" {
		cfg.Name = "sweeper"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{target: target, logger: logger, interval: cfg.Interval, name: cfg.Name}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	n, err := s.target.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "job", s.name, "err", err)
		return 0
	}
	if n > 0 {
		s.logger.Info("expired entries swept", "job", s.name, "count", n)
	}
	return n
}
