package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Runner executes one ingestion run.
type Runner interface {
	Run(ctx context.Context, opts RunOptions) (domain.RunSummary, error)
}

// Scheduler triggers a run at startup and then once per interval. Runs are
// sequential: a tick that arrives during a run is handled after it finishes.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewScheduler creates a scheduler. A non-positive interval disables it.
func NewScheduler(runner Runner, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, clock: clock, logger: logger}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("scheduled updates disabled")
		return nil
	}

	s.logger.Info("scheduler started", "interval", s.interval)
	s.runOnce(ctx)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.Run(ctx, RunOptions{}); err != nil {
		s.logger.Error("scheduled update failed", "error", err)
	}
}
