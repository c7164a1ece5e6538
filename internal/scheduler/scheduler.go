// Package scheduler drives the workflow on a fixed cadence.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Runner is the unit of work the scheduler triggers.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler triggers workflow runs at a fixed interval. Runs are singleton:
// when the feeds are slow enough that a run is still going at the next tick,
// the tick is skipped rather than stacked.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a Scheduler that runs runner every interval, cancelling any
// run that exceeds timeout.
func New(runner Runner, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start registers the workflow job and starts ticking in the background.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		s.logger.Info("scheduled workflow starting", "interval", s.interval)
		if err := s.runner.Run(ctx); err != nil {
			s.logger.Error("scheduled workflow failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling workflow every %s: %w", s.interval, err)
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop halts future ticks and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
