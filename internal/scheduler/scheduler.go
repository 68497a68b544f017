// Package scheduler owns the main loop: ticks on an interval and runs each
// source's crawl pass sequentially.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/beneyalraj/listing/internal/pipeline"
)

// Scheduler runs every source runner on a fixed interval.
type Scheduler struct {
	runners  []*pipeline.Runner
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that crawls all sources at the given
// interval.
func NewScheduler(runners []*pipeline.Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runners:  runners,
		interval: interval,
		logger:   logger,
	}
}

// Run starts the crawl loop. It runs one immediate cycle, then ticks on the
// configured interval. It returns nil when ctx is cancelled (graceful
// shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler",
		"interval", s.interval.String(),
		"sources", len(s.runners),
	)

	// Run one immediate crawl cycle.
	s.runAll(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.interval):
			s.runAll(ctx)
		}
	}
}

// runAll crawls each source sequentially. Sources stay sequential so their
// request pacing is never interleaved.
func (s *Scheduler) runAll(ctx context.Context) {
	for _, r := range s.runners {
		if ctx.Err() != nil {
			return
		}

		if err := r.Run(ctx); err != nil {
			s.logger.Error("crawl pass failed",
				"source", r.Source,
				"error", err,
			)
		}
	}
}
