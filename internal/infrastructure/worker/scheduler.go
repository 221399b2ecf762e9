package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Refresher is the orchestrator entry point the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context, forceFull bool) error
}

// Scheduler runs the fast incremental cycle and the slow full cycle on
// their own periods. A failed cycle is logged and never stops the loop;
// the orchestrator's idempotent upserts make overlap with ad hoc
// operator triggers harmless.
type Scheduler struct {
	Refresher Refresher
	FastEvery time.Duration
	SlowEvery time.Duration
	Log       *zap.Logger
}

func (s *Scheduler) Start(ctx context.Context) {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	if s.FastEvery <= 0 {
		s.FastEvery = 5 * time.Minute
	}
	if s.SlowEvery <= 0 {
		s.SlowEvery = time.Hour
	}

	fast := time.NewTicker(s.FastEvery)
	defer fast.Stop()
	slow := time.NewTicker(s.SlowEvery)
	defer slow.Stop()

	log.Info("scheduler_started",
		zap.Duration("fast_every", s.FastEvery),
		zap.Duration("slow_every", s.SlowEvery))

	// Warm the cache immediately instead of waiting a full slow period.
	s.cycle(ctx, log, true)

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler_stopped")
			return
		case <-fast.C:
			s.cycle(ctx, log, false)
		case <-slow.C:
			s.cycle(ctx, log, true)
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context, log *zap.Logger, forceFull bool) {
	start := time.Now()
	if err := s.Refresher.Refresh(ctx, forceFull); err != nil {
		log.Warn("refresh_cycle_failed", zap.Bool("force_full", forceFull), zap.Error(err))
		return
	}
	log.Info("refresh_cycle_done",
		zap.Bool("force_full", forceFull),
		zap.Duration("took", time.Since(start)))
}
