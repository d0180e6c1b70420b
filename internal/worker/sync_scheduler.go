// Package worker runs background jobs next to the HTTP server.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orgsync/directory-sync/internal/config"
	"github.com/orgsync/directory-sync/internal/domain"
	"github.com/orgsync/directory-sync/internal/service"
)

// SyncRunner starts one sync run.
type SyncRunner interface {
	PerformFullSync(ctx context.Context, opts domain.SyncOptions) *domain.SyncResult
}

// SyncScheduler triggers incremental syncs on a fixed interval and promotes
// every Nth run to a full sync.
type SyncScheduler struct {
	runner    SyncRunner
	interval  time.Duration
	fullEvery int
	logger    *zap.Logger

	mu    sync.Mutex
	ticks int
}

// NewSyncScheduler builds a scheduler. A zero interval disables it.
func NewSyncScheduler(runner SyncRunner, cfg config.SyncConfig, logger *zap.Logger) *SyncScheduler {
	return &SyncScheduler{
		runner:    runner,
		interval:  cfg.Interval(),
		fullEvery: cfg.FullEvery,
		logger:    logger,
	}
}

// Run blocks until ctx is done.
func (s *SyncScheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("sync scheduler disabled")
		<-ctx.Done()
		return nil
	}

	s.logger.Info("sync scheduler started",
		zap.Duration("interval", s.interval),
		zap.Int("full_every", s.fullEvery))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs the next scheduled run.
func (s *SyncScheduler) RunOnce(ctx context.Context) *domain.SyncResult {
	s.mu.Lock()
	s.ticks++
	full := s.fullEvery > 0 && s.ticks%s.fullEvery == 0
	s.mu.Unlock()

	result := s.runner.PerformFullSync(ctx, domain.SyncOptions{FullSync: full})
	switch {
	case service.IsLockContention(result):
		s.logger.Info("scheduled sync skipped; another run holds the lock", zap.Bool("full", full))
	case !result.Success:
		s.logger.Warn("scheduled sync finished with errors",
			zap.String("run_id", result.RunID),
			zap.Bool("full", full),
			zap.Strings("errors", result.Errors))
	default:
		s.logger.Info("scheduled sync finished",
			zap.String("run_id", result.RunID),
			zap.Bool("full", full),
			zap.Int64("duration_ms", result.DurationMs))
	}
	return result
}
