package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orgsync/directory-sync/internal/config"
	"github.com/orgsync/directory-sync/internal/domain"
	"github.com/orgsync/directory-sync/internal/events"
	"github.com/orgsync/directory-sync/internal/lock"
	"github.com/orgsync/directory-sync/internal/observability"
	"github.com/orgsync/directory-sync/internal/repository"
)

// SyncDependencies bundles collaborators for the sync service.
type SyncDependencies struct {
	Source         DirectorySource
	DepartmentRepo repository.DepartmentRepository
	UserRepo       repository.UserRepository
	StatusRepo     repository.SyncStatusRepository
	Locker         lock.Locker
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// DirectorySyncService runs directory replication end to end: lock,
// departments, users, sweep, bookkeeping.
type DirectorySyncService struct {
	departments *DepartmentReconciler
	users       *UserReconciler
	sweeper     *InactivationSweeper

	departmentRepo repository.DepartmentRepository
	userRepo       repository.UserRepository
	status         repository.SyncStatusRepository
	locker         lock.Locker
	dispatcher     events.Dispatcher
	metrics        *observability.Metrics
	logger         *zap.Logger

	lockName  string
	lockTTL   time.Duration
	batchSize int
	now       func() time.Time

	mu    sync.RWMutex
	phase domain.SyncPhase
}

// NewDirectorySyncService wires the reconcilers from configuration.
func NewDirectorySyncService(cfg config.Config, deps SyncDependencies) *DirectorySyncService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectorySyncService{
		departments:    NewDepartmentReconciler(deps.Source, deps.DepartmentRepo, cfg.Directory.RootParentID, logger.Named("departments")),
		users:          NewUserReconciler(deps.Source, deps.UserRepo, deps.DepartmentRepo, cfg.Directory.FetchUserDetails, cfg.Sync.BatchDelay(), logger.Named("users")),
		sweeper:        NewInactivationSweeper(deps.DepartmentRepo, deps.UserRepo, logger.Named("sweeper")),
		departmentRepo: deps.DepartmentRepo,
		userRepo:       deps.UserRepo,
		status:         deps.StatusRepo,
		locker:         deps.Locker,
		dispatcher:     deps.Dispatcher,
		metrics:        deps.Metrics,
		logger:         logger,
		lockName:       cfg.Sync.LockName,
		lockTTL:        cfg.Sync.LockTTL(),
		batchSize:      cfg.Sync.BatchSize,
		now:            time.Now,
		phase:          domain.SyncPhaseIdle,
	}
}

// Phase returns the phase of the current or most recent run on this instance.
func (s *DirectorySyncService) Phase() domain.SyncPhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *DirectorySyncService) setPhase(result *domain.SyncResult, phase domain.SyncPhase) {
	result.Phase = phase
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()
}

// PerformFullSync runs one sync with the given options. It never returns an
// error: every failure ends up in the result. A run that finds the lock taken
// returns at once without touching the local store.
func (s *DirectorySyncService) PerformFullSync(ctx context.Context, opts domain.SyncOptions) (result *domain.SyncResult) {
	result = &domain.SyncResult{
		RunID:     uuid.NewString(),
		Mode:      opts.Mode(),
		Phase:     domain.SyncPhaseLocking,
		Errors:    []string{},
		StartedAt: s.now().UTC(),
	}
	logger := s.logger.With(zap.String("run_id", result.RunID), zap.String("mode", string(result.Mode)))
	if opts.BatchSize <= 0 {
		opts.BatchSize = s.batchSize
	}

	acquired, err := s.locker.Acquire(ctx, s.lockName, s.lockTTL)
	if err != nil {
		result.AddError(fmt.Errorf("acquire lock: %w", err))
	} else if !acquired {
		result.AddError(ErrLockContention)
	}
	if err != nil || !acquired {
		s.stamp(result)
		result.Phase = domain.SyncPhaseFailed
		logger.Info("sync not started", zap.Strings("errors", result.Errors))
		s.metrics.RecordSync(result)
		return result
	}

	s.setPhase(result, domain.SyncPhaseLocking)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("sync panicked", zap.Any("panic", r))
			result.AddError(fmt.Errorf("sync panicked: %v", r))
		}
		s.finish(ctx, result, logger)
		if err := s.locker.Release(context.WithoutCancel(ctx), s.lockName); err != nil {
			logger.Warn("release sync lock", zap.Error(err))
		}
	}()

	logger.Info("sync started",
		zap.Bool("department_only", opts.DepartmentOnly),
		zap.Bool("user_only", opts.UserOnly),
		zap.Int("batch_size", opts.EffectiveBatchSize()))
	s.publish(ctx, events.EventSyncStarted, result.RunID, events.SyncStartedPayload{Mode: result.Mode, Options: opts})

	var deptPass *DepartmentPass
	if opts.SyncDepartments() {
		s.setPhase(result, domain.SyncPhaseSyncingDepartments)
		pass, err := s.departments.Reconcile(ctx)
		if pass != nil {
			result.DepartmentStats = pass.Stats
			addErrors(result, pass.Errors)
		}
		if err != nil {
			result.AddError(fmt.Errorf("departments: %w", err))
		} else {
			deptPass = pass
		}
	}

	var userPass *UserPass
	if opts.SyncUsers() {
		s.setPhase(result, domain.SyncPhaseSyncingUsers)
		pass, err := s.users.Reconcile(ctx, opts.EffectiveBatchSize())
		if pass != nil {
			result.UserStats = pass.Stats
			result.UserBatches = pass.Batches
			addErrors(result, pass.Errors)
		}
		if err != nil {
			result.AddError(fmt.Errorf("users: %w", err))
		} else {
			userPass = pass
		}
	}

	if !opts.FullSync {
		return result
	}

	s.setPhase(result, domain.SyncPhaseSweeping)
	if deptPass != nil {
		n, err := s.sweeper.SweepDepartments(ctx, deptPass.Observed)
		result.DepartmentStats.Deactivated = n
		result.AddError(err)
	}
	if userPass != nil {
		n, err := s.sweeper.SweepUsers(ctx, userPass.Observed)
		result.UserStats.Deactivated = n
		result.AddError(err)
	}
	return result
}

// finish settles the terminal phase and records the run. It runs while the
// lock is still held.
func (s *DirectorySyncService) finish(ctx context.Context, result *domain.SyncResult, logger *zap.Logger) {
	ctx = context.WithoutCancel(ctx)
	s.stamp(result)

	result.Success = len(result.Errors) == 0
	if result.Success {
		s.setPhase(result, domain.SyncPhaseCompleted)
	} else {
		s.setPhase(result, domain.SyncPhaseFailed)
	}

	if s.status != nil {
		if result.Success {
			if err := s.status.RecordSuccess(ctx, result.FinishedAt); err != nil {
				logger.Warn("record last success", zap.Error(err))
			}
		}
		if err := s.status.SaveLastResult(ctx, result); err != nil {
			logger.Warn("save last result", zap.Error(err))
		}
	}
	s.metrics.RecordSync(result)

	eventType := events.EventSyncCompleted
	if !result.Success {
		eventType = events.EventSyncFailed
	}
	s.publish(ctx, eventType, result.RunID, events.SyncFinishedPayload{Result: result})

	logger.Info("sync finished",
		zap.Bool("success", result.Success),
		zap.String("phase", string(result.Phase)),
		zap.Int64("duration_ms", result.DurationMs),
		zap.Any("departments", result.DepartmentStats),
		zap.Any("users", result.UserStats),
		zap.Int("errors", len(result.Errors)))
}

func (s *DirectorySyncService) stamp(result *domain.SyncResult) {
	result.FinishedAt = s.now().UTC()
	result.DurationMs = result.FinishedAt.Sub(result.StartedAt).Milliseconds()
}

func (s *DirectorySyncService) publish(ctx context.Context, eventType events.EventType, runID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RunID:     runID,
		Timestamp: s.now().UTC(),
		Payload:   payload,
	})
}

// GetSyncStatus reports whether a run is in progress anywhere, when the last
// successful run finished and how many active records the replica holds.
func (s *DirectorySyncService) GetSyncStatus(ctx context.Context) (*domain.SyncStatus, error) {
	status := &domain.SyncStatus{Phase: s.Phase()}

	var err error
	if s.status != nil {
		if status.IsRunning, err = s.status.IsRunning(ctx); err != nil {
			return nil, fmt.Errorf("check running: %w", err)
		}
		if status.LastSyncTime, err = s.status.LastSuccess(ctx); err != nil {
			return nil, fmt.Errorf("last success: %w", err)
		}
		if status.LastResult, err = s.status.LastResult(ctx); err != nil {
			return nil, fmt.Errorf("last result: %w", err)
		}
	} else {
		status.IsRunning = s.Phase() != domain.SyncPhaseIdle && !isTerminal(s.Phase())
	}
	if status.DepartmentCount, err = s.departmentRepo.CountActive(ctx); err != nil {
		return nil, fmt.Errorf("count departments: %w", err)
	}
	if status.UserCount, err = s.userRepo.CountActive(ctx); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	return status, nil
}

// IsLockContention reports whether a result was rejected because another run
// held the lock.
func IsLockContention(result *domain.SyncResult) bool {
	return result != nil && !result.Success && len(result.Errors) == 1 && result.Errors[0] == ErrLockContention.Error()
}

func addErrors(result *domain.SyncResult, errs []error) {
	for _, err := range errs {
		result.AddError(err)
	}
}

func isTerminal(phase domain.SyncPhase) bool {
	return phase == domain.SyncPhaseCompleted || phase == domain.SyncPhaseFailed
}
