package dto

import (
	"time"

	"github.com/orgsync/directory-sync/internal/domain"
)

// SyncTriggerRequest payload for POST /api/v1/directory/sync.
type SyncTriggerRequest struct {
	FullSync       bool `json:"full_sync"`
	DepartmentOnly bool `json:"department_only"`
	UserOnly       bool `json:"user_only"`
	BatchSize      int  `json:"batch_size"`
}

// Options converts the request into run options.
func (r SyncTriggerRequest) Options() domain.SyncOptions {
	return domain.SyncOptions{
		FullSync:       r.FullSync,
		DepartmentOnly: r.DepartmentOnly,
		UserOnly:       r.UserOnly,
		BatchSize:      r.BatchSize,
	}
}

// SyncStatsResponse mirrors domain.SyncStats.
type SyncStatsResponse struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	Deactivated int `json:"deactivated"`
}

// SyncResultResponse is the body returned by a sync trigger.
type SyncResultResponse struct {
	RunID           string            `json:"run_id"`
	Mode            string            `json:"mode"`
	Success         bool              `json:"success"`
	Phase           string            `json:"phase"`
	DepartmentStats SyncStatsResponse `json:"department_stats"`
	UserStats       SyncStatsResponse `json:"user_stats"`
	UserBatches     int               `json:"user_batches"`
	Errors          []string          `json:"errors"`
	DurationMs      int64             `json:"duration_ms"`
	StartedAt       time.Time         `json:"started_at"`
	FinishedAt      time.Time         `json:"finished_at"`
}

// SyncStatusResponse is the body of GET /api/v1/directory/sync/status.
type SyncStatusResponse struct {
	IsRunning       bool                `json:"is_running"`
	Phase           string              `json:"phase"`
	LastSyncTime    *time.Time          `json:"last_sync_time"`
	UserCount       int                 `json:"user_count"`
	DepartmentCount int                 `json:"department_count"`
	LastResult      *SyncResultResponse `json:"last_result,omitempty"`
}

// NewSyncResultResponse maps a run result.
func NewSyncResultResponse(result *domain.SyncResult) *SyncResultResponse {
	if result == nil {
		return nil
	}
	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}
	return &SyncResultResponse{
		RunID:           result.RunID,
		Mode:            string(result.Mode),
		Success:         result.Success,
		Phase:           string(result.Phase),
		DepartmentStats: SyncStatsResponse(result.DepartmentStats),
		UserStats:       SyncStatsResponse(result.UserStats),
		UserBatches:     result.UserBatches,
		Errors:          errs,
		DurationMs:      result.DurationMs,
		StartedAt:       result.StartedAt,
		FinishedAt:      result.FinishedAt,
	}
}

// NewSyncStatusResponse maps a status snapshot.
func NewSyncStatusResponse(status *domain.SyncStatus) SyncStatusResponse {
	return SyncStatusResponse{
		IsRunning:       status.IsRunning,
		Phase:           string(status.Phase),
		LastSyncTime:    status.LastSyncTime,
		UserCount:       status.UserCount,
		DepartmentCount: status.DepartmentCount,
		LastResult:      NewSyncResultResponse(status.LastResult),
	}
}
