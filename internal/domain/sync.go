package domain

import "time"

// SyncMode distinguishes sweeping runs from upsert-only runs.
type SyncMode string

const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

// SyncPhase is the orchestrator state.
type SyncPhase string

const (
	SyncPhaseIdle               SyncPhase = "IDLE"
	SyncPhaseLocking            SyncPhase = "LOCKING"
	SyncPhaseSyncingDepartments SyncPhase = "SYNCING_DEPARTMENTS"
	SyncPhaseSyncingUsers       SyncPhase = "SYNCING_USERS"
	SyncPhaseSweeping           SyncPhase = "SWEEPING"
	SyncPhaseCompleted          SyncPhase = "COMPLETED"
	SyncPhaseFailed             SyncPhase = "FAILED"
)

// DefaultBatchSize is used when SyncOptions.BatchSize is not positive.
const DefaultBatchSize = 50

// SyncOptions are the caller-supplied knobs for a run.
type SyncOptions struct {
	FullSync       bool `json:"full_sync"`
	DepartmentOnly bool `json:"department_only"`
	UserOnly       bool `json:"user_only"`
	BatchSize      int  `json:"batch_size"`
}

// Mode reports the run mode implied by the options.
func (o SyncOptions) Mode() SyncMode {
	if o.FullSync {
		return SyncModeFull
	}
	return SyncModeIncremental
}

// SyncDepartments reports whether the department pass runs.
func (o SyncOptions) SyncDepartments() bool {
	return !o.UserOnly
}

// SyncUsers reports whether the user pass runs.
func (o SyncOptions) SyncUsers() bool {
	return !o.DepartmentOnly
}

// EffectiveBatchSize returns BatchSize or the default.
func (o SyncOptions) EffectiveBatchSize() int {
	if o.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return o.BatchSize
}

// SyncStats counts outcomes for one entity kind.
type SyncStats struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	Deactivated int `json:"deactivated"`
}

// Processed is the number of records that reached a terminal outcome.
func (s SyncStats) Processed() int {
	return s.Created + s.Updated + s.Skipped
}

// SyncResult summarizes one PerformFullSync invocation.
type SyncResult struct {
	RunID           string    `json:"run_id"`
	Mode            SyncMode  `json:"mode"`
	Success         bool      `json:"success"`
	Phase           SyncPhase `json:"phase"`
	DepartmentStats SyncStats `json:"department_stats"`
	UserStats       SyncStats `json:"user_stats"`
	UserBatches     int       `json:"user_batches"`
	Errors          []string  `json:"errors"`
	DurationMs      int64     `json:"duration_ms"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// AddError appends a non-fatal error message.
func (r *SyncResult) AddError(err error) {
	if err == nil {
		return
	}
	r.Errors = append(r.Errors, err.Error())
}

// SyncStatus answers "what is the sync doing" for status queries.
type SyncStatus struct {
	IsRunning       bool        `json:"is_running"`
	Phase           SyncPhase   `json:"phase"`
	LastSyncTime    *time.Time  `json:"last_sync_time"`
	UserCount       int         `json:"user_count"`
	DepartmentCount int         `json:"department_count"`
	LastResult      *SyncResult `json:"last_result,omitempty"`
}
