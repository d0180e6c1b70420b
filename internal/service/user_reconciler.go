package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/orgsync/directory-sync/internal/directory"
	"github.com/orgsync/directory-sync/internal/domain"
	"github.com/orgsync/directory-sync/internal/repository"
)

// UserPass is the outcome of one user reconciliation.
type UserPass struct {
	Stats    domain.SyncStats
	Observed []string
	Batches  int
	Errors   []error
}

// UserReconciler replicates directory members in fixed-size batches.
type UserReconciler struct {
	source       DirectorySource
	users        repository.UserRepository
	departments  repository.DepartmentRepository
	fetchDetails bool
	batchDelay   time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	logger       *zap.Logger
}

// NewUserReconciler builds a reconciler. batchDelay is the pause inserted
// between consecutive batches.
func NewUserReconciler(
	source DirectorySource,
	users repository.UserRepository,
	departments repository.DepartmentRepository,
	fetchDetails bool,
	batchDelay time.Duration,
	logger *zap.Logger,
) *UserReconciler {
	return &UserReconciler{
		source:       source,
		users:        users,
		departments:  departments,
		fetchDetails: fetchDetails,
		batchDelay:   batchDelay,
		sleep:        sleepContext,
		logger:       logger,
	}
}

// Reconcile fetches every member once and upserts them batch by batch, in
// fetch order. One member failing never stops the others.
func (r *UserReconciler) Reconcile(ctx context.Context, batchSize int) (*UserPass, error) {
	if batchSize <= 0 {
		batchSize = domain.DefaultBatchSize
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fetched, err := r.source.GetAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	departmentIDs, err := r.departmentIndex(ctx)
	if err != nil {
		return nil, err
	}

	pass := &UserPass{Observed: make([]string, 0, len(fetched))}
	for _, user := range fetched {
		if user.UserID != "" {
			pass.Observed = append(pass.Observed, user.UserID)
		}
	}

	for start := 0; start < len(fetched); start += batchSize {
		if pass.Batches > 0 && r.batchDelay > 0 {
			if err := r.sleep(ctx, r.batchDelay); err != nil {
				return pass, err
			}
		}
		if err := ctx.Err(); err != nil {
			return pass, err
		}

		end := min(start+batchSize, len(fetched))
		for _, user := range fetched[start:end] {
			outcome, err := r.reconcileOne(ctx, user, departmentIDs)
			if err != nil {
				r.logger.Warn("user not replicated", zap.String("userid", user.UserID), zap.Error(err))
				pass.Stats.Failed++
				pass.Errors = append(pass.Errors, itemError(EntityUser, user.UserID, err))
				continue
			}
			countOutcome(&pass.Stats, outcome)
		}
		pass.Batches++

		r.logger.Debug("user batch reconciled",
			zap.Int("batch", pass.Batches),
			zap.Int("size", end-start))
	}

	r.logger.Info("users reconciled",
		zap.Int("fetched", len(fetched)),
		zap.Int("batches", pass.Batches),
		zap.Int("created", pass.Stats.Created),
		zap.Int("updated", pass.Stats.Updated),
		zap.Int("skipped", pass.Stats.Skipped),
		zap.Int("failed", pass.Stats.Failed))
	return pass, nil
}

// departmentIndex maps external department ids to local ids using whatever
// departments are committed when the user pass starts.
func (r *UserReconciler) departmentIndex(ctx context.Context) (map[string]string, error) {
	departments, err := r.departments.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("load departments: %w", err)
	}
	index := make(map[string]string, len(departments))
	for _, dept := range departments {
		index[dept.ExternalID] = dept.ID
	}
	return index, nil
}

func (r *UserReconciler) reconcileOne(ctx context.Context, user directory.UserDetail, departmentIDs map[string]string) (upsertOutcome, error) {
	if strings.TrimSpace(user.UserID) == "" {
		return outcomeSkipped, &ValidationError{Kind: EntityUser, Reason: "missing userid"}
	}

	if r.fetchDetails {
		if err := ctx.Err(); err != nil {
			return outcomeSkipped, err
		}
		detail, err := r.source.GetUser(ctx, user.UserID)
		if err != nil {
			return outcomeSkipped, fmt.Errorf("get user detail: %w", err)
		}
		user = *detail
	}

	var departmentID *string
	if external := user.PrimaryDepartment(); external != "" {
		if id, ok := departmentIDs[external]; ok {
			departmentID = &id
		}
	}

	existing, err := r.users.GetByExternalID(ctx, user.UserID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return outcomeSkipped, fmt.Errorf("load user: %w", err)
	}

	if existing == nil {
		record := &domain.User{
			ExternalID:   user.UserID,
			Name:         user.Name,
			Email:        user.Email,
			Mobile:       user.Mobile,
			Avatar:       user.Avatar,
			DepartmentID: departmentID,
			IsActive:     true,
		}
		if err := r.users.Create(ctx, record); err != nil {
			return outcomeSkipped, fmt.Errorf("create user: %w", err)
		}
		return outcomeCreated, nil
	}

	// The member list omits contact fields, so an empty value means unknown.
	email := keepKnown(existing.Email, user.Email)
	mobile := keepKnown(existing.Mobile, user.Mobile)
	avatar := keepKnown(existing.Avatar, user.Avatar)

	if existing.Name == user.Name &&
		existing.Email == email &&
		existing.Mobile == mobile &&
		existing.Avatar == avatar &&
		sameRef(existing.DepartmentID, departmentID) &&
		existing.IsActive {
		return outcomeSkipped, nil
	}

	existing.Name = user.Name
	existing.Email = email
	existing.Mobile = mobile
	existing.Avatar = avatar
	existing.DepartmentID = departmentID
	existing.IsActive = true
	if err := r.users.Update(ctx, existing); err != nil {
		return outcomeSkipped, fmt.Errorf("update user: %w", err)
	}
	return outcomeUpdated, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func keepKnown(stored, fetched string) string {
	if fetched == "" {
		return stored
	}
	return fetched
}
