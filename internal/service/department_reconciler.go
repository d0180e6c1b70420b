package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/orgsync/directory-sync/internal/directory"
	"github.com/orgsync/directory-sync/internal/domain"
	"github.com/orgsync/directory-sync/internal/repository"
)

type upsertOutcome int

const (
	outcomeSkipped upsertOutcome = iota
	outcomeCreated
	outcomeUpdated
)

// DepartmentPass is the outcome of one department reconciliation.
type DepartmentPass struct {
	Stats    domain.SyncStats
	Observed []string
	Errors   []error
}

// DepartmentReconciler replicates directory departments so that every
// department is written after its parent.
type DepartmentReconciler struct {
	source       DirectorySource
	departments  repository.DepartmentRepository
	rootParentID string
	logger       *zap.Logger
}

// NewDepartmentReconciler builds a reconciler. rootParentID is the synthetic
// parent id carried by top-level departments.
func NewDepartmentReconciler(source DirectorySource, departments repository.DepartmentRepository, rootParentID string, logger *zap.Logger) *DepartmentReconciler {
	return &DepartmentReconciler{
		source:       source,
		departments:  departments,
		rootParentID: rootParentID,
		logger:       logger,
	}
}

// Reconcile fetches the department list and upserts it parent-first.
// A returned error means the pass could not complete; the pass value then
// holds whatever was done before the failure and must not be swept against.
func (r *DepartmentReconciler) Reconcile(ctx context.Context) (*DepartmentPass, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fetched, err := r.source.ListDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}

	pass := &DepartmentPass{Observed: make([]string, 0, len(fetched))}
	for _, dept := range fetched {
		pass.Observed = append(pass.Observed, dept.ExternalID())
	}

	ordered, cyclic := orderDepartments(fetched, r.rootParentID)
	failed := make(map[string]struct{}, len(cyclic))
	for _, dept := range cyclic {
		failed[dept.ExternalID()] = struct{}{}
		pass.fail(r.logger, &ValidationError{
			Kind:       EntityDepartment,
			ExternalID: dept.ExternalID(),
			Reason:     fmt.Sprintf("parent chain through %s forms a cycle", dept.ParentExternalID()),
		})
	}

	committed := make(map[string]*domain.Department, len(ordered))
	for _, dept := range ordered {
		if err := ctx.Err(); err != nil {
			return pass, err
		}

		outcome, record, err := r.reconcileOne(ctx, dept, committed, failed)
		if err != nil {
			failed[dept.ExternalID()] = struct{}{}
			pass.fail(r.logger, itemError(EntityDepartment, dept.ExternalID(), err))
			continue
		}
		committed[record.ExternalID] = record
		countOutcome(&pass.Stats, outcome)
	}

	r.logger.Info("departments reconciled",
		zap.Int("fetched", len(fetched)),
		zap.Int("created", pass.Stats.Created),
		zap.Int("updated", pass.Stats.Updated),
		zap.Int("skipped", pass.Stats.Skipped),
		zap.Int("failed", pass.Stats.Failed))
	return pass, nil
}

func (r *DepartmentReconciler) reconcileOne(ctx context.Context, dept directory.Department, committed map[string]*domain.Department, failed map[string]struct{}) (upsertOutcome, *domain.Department, error) {
	externalID := dept.ExternalID()
	name := strings.TrimSpace(dept.Name)
	if name == "" {
		return outcomeSkipped, nil, &ValidationError{Kind: EntityDepartment, ExternalID: externalID, Reason: "missing name"}
	}

	parent, err := r.resolveParent(ctx, dept, committed, failed)
	if err != nil {
		return outcomeSkipped, nil, err
	}
	var parentID *string
	level := 1
	if parent != nil {
		parentID = &parent.ID
		level = parent.Level + 1
	}

	existing, err := r.departments.GetByExternalID(ctx, externalID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return outcomeSkipped, nil, fmt.Errorf("load department: %w", err)
	}

	if existing == nil {
		record := &domain.Department{
			ExternalID: externalID,
			Name:       name,
			ParentID:   parentID,
			Level:      level,
			Order:      dept.Order,
			IsActive:   true,
		}
		if err := r.departments.Create(ctx, record); err != nil {
			return outcomeSkipped, nil, fmt.Errorf("create department: %w", err)
		}
		return outcomeCreated, record, nil
	}

	if existing.Name == name &&
		sameRef(existing.ParentID, parentID) &&
		existing.Level == level &&
		existing.Order == dept.Order &&
		existing.IsActive {
		return outcomeSkipped, existing, nil
	}

	existing.Name = name
	existing.ParentID = parentID
	existing.Level = level
	existing.Order = dept.Order
	existing.IsActive = true
	if err := r.departments.Update(ctx, existing); err != nil {
		return outcomeSkipped, nil, fmt.Errorf("update department: %w", err)
	}
	return outcomeUpdated, existing, nil
}

// resolveParent finds the local parent record: first among departments
// committed in this pass, then among records left by earlier runs. A parent
// that was fetched but failed in this pass never resolves to its stale row.
func (r *DepartmentReconciler) resolveParent(ctx context.Context, dept directory.Department, committed map[string]*domain.Department, failed map[string]struct{}) (*domain.Department, error) {
	parentExternalID := dept.ParentExternalID()
	if parentExternalID == r.rootParentID {
		return nil, nil
	}
	if _, ok := failed[parentExternalID]; ok {
		return nil, &ValidationError{
			Kind:       EntityDepartment,
			ExternalID: dept.ExternalID(),
			Reason:     fmt.Sprintf("unresolved parent %s: failed in this run", parentExternalID),
		}
	}
	if parent, ok := committed[parentExternalID]; ok {
		return parent, nil
	}

	parent, err := r.departments.GetByExternalID(ctx, parentExternalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ValidationError{
			Kind:       EntityDepartment,
			ExternalID: dept.ExternalID(),
			Reason:     fmt.Sprintf("unresolved parent %s", parentExternalID),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load parent %s: %w", parentExternalID, err)
	}
	return parent, nil
}

type visitState uint8

const (
	unvisited visitState = iota
	visiting
	visited
)

// orderDepartments returns departments so that each parent precedes its
// children, keeping input order otherwise. Departments whose parent chain
// loops back on itself are returned separately and left out of the order.
func orderDepartments(depts []directory.Department, rootParentID string) (ordered, cyclic []directory.Department) {
	index := make(map[string]directory.Department, len(depts))
	for _, dept := range depts {
		index[dept.ExternalID()] = dept
	}

	state := make(map[string]visitState, len(depts))
	ordered = make([]directory.Department, 0, len(depts))

	var visit func(dept directory.Department)
	visit = func(dept directory.Department) {
		id := dept.ExternalID()
		state[id] = visiting

		parentID := dept.ParentExternalID()
		if parent, ok := index[parentID]; ok && parentID != rootParentID {
			switch state[parentID] {
			case visiting:
				cyclic = append(cyclic, dept)
				state[id] = visited
				return
			case unvisited:
				visit(parent)
			}
		}

		ordered = append(ordered, dept)
		state[id] = visited
	}

	for _, dept := range depts {
		if state[dept.ExternalID()] == unvisited {
			visit(dept)
		}
	}
	return ordered, cyclic
}

func (p *DepartmentPass) fail(logger *zap.Logger, err error) {
	logger.Warn("department not replicated", zap.Error(err))
	p.Stats.Failed++
	p.Errors = append(p.Errors, err)
}

func countOutcome(stats *domain.SyncStats, outcome upsertOutcome) {
	switch outcome {
	case outcomeCreated:
		stats.Created++
	case outcomeUpdated:
		stats.Updated++
	default:
		stats.Skipped++
	}
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
