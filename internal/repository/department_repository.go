package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/orgsync/directory-sync/internal/domain"
)

// DepartmentRepository manages the local department replica.
type DepartmentRepository interface {
	Create(ctx context.Context, dept *domain.Department) error
	Update(ctx context.Context, dept *domain.Department) error
	GetByExternalID(ctx context.Context, externalID string) (*domain.Department, error)
	List(ctx context.Context, includeInactive bool) ([]domain.Department, error)
	DeactivateMissing(ctx context.Context, observedExternalIDs []string) (int64, error)
	CountActive(ctx context.Context) (int, error)
}

type departmentRepository struct {
	db DBTX
}

// NewDepartmentRepository builds the repository.
func NewDepartmentRepository(db DBTX) DepartmentRepository {
	return &departmentRepository{db: db}
}

const departmentColumns = `id, external_id, name, parent_id, level, sort_order, is_active, created_at, updated_at`

func (r *departmentRepository) Create(ctx context.Context, dept *domain.Department) error {
	const query = `
        INSERT INTO departments (external_id, name, parent_id, level, sort_order, is_active)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		dept.ExternalID,
		dept.Name,
		dept.ParentID,
		dept.Level,
		dept.Order,
		dept.IsActive,
	).Scan(&dept.ID, &dept.CreatedAt, &dept.UpdatedAt)
}

func (r *departmentRepository) Update(ctx context.Context, dept *domain.Department) error {
	const query = `
        UPDATE departments SET name=$1, parent_id=$2, level=$3, sort_order=$4, is_active=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.db.Exec(ctx, query,
		dept.Name,
		dept.ParentID,
		dept.Level,
		dept.Order,
		dept.IsActive,
		dept.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *departmentRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE external_id=$1`
	var dept domain.Department
	if err := r.db.QueryRow(ctx, query, externalID).Scan(
		&dept.ID,
		&dept.ExternalID,
		&dept.Name,
		&dept.ParentID,
		&dept.Level,
		&dept.Order,
		&dept.IsActive,
		&dept.CreatedAt,
		&dept.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepository) List(ctx context.Context, includeInactive bool) ([]domain.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments`
	if !includeInactive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY level, sort_order`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Department
	for rows.Next() {
		var dept domain.Department
		if err := rows.Scan(&dept.ID, &dept.ExternalID, &dept.Name, &dept.ParentID, &dept.Level, &dept.Order, &dept.IsActive, &dept.CreatedAt, &dept.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, dept)
	}
	return result, rows.Err()
}

// DeactivateMissing flips is_active off for every active department whose
// external id is not in observedExternalIDs. Rows are never deleted.
func (r *departmentRepository) DeactivateMissing(ctx context.Context, observedExternalIDs []string) (int64, error) {
	const query = `
        UPDATE departments SET is_active=FALSE, updated_at=NOW()
        WHERE is_active = TRUE AND NOT (external_id = ANY($1))`
	cmd, err := r.db.Exec(ctx, query, observedExternalIDs)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *departmentRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM departments WHERE is_active = TRUE`
	var count int
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
