package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/orgsync/directory-sync/internal/domain"
)

// UserRepository defines persistence access for replicated directory members.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByExternalID(ctx context.Context, externalID string) (*domain.User, error)
	DeactivateMissing(ctx context.Context, observedExternalIDs []string) (int64, error)
	CountActive(ctx context.Context) (int, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (external_id, name, email, mobile, avatar, department_id, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRow(ctx, query,
		user.ExternalID,
		user.Name,
		user.Email,
		user.Mobile,
		user.Avatar,
		user.DepartmentID,
		user.IsActive,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, email=$2, mobile=$3, avatar=$4, department_id=$5, is_active=$6, updated_at=NOW()
        WHERE id=$7`

	cmd, err := r.db.Exec(ctx, query,
		user.Name,
		user.Email,
		user.Mobile,
		user.Avatar,
		user.DepartmentID,
		user.IsActive,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	const query = `
        SELECT id, external_id, name, email, mobile, avatar, department_id, is_active, created_at, updated_at
        FROM users WHERE external_id=$1`

	var user domain.User
	if err := r.db.QueryRow(ctx, query, externalID).Scan(
		&user.ID,
		&user.ExternalID,
		&user.Name,
		&user.Email,
		&user.Mobile,
		&user.Avatar,
		&user.DepartmentID,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) DeactivateMissing(ctx context.Context, observedExternalIDs []string) (int64, error) {
	const query = `
        UPDATE users SET is_active=FALSE, updated_at=NOW()
        WHERE is_active = TRUE AND NOT (external_id = ANY($1))`
	cmd, err := r.db.Exec(ctx, query, observedExternalIDs)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *userRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE is_active = TRUE`
	var count int
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
