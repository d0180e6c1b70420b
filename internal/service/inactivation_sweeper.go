package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/orgsync/directory-sync/internal/repository"
)

// InactivationSweeper deactivates local records the directory no longer returns.
// It only ever flips is_active; nothing is deleted.
type InactivationSweeper struct {
	departments repository.DepartmentRepository
	users       repository.UserRepository
	logger      *zap.Logger
}

func NewInactivationSweeper(departments repository.DepartmentRepository, users repository.UserRepository, logger *zap.Logger) *InactivationSweeper {
	return &InactivationSweeper{departments: departments, users: users, logger: logger}
}

// SweepDepartments deactivates active departments missing from observed.
func (s *InactivationSweeper) SweepDepartments(ctx context.Context, observed []string) (int, error) {
	if len(observed) == 0 {
		return 0, fmt.Errorf("departments: %w", ErrEmptySnapshot)
	}
	n, err := s.departments.DeactivateMissing(ctx, observed)
	if err != nil {
		return 0, fmt.Errorf("deactivate departments: %w", err)
	}
	s.logger.Info("departments swept", zap.Int64("deactivated", n))
	return int(n), nil
}

// SweepUsers deactivates active users missing from observed.
func (s *InactivationSweeper) SweepUsers(ctx context.Context, observed []string) (int, error) {
	if len(observed) == 0 {
		return 0, fmt.Errorf("users: %w", ErrEmptySnapshot)
	}
	n, err := s.users.DeactivateMissing(ctx, observed)
	if err != nil {
		return 0, fmt.Errorf("deactivate users: %w", err)
	}
	s.logger.Info("users swept", zap.Int64("deactivated", n))
	return int(n), nil
}
