package service

import (
	"context"

	"github.com/orgsync/directory-sync/internal/directory"
)

// DirectorySource is the read side of the upstream directory.
// *directory.Client satisfies it.
type DirectorySource interface {
	ListDepartments(ctx context.Context) ([]directory.Department, error)
	GetAllUsers(ctx context.Context) ([]directory.UserDetail, error)
	GetUser(ctx context.Context, userID string) (*directory.UserDetail, error)
}

var _ DirectorySource = (*directory.Client)(nil)
