package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgsync/directory-sync/internal/domain"
)

func newStatusRepo(t *testing.T) (SyncStatusRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSyncStatusRepository(client, "directory_sync:lock"), mr
}

func TestSyncStatusRepository_Empty(t *testing.T) {
	t.Parallel()

	repo, _ := newStatusRepo(t)
	ctx := context.Background()

	running, err := repo.IsRunning(ctx)
	require.NoError(t, err)
	assert.False(t, running)

	last, err := repo.LastSuccess(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	result, err := repo.LastResult(ctx)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestSyncStatusRepository_IsRunningFollowsLockKey(t *testing.T) {
	t.Parallel()

	repo, mr := newStatusRepo(t)
	require.NoError(t, mr.Set("directory_sync:lock", "token"))

	running, err := repo.IsRunning(context.Background())
	require.NoError(t, err)
	assert.True(t, running)
}

func TestSyncStatusRepository_RoundTrip(t *testing.T) {
	t.Parallel()

	repo, _ := newStatusRepo(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	require.NoError(t, repo.RecordSuccess(ctx, at))
	last, err := repo.LastSuccess(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, at.Equal(*last))

	result := &domain.SyncResult{
		RunID:           "run-1",
		Mode:            domain.SyncModeFull,
		Success:         false,
		DepartmentStats: domain.SyncStats{Created: 2},
		Errors:          []string{"user u5: boom"},
	}
	require.NoError(t, repo.SaveLastResult(ctx, result))

	loaded, err := repo.LastResult(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, 2, loaded.DepartmentStats.Created)
	assert.Equal(t, []string{"user u5: boom"}, loaded.Errors)
}
