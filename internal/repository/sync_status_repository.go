package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orgsync/directory-sync/internal/domain"
)

const (
	lastSuccessKey = "directory_sync:last_success"
	lastResultKey  = "directory_sync:last_result"
)

// SyncStatusRepository persists the small amount of sync state that outlives a run.
type SyncStatusRepository interface {
	IsRunning(ctx context.Context) (bool, error)
	LastSuccess(ctx context.Context) (*time.Time, error)
	RecordSuccess(ctx context.Context, at time.Time) error
	SaveLastResult(ctx context.Context, result *domain.SyncResult) error
	LastResult(ctx context.Context) (*domain.SyncResult, error)
}

type syncStatusRepository struct {
	client  redis.UniversalClient
	lockKey string
}

// NewSyncStatusRepository stores status in Redis next to the sync lock.
func NewSyncStatusRepository(client redis.UniversalClient, lockKey string) SyncStatusRepository {
	return &syncStatusRepository{client: client, lockKey: lockKey}
}

// IsRunning reports whether the sync lock is currently held.
func (r *syncStatusRepository) IsRunning(ctx context.Context) (bool, error) {
	n, err := r.client.Exists(ctx, r.lockKey).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *syncStatusRepository) LastSuccess(ctx context.Context) (*time.Time, error) {
	raw, err := r.client.Get(ctx, lastSuccessKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", lastSuccessKey, err)
	}
	return &at, nil
}

func (r *syncStatusRepository) RecordSuccess(ctx context.Context, at time.Time) error {
	return r.client.Set(ctx, lastSuccessKey, at.UTC().Format(time.RFC3339Nano), 0).Err()
}

func (r *syncStatusRepository) SaveLastResult(ctx context.Context, result *domain.SyncResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, lastResultKey, payload, 0).Err()
}

func (r *syncStatusRepository) LastResult(ctx context.Context) (*domain.SyncResult, error) {
	raw, err := r.client.Get(ctx, lastResultKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result domain.SyncResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode %s: %w", lastResultKey, err)
	}
	return &result, nil
}
