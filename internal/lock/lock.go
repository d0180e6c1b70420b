// Package lock provides the TTL-bounded mutual exclusion used to keep at most
// one directory sync running across all service instances.
package lock

import (
	"context"
	"sync"
	"time"
)

// Locker acquires and releases named locks that expire on their own.
type Locker interface {
	// Acquire sets the lock only if it is absent. It returns false when the
	// lock is already held by someone else.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	// Release drops the lock. Releasing a lock that does not exist, or that
	// has expired and been taken by another holder, is not an error.
	Release(ctx context.Context, name string) error
	// Held reports whether anyone currently holds the lock.
	Held(ctx context.Context, name string) (bool, error)
}

// MemoryLocker is a process-local Locker for single-instance deployments and tests.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	now   func() time.Time
}

// NewMemoryLocker returns an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (m *MemoryLocker) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if expiry, ok := m.locks[name]; ok && m.now().Before(expiry) {
		return false, nil
	}
	m.locks[name] = m.now().Add(ttl)
	return true, nil
}

func (m *MemoryLocker) Release(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, name)
	return nil
}

func (m *MemoryLocker) Held(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.locks[name]
	return ok && m.now().Before(expiry), nil
}
