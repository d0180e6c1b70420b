package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still carries our token, so an
// expired lock re-acquired by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX on a shared Redis.
type RedisLocker struct {
	client redis.UniversalClient

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisLocker wraps a go-redis client.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{
		client: client,
		tokens: make(map[string]string),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, name, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[name] = token
	l.mu.Unlock()
	return true, nil
}

func (l *RedisLocker) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	token, ok := l.tokens[name]
	delete(l.tokens, name)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{name}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

func (l *RedisLocker) Held(ctx context.Context, name string) (bool, error) {
	n, err := l.client.Exists(ctx, name).Result()
	if err != nil {
		return false, fmt.Errorf("check lock %s: %w", name, err)
	}
	return n > 0, nil
}
