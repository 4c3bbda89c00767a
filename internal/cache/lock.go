package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefreshLock is a best-effort single-flight guard around a cache refresh.
// Two concurrent refreshes of the same key are harmless (last-write-wins
// upsert); the lock only exists to avoid a redundant upstream API call, so
// every failure mode fails open.
type RefreshLock interface {
	// TryAcquire returns true when this caller should perform the refresh.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) bool
	Release(ctx context.Context, key string)
}

// RedisRefreshLock coordinates refreshes across instances via SETNX.
type RedisRefreshLock struct {
	client *redis.Client
}

func NewRedisRefreshLock(client *redis.Client) *RedisRefreshLock {
	return &RedisRefreshLock{client: client}
}

func (l *RedisRefreshLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) bool {
	ok, err := l.client.SetNX(ctx, lockKey(key), 1, ttl).Result()
	if err != nil {
		// Redis trouble must never block a refresh.
		return true
	}
	return ok
}

func (l *RedisRefreshLock) Release(ctx context.Context, key string) {
	l.client.Del(ctx, lockKey(key))
}

func lockKey(key string) string {
	return fmt.Sprintf("refresh:%s", key)
}

// LocalRefreshLock is the in-process fallback used when Redis is not
// configured.
type LocalRefreshLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

func NewLocalRefreshLock() *LocalRefreshLock {
	return &LocalRefreshLock{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

func (l *LocalRefreshLock) TryAcquire(_ context.Context, key string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return false
	}
	l.held[key] = now.Add(ttl)
	return true
}

func (l *LocalRefreshLock) Release(_ context.Context, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
