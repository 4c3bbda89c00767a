package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRefreshLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lock := NewRedisRefreshLock(client)
	ctx := context.Background()

	assert.True(t, lock.TryAcquire(ctx, "hotel-1:meta:monthly:2025-06", time.Minute))
	assert.False(t, lock.TryAcquire(ctx, "hotel-1:meta:monthly:2025-06", time.Minute))

	// different key is independent
	assert.True(t, lock.TryAcquire(ctx, "hotel-2:meta:monthly:2025-06", time.Minute))

	lock.Release(ctx, "hotel-1:meta:monthly:2025-06")
	assert.True(t, lock.TryAcquire(ctx, "hotel-1:meta:monthly:2025-06", time.Minute))
}

func TestRedisRefreshLock_TTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lock := NewRedisRefreshLock(client)
	ctx := context.Background()

	require.True(t, lock.TryAcquire(ctx, "k", time.Second))
	require.False(t, lock.TryAcquire(ctx, "k", time.Second))

	mr.FastForward(2 * time.Second)
	assert.True(t, lock.TryAcquire(ctx, "k", time.Second))
}

func TestRedisRefreshLock_FailsOpenOnRedisError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lock := NewRedisRefreshLock(client)
	mr.Close()

	assert.True(t, lock.TryAcquire(context.Background(), "k", time.Minute))
}

func TestLocalRefreshLock(t *testing.T) {
	lock := NewLocalRefreshLock()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	lock.clock = func() time.Time { return now }
	ctx := context.Background()

	assert.True(t, lock.TryAcquire(ctx, "k", time.Minute))
	assert.False(t, lock.TryAcquire(ctx, "k", time.Minute))

	// expired hold can be re-acquired
	now = now.Add(2 * time.Minute)
	assert.True(t, lock.TryAcquire(ctx, "k", time.Minute))

	lock.Release(ctx, "k")
	assert.True(t, lock.TryAcquire(ctx, "k", time.Minute))
}
