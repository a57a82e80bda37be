package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/guidepostlabs/guidepost/internal/adapters/redis"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newTestClient(t)

	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "sid", 5*time.Second)
	assert.NoError(t, err)
	assert.NotNil(t, unlock)

	assert.True(t, mr.Exists("test:lock:sid"), "Lock key should be set in Redis")

	err = unlock(ctx)
	assert.NoError(t, err)

	assert.False(t, mr.Exists("test:lock:sid"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, client := newTestClient(t)

	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:") // Same prefix -> contention
	ctx := context.Background()
	key := "shared-session"

	// Client 1 acquires the lock.
	unlock1, err := locker1.Lock(ctx, key, 5*time.Second)
	assert.NoError(t, err)
	assert.NotNil(t, unlock1)

	// Client 2 blocks on the same key until its context expires.
	ctxTimeout, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = locker2.Lock(ctxTimeout, key, 5*time.Second)

	assert.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.WithinDuration(t, start.Add(500*time.Millisecond), time.Now(), 100*time.Millisecond, "lock attempt should block for the whole context deadline")

	// After client 1 unlocks, client 2 can acquire.
	err = unlock1(ctx)
	assert.NoError(t, err)

	unlock2, err := locker2.Lock(ctx, key, 5*time.Second)
	assert.NoError(t, err)
	defer unlock2(ctx)

	assert.True(t, mr.Exists("test:lock:shared-session"))
}

func TestRedisLocker_ReleaseIsScopedToHolder(t *testing.T) {
	mr, client := newTestClient(t)

	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker.Lock(ctx, "sid", 5*time.Second)
	assert.NoError(t, err)

	// Simulate the holder's key expiring and another client acquiring it.
	mr.FastForward(6 * time.Second)

	unlock2, err := locker.Lock(ctx, "sid", 5*time.Second)
	assert.NoError(t, err)
	defer unlock2(ctx)

	// The stale unlock must not delete the new holder's key.
	assert.NoError(t, unlock1(ctx))
	assert.True(t, mr.Exists("test:lock:sid"), "A stale unlock must leave the current holder's key alone")
}
