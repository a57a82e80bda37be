package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guidepostlabs/guidepost/internal/adapters/redis"
	"github.com/guidepostlabs/guidepost/internal/conversation"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	return mr, backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newTestClient(t)

	store := redis.NewFromClient(client)
	conversation.RunStoreContract(t, store)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	store := redis.NewFromClient(client, redis.WithTTL(30*time.Minute))
	require.NoError(t, store.Save(ctx, "sid", conversation.NewSession()))

	_, err := store.Load(ctx, "sid")
	require.NoError(t, err, "a fresh session should load")

	mr.FastForward(31 * time.Minute)

	_, err = store.Load(ctx, "sid")
	assert.ErrorIs(t, err, conversation.ErrSessionNotFound, "an expired session should be gone")
}

func TestRedisStore_KeyPrefix(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	store := redis.NewFromClient(client, redis.WithPrefix("advisor:"))
	require.NoError(t, store.Save(ctx, "sid", conversation.NewSession()))

	assert.True(t, mr.Exists("advisor:sid"), "keys should carry the configured prefix")
}
