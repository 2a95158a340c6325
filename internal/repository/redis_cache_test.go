package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*RedisCacheRepository, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisCacheRepository(client), mr
}

func TestExpiryCacheRoundTrip(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	_, hit, err := cache.GetExpiry(ctx, "acct_alice")
	require.NoError(t, err)
	assert.False(t, hit, "empty cache must miss")

	require.NoError(t, cache.SetExpiry(ctx, "acct_alice", 1_700_000_000, time.Minute))

	expiry, hit, err := cache.GetExpiry(ctx, "acct_alice")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, uint64(1_700_000_000), expiry)
}

func TestExpiryCacheInvalidate(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetExpiry(ctx, "acct_alice", 42, time.Minute))
	require.NoError(t, cache.InvalidateExpiry(ctx, "acct_alice"))

	_, hit, err := cache.GetExpiry(ctx, "acct_alice")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestExpiryCacheTTL(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetExpiry(ctx, "acct_alice", 42, time.Second))
	mr.FastForward(2 * time.Second)

	_, hit, err := cache.GetExpiry(ctx, "acct_alice")
	require.NoError(t, err)
	assert.False(t, hit, "entry must expire with its TTL")
}
