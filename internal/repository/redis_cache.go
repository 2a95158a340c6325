package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const expiryKeyPrefix = "ledger:expiry:"

// RedisCacheRepository caches per-identity expiry timestamps. The cached
// value is the raw stored expiry, never a derived "active" flag, so a
// cached read stays correct for its whole TTL.
type RedisCacheRepository struct {
	client *redis.Client
}

// NewRedisCacheRepository creates a new Redis cache repository
func NewRedisCacheRepository(client *redis.Client) *RedisCacheRepository {
	return &RedisCacheRepository{
		client: client,
	}
}

// SetExpiry caches an identity's stored expiry with TTL
func (r *RedisCacheRepository) SetExpiry(ctx context.Context, identity string, expiresAt uint64, ttl time.Duration) error {
	key := expiryKeyPrefix + identity

	err := r.client.Set(ctx, key, strconv.FormatUint(expiresAt, 10), ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to cache expiry: %w", err)
	}
	return nil
}

// GetExpiry retrieves a cached expiry. The second return reports a hit;
// a miss is not an error.
func (r *RedisCacheRepository) GetExpiry(ctx context.Context, identity string) (uint64, bool, error) {
	key := expiryKeyPrefix + identity

	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil // Cache miss
		}
		return 0, false, fmt.Errorf("failed to get cached expiry: %w", err)
	}

	expiresAt, err := strconv.ParseUint(data, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse cached expiry: %w", err)
	}
	return expiresAt, true, nil
}

// InvalidateExpiry removes an identity's cached expiry
func (r *RedisCacheRepository) InvalidateExpiry(ctx context.Context, identity string) error {
	key := expiryKeyPrefix + identity

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached expiry: %w", err)
	}
	return nil
}
