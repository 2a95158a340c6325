package repository

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/singleflight"
)

const accountCacheTTL = 30 * time.Second

// CachedAccountRepository wraps MongoAccountRepository with Redis caching.
// Status polling from the presentation layer hits GetExpiry hard; the
// write path updates the cache in the same call that commits to Mongo, so
// a read after a purchase always sees the new expiry.
type CachedAccountRepository struct {
	mongo *MongoAccountRepository
	cache *RedisCacheRepository
	group singleflight.Group
}

// NewCachedAccountRepository creates a new cached account repository
func NewCachedAccountRepository(mongo *MongoAccountRepository, cache *RedisCacheRepository) *CachedAccountRepository {
	return &CachedAccountRepository{
		mongo: mongo,
		cache: cache,
	}
}

// GetExpiry retrieves a stored expiry, trying the cache first. Concurrent
// misses for the same identity collapse into one Mongo read.
func (r *CachedAccountRepository) GetExpiry(ctx context.Context, identity string) (uint64, error) {
	if expiry, hit, err := r.cache.GetExpiry(ctx, identity); err == nil && hit {
		return expiry, nil
	}

	v, err, _ := r.group.Do(identity, func() (interface{}, error) {
		expiry, err := r.mongo.GetExpiry(ctx, identity)
		if err != nil {
			return uint64(0), err
		}
		// Store in cache (ignore cache errors)
		if cerr := r.cache.SetExpiry(ctx, identity, expiry, accountCacheTTL); cerr != nil {
			log.Printf("[Cache] Failed to cache expiry for %s: %v", identity, cerr)
		}
		return expiry, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

// SetExpiry commits the new expiry to Mongo and refreshes the cache.
func (r *CachedAccountRepository) SetExpiry(ctx context.Context, identity string, expiresAt uint64) error {
	if err := r.mongo.SetExpiry(ctx, identity, expiresAt); err != nil {
		return err
	}

	if err := r.cache.SetExpiry(ctx, identity, expiresAt, accountCacheTTL); err != nil {
		// A stale cache entry here would serve the old expiry for up to
		// the TTL; drop the key instead.
		log.Printf("[Cache] Failed to refresh expiry for %s, invalidating: %v", identity, err)
		_ = r.cache.InvalidateExpiry(ctx, identity)
	}
	return nil
}
