package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"errors"        // redis.Nil and TxFailedErr checks
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// Cache keys shared by readers and the writers that invalidate them
const (
	CacheKeyCampaign       = "campaign:all"
	CacheKeyRecentMessages = "messages:recent"
)

// CacheTTL bounds staleness if an invalidation is ever missed
const CacheTTL = 60 * time.Second

// generationKey counts the invalidations of key
func generationKey(key string) string {
	return key + ":gen"
}

// GetCache loads a JSON value into dest and reports whether it was present.
// A nil client behaves as a permanent miss. An entry that no longer decodes
// is dropped and reported as a miss so the caller falls back to the database.
func GetCache(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	raw, err := rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, rdb.Del(ctx, key).Err()
	}
	return true, nil
}

// CacheGeneration returns how many times key has been invalidated. Read it
// before loading from the database and hand it to FillCache.
func CacheGeneration(ctx context.Context, rdb *redis.Client, key string) (int64, error) {
	if rdb == nil {
		return 0, nil
	}
	gen, err := rdb.Get(ctx, generationKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil // Never invalidated
	}
	return gen, err
}

// FillCache stores value under key unless key was invalidated after gen was
// read, so a slow reader cannot put back data older than a concurrent write.
// It reports whether the value was stored.
func FillCache(ctx context.Context, rdb *redis.Client, key string, gen int64, value any, ttl time.Duration) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	stored := false
	genKey := generationKey(key)
	err = rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return nil // Invalidated while we were reading
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, ttl)
			return nil
		})
		stored = err == nil
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil // Invalidated between the check and the write
	}
	return stored, err
}

// InvalidateCache drops every given key and advances its generation in one
// transaction
func InvalidateCache(ctx context.Context, rdb *redis.Client, keys ...string) error {
	if rdb == nil || len(keys) == 0 {
		return nil
	}
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, generationKey(key))
			pipe.Del(ctx, key)
		}
		return nil
	})
	return err
}
