package cache

import (
	"context"
	"time"
)

// NullCacheValue is a sentinel value to represent null/empty data in cache
const NullCacheValue = "$NULL$"

// GetWithCached implements cache-aside with null value caching.
// It tries the cache first; on a miss it calls fn and stores the result.
// Empty results are cached with emptyTTL. Errors from fn are returned as is
// and never cached.
func GetWithCached[T any](
	ctx context.Context,
	cache BasicOps,
	key string,
	ttl time.Duration,
	emptyTTL time.Duration,
	isEmpty func(T) bool,
	marshal func(T) (string, error),
	unmarshal func(string) (T, error),
	fn func(context.Context) (T, error),
) (T, error) {
	var zero T

	if cached, err := cache.Get(ctx, key); err == nil && cached != "" {
		if cached == NullCacheValue {
			return zero, nil
		}
		if result, err := unmarshal(cached); err == nil {
			return result, nil
		}
		// Corrupted entry, fall through and refresh it
	}

	data, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	if isEmpty(data) {
		_ = cache.Set(ctx, key, NullCacheValue, emptyTTL)
		return data, nil
	}

	if encoded, err := marshal(data); err == nil {
		_ = cache.Set(ctx, key, encoded, ttl)
	}
	return data, nil
}
