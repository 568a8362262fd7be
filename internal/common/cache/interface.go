package cache

import (
	"context"
	"time"
)

// Cache is the subset of cache operations the grading tools rely on:
// pipeline progress, cached submission reports and the distributed run lock.
type Cache interface {
	BasicOps
	LockOps

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// BasicOps defines basic key-value operations
type BasicOps interface {
	// Get retrieves the value for the given key
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair with optional TTL
	// If ttl is 0, the key will not expire
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Del deletes one or more keys
	Del(ctx context.Context, keys ...string) error

	// Exists checks if one or more keys exist
	// Returns the number of keys that exist
	Exists(ctx context.Context, keys ...string) (int64, error)

	// TTL returns the remaining time to live of a key
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// LockOps defines an owner-aware exclusive lock.
type LockOps interface {
	// TryLock stores owner under key only if the key is absent.
	// Returns true if the lock was acquired.
	TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)

	// Unlock deletes the key only while it still holds owner.
	// Returns false if the lock was held by someone else or already gone.
	Unlock(ctx context.Context, key, owner string) (bool, error)

	// ExtendLock refreshes the TTL of a lock still held by owner.
	ExtendLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
}
