package domain

import (
	"context"
	"time"
)

// Cache is a time-boxed memoization store keyed by request shape. Entries
// expire lazily on read; there is no active eviction sweep and no stampede
// protection, so concurrent misses may each invoke the producer.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the cached value and whether it was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	// GetOrCompute returns the cached value if unexpired, otherwise invokes
	// produce, stores the result under key with the given TTL, and returns it.
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, produce func(context.Context) ([]byte, error)) ([]byte, error)
	Clear(ctx context.Context) error
	Size(ctx context.Context) (int, error)
}
