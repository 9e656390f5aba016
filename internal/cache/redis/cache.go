// Package redis implements domain.Cache on go-redis/v9 for deployments that
// share one cache across replicas.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/polydeck/polydeck/internal/domain"
)

// scanBatch bounds how many keys a single SCAN iteration requests during
// prefix invalidation.
const scanBatch = 256

// Config holds connection parameters for the Redis cache.
type Config struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	TLSEnabled bool
}

// Cache implements domain.Cache on a Redis connection. TTL expiry is handled
// by Redis itself.
type Cache struct {
	rdb *redis.Client
}

// New connects to Redis, pings it to verify connectivity, and returns the
// cache. It returns an error if the connection cannot be established.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &Cache{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Set stores value under key with the given TTL. A non-positive TTL stores
// the entry without expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key and whether it was present.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return data, true, nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", key, err)
	}
	return nil
}

// DeleteByPrefix removes every key starting with prefix. It walks the
// keyspace with SCAN rather than KEYS so the server is never blocked.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis: scan prefix %s: %w", prefix, err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis: delete prefix %s: %w", prefix, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// GetOrCompute returns the cached value for key, or runs produce and stores
// its result under key with the given TTL. Errors from produce are returned
// without caching anything.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, produce func(context.Context) ([]byte, error)) ([]byte, error) {
	if value, ok, err := c.Get(ctx, key); err == nil && ok {
		return value, nil
	}

	value, err := produce(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		return nil, err
	}
	return value, nil
}

// Clear flushes the selected database.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.rdb.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("redis: flush: %w", err)
	}
	return nil
}

// Size reports the number of keys in the selected database.
func (c *Cache) Size(ctx context.Context) (int, error) {
	n, err := c.rdb.DBSize(ctx).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: dbsize: %w", err)
	}
	return int(n), nil
}

// Compile-time interface check.
var _ domain.Cache = (*Cache)(nil)
