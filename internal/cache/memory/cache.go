// Package memory implements domain.Cache with an in-process map.
//
// Expiry is lazy: entries are evicted when a read or Size observes them past
// their deadline, never by a background sweeper.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/polydeck/polydeck/internal/domain"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is a thread-safe in-memory byte cache with per-entry TTLs.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	// now is swappable for tests.
	now func() time.Time
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Set stores value under key with the given TTL. A non-positive TTL makes the
// entry live until overwritten or deleted.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Get returns the value stored under key. An expired entry is deleted and
// reported as a miss.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if e.expired(c.now()) {
		c.mu.Lock()
		// Re-check under the write lock: a Set may have replaced the entry.
		if cur, still := c.entries[key]; still && cur.expired(c.now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	return e.value, true, nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// DeleteByPrefix removes every entry whose key starts with prefix.
func (c *Cache) DeleteByPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	return nil
}

// GetOrCompute returns the cached value for key, or runs produce and stores
// its result under key with the given TTL. Errors from produce are returned
// without caching anything.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, produce func(context.Context) ([]byte, error)) ([]byte, error) {
	if value, ok, _ := c.Get(ctx, key); ok {
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

// Clear removes every entry.
func (c *Cache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	return nil
}

// Size reports the number of live entries, evicting any it finds expired.
func (c *Cache) Size(_ context.Context) (int, error) {
	now := c.now()

	c.mu.Lock()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
	n := len(c.entries)
	c.mu.Unlock()
	return n, nil
}

// Compile-time interface check.
var _ domain.Cache = (*Cache)(nil)
