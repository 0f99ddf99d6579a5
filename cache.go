package hookloop

import (
	"context"
	"sync"
	"time"
)

// Cache is an injectable store for memoized operation results.
//
// The cache is explicit rather than a hidden package-level map so that
// lifecycle and test isolation stay under the caller's control.
// Implementations must be safe for concurrent use. Expiry is the
// implementation's concern: Get must not return entries it considers
// stale.
type Cache[T any] interface {
	// Get returns the value stored under key, if present and fresh.
	Get(key string) (T, bool)

	// Set stores value under key, replacing any previous entry.
	Set(key string, value T)

	// Delete removes the entry under key, if any.
	Delete(key string)
}

// cacheEntry pairs a value with its expiry deadline.
type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// MemoryCache is an in-memory [Cache] with a fixed per-entry TTL.
//
// Entries expire ttl after they were set; expired entries are treated as
// absent and dropped lazily on access. A zero ttl disables expiry.
type MemoryCache[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry[T]
}

// NewMemoryCache creates a [MemoryCache] whose entries expire ttl after
// being set. A zero ttl keeps entries until deleted or replaced.
func NewMemoryCache[T any](ttl time.Duration) *MemoryCache[T] {
	return &MemoryCache[T]{
		ttl:     ttl,
		entries: make(map[string]cacheEntry[T]),
	}
}

// Get returns the fresh value under key, if any.
func (c *MemoryCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with a fresh TTL.
func (c *MemoryCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := cacheEntry[T]{value: value}
	if c.ttl > 0 {
		e.expiresAt = time.Now().Add(c.ttl)
	}
	c.entries[key] = e
}

// Delete removes the entry under key, if any.
func (c *MemoryCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of stored entries, including any that have
// expired but not yet been dropped.
func (c *MemoryCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cached wraps op so that a fresh cached value under key short-circuits
// the invocation. On a miss the underlying operation runs and its result
// is stored before being returned. Errors are never cached.
func Cached[T any](cache Cache[T], key string, op Operation[T]) Operation[T] {
	return func(ctx context.Context) (T, error) {
		if v, ok := cache.Get(key); ok {
			return v, nil
		}
		v, err := op(ctx)
		if err != nil {
			return v, err
		}
		cache.Set(key, v)
		return v, nil
	}
}
