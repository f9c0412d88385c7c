// Package cache provides the bounded, expiring key-value cache used for
// published PPI percentile maps and constructed network graphs. Entries are
// evicted by LRU order when the size bound is reached and expire after the
// configured TTL.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// KV is the minimal cache contract consumed by the scoring and network
// services. Get returns (nil, false) for missing or expired keys; callers
// must not interpret a miss as any particular value.
type KV interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Remove(key string)
	Len() int
}

// TTLCache implements KV on a size-bounded expirable LRU.
type TTLCache struct {
	lru *expirable.LRU[string, any]
}

var _ KV = (*TTLCache)(nil)

// New creates a cache holding at most size entries, each expiring ttl after
// insertion. A non-positive size falls back to a single entry so the cache
// stays bounded.
func New(size int, ttl time.Duration) *TTLCache {
	if size <= 0 {
		size = 1
	}
	return &TTLCache{lru: expirable.NewLRU[string, any](size, nil, ttl)}
}

// Get returns the cached value for key, if present and unexpired.
func (c *TTLCache) Get(key string) (any, bool) {
	return c.lru.Get(key)
}

// Set stores value under key, evicting the least recently used entry when the
// cache is full.
func (c *TTLCache) Set(key string, value any) {
	c.lru.Add(key, value)
}

// Remove drops key from the cache if present.
func (c *TTLCache) Remove(key string) {
	c.lru.Remove(key)
}

// Len returns the number of unexpired entries.
func (c *TTLCache) Len() int {
	return c.lru.Len()
}
