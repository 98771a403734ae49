package cache

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache holds encoded annotations keyed by image URL for the life of
// the process. It is the front layer of LayeredCache, so repeated runs in
// serve mode skip the annotation call for images already described.
type MemoryCache struct {
	entries *gocache.Cache
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewMemoryCache creates a memory layer. Entries stored with a zero ttl
// expire after defaultTTL; expired entries are purged every sweep.
func NewMemoryCache(defaultTTL, sweep time.Duration) *MemoryCache {
	return &MemoryCache{entries: gocache.New(defaultTTL, sweep)}
}

// Get returns the encoded annotation stored under key
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	if v, found := c.entries.Get(key); found {
		if b, ok := v.([]byte); ok {
			c.hits.Add(1)
			return b, true
		}
	}
	c.misses.Add(1)
	return nil, false
}

func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.entries.Set(key, value, ttl)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.entries.Delete(key)
	return nil
}

// Clear drops every cached annotation
func (c *MemoryCache) Clear() error {
	c.entries.Flush()
	c.hits.Store(0)
	c.misses.Store(0)
	return nil
}

// Len counts stored annotations, including expired ones not yet swept
func (c *MemoryCache) Len() int {
	return c.entries.ItemCount()
}

// Stats reports lookups answered from memory and lookups that missed
func (c *MemoryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
