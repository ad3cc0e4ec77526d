package router

import (
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/vecmesh/vectorstore"
)

type cacheEntry struct {
	results []vectorstore.Result
	expires time.Time
}

// resultCache is a TTL map keyed by query hash. Expired entries are
// dropped lazily on lookup and swept opportunistically on write.
type resultCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[uint64]cacheEntry
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		ttl:     ttl,
		entries: make(map[uint64]cacheEntry),
	}
}

func (c *resultCache) get(key uint64, now time.Time) ([]vectorstore.Result, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if now.After(e.expires) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && now.After(cur.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()

		return nil, false
	}

	// Callers own their result slice; never hand out the cached backing
	// array.
	return slices.Clone(e.results), true
}

func (c *resultCache) put(key uint64, results []vectorstore.Result, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}

	c.entries[key] = cacheEntry{results: slices.Clone(results), expires: now.Add(c.ttl)}
}

func (c *resultCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
