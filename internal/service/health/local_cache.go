package health

import (
	"sync"
	"time"
)

// localCache is a small in-process TTL cache for health snapshots. The router
// consults health on every scoring pass; without this, every quote would cost
// several Redis round trips per vendor.
type localCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]localEntry
}

type localEntry struct {
	value   VendorHealth
	expires time.Time
}

func newLocalCache(ttl time.Duration) *localCache {
	return &localCache{ttl: ttl, entries: make(map[string]localEntry)}
}

func (c *localCache) get(key string, now time.Time) (VendorHealth, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || now.After(entry.expires) {
		return VendorHealth{}, false
	}
	return entry.value, true
}

func (c *localCache) set(key string, value VendorHealth, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = localEntry{value: value, expires: now.Add(c.ttl)}
}

func (c *localCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
