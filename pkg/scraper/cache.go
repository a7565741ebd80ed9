package scraper

import (
	"sync"
	"time"

	"igfetch/pkg/instagram"
)

// DefaultCacheTTL is how long a successful extraction is served from memory
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	result   *instagram.ExtractionResult
	storedAt time.Time
}

// Cache maps normalized URLs to extraction results. Entries expire
// passively: a stale entry is ignored on read and replaced on the next
// successful extraction.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewCache creates a cache with the given TTL
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns a copy of the fresh entry for key
func (c *Cache) Get(key string) (*instagram.ExtractionResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(entry.storedAt) >= c.ttl {
		return nil, false
	}
	return entry.result.Clone(), true
}

// Put stores a copy of result under key
func (c *Cache) Put(key string, result *instagram.ExtractionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result.Clone(), storedAt: c.now()}
}

// Purge drops expired entries and returns how many were removed
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, fresh or not
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
