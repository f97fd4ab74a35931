package patterns

import (
	"sync"
	"time"

	"github.com/chitragupta/khata/internal/model"
)

// cacheEntry represents one user's cached pattern tables.
type cacheEntry struct {
	expiry   time.Time
	patterns model.LoadedPatterns
}

// Cache provides thread-safe, per-user caching of learned patterns. Entries
// expire on a fixed TTL checked lazily on read; a stale read after a write
// elsewhere is an accepted trade-off, since miscategorization is correctable.
type Cache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
}

// NewCache creates a pattern cache with the specified TTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	cache := &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// Get retrieves a user's patterns if present and not expired.
func (c *Cache) Get(userID string) (model.LoadedPatterns, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[userID]
	if !exists {
		return model.LoadedPatterns{}, false
	}

	if time.Now().After(entry.expiry) {
		return model.LoadedPatterns{}, false
	}

	return entry.patterns, true
}

// Set stores a user's patterns. The entry is fully replaced, never partially
// mutated.
func (c *Cache) Set(userID string, patterns model.LoadedPatterns) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[userID] = cacheEntry{
		patterns: patterns,
		expiry:   time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Size returns the number of cached users.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	close(c.stopCh)
}
