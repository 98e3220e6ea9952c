package pricing

import (
	"sync"
	"time"
)

// DefaultWindow is how long a fetched price counts as fresh.
const DefaultWindow = 5 * time.Minute

type cacheEntry struct {
	price     float64
	fetchedAt time.Time
}

// Cache memoizes display prices per asset identifier. Entries expire lazily:
// a Get older than the freshness window behaves as if nothing was stored.
// Concurrent Puts for the same key overwrite last-write-wins; prices are
// advisory display data, so the race is tolerated.
type Cache struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

func NewCache(window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Cache{
		window:  window,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cache) Get(assetID string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[assetID]
	if !ok {
		return 0, false
	}
	if c.now().Sub(entry.fetchedAt) > c.window {
		delete(c.entries, assetID)
		return 0, false
	}
	return entry.price, true
}

func (c *Cache) Put(assetID string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[assetID] = cacheEntry{price: price, fetchedAt: c.now()}
}

// Age reports how old the freshest still-fresh entry among the given assets
// is. Entries past the window are ignored, matching what Get would serve.
// Used for envelope metadata only.
func (c *Cache) Age(assetIDs []string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var newest time.Time
	found := false
	for _, assetID := range assetIDs {
		entry, ok := c.entries[assetID]
		if !ok {
			continue
		}
		if now.Sub(entry.fetchedAt) > c.window {
			continue
		}
		if !found || entry.fetchedAt.After(newest) {
			newest = entry.fetchedAt
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return now.Sub(newest), true
}
