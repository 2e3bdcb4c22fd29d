package tablebase

import "sync"

// cache holds probe results by EPD. It is dropped wholesale once it
// reaches its size limit.
type cache struct {
	mu      sync.RWMutex
	limit   int
	entries map[string]entry
}

func newCache(limit int) *cache {
	return &cache{limit: limit, entries: make(map[string]entry)}
}

func (c *cache) get(key string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *cache) put(key string, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.limit {
		c.entries = make(map[string]entry)
	}
	c.entries[key] = e
}

func (c *cache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
