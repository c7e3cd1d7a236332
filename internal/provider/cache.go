package provider

import (
	"sync"
	"time"
)

// InMemoryCache is the TTL cache behind live spot rates. It implements
// domain.CacheProvider. Expired entries miss on read and are swept in the
// background until Close.
type InMemoryCache struct {
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	stats   CacheStats

	stop chan struct{}
	once sync.Once
}

type entry struct {
	value   interface{}
	expires time.Time
}

// CacheStats is reported by /api/cache/status
type CacheStats struct {
	Items   int   `json:"items"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Evicted int64 `json:"evicted"`
}

// NewInMemoryCache creates a cache swept every interval (5 minutes when <= 0)
func NewInMemoryCache(sweepInterval time.Duration) *InMemoryCache {
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	c := &InMemoryCache{
		now:     time.Now,
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	go c.sweepEvery(sweepInterval)
	return c
}

// Get returns an unexpired value
func (c *InMemoryCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && c.now().Before(e.expires) {
		c.stats.Hits++
		return e.value, true
	}
	if ok {
		delete(c.entries, key)
		c.stats.Evicted++
	}
	c.stats.Misses++
	return nil, false
}

// Set stores value for ttlSeconds; a non-positive TTL stores nothing
func (c *InMemoryCache) Set(key string, value interface{}, ttlSeconds int) {
	if ttlSeconds <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, expires: c.now().Add(time.Duration(ttlSeconds) * time.Second)}
	c.mu.Unlock()
}

// Delete drops a key
func (c *InMemoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every key; counters are kept
func (c *InMemoryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Stats returns a snapshot of the counters
func (c *InMemoryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Items = len(c.entries)
	return s
}

// Close stops the sweeper
func (c *InMemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *InMemoryCache) sweepEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *InMemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, key)
			c.stats.Evicted++
		}
	}
}
