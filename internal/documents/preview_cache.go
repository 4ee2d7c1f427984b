package documents

import (
	"strings"
	"sync"
	"time"
)

// PreviewCache holds encoded page previews for a short time, so repeated
// layout passes do not re-render pages.
type PreviewCache struct {
	data    map[string]*cacheEntry
	ttl     time.Duration
	mu      sync.RWMutex
	cleanup *time.Ticker
	done    chan struct{}
	now     func() time.Time
}

type cacheEntry struct {
	value      []byte
	expiration time.Time
}

// NewPreviewCache creates a cache and starts its cleanup loop.
func NewPreviewCache(ttl time.Duration) *PreviewCache {
	cache := &PreviewCache{
		data:    make(map[string]*cacheEntry),
		ttl:     ttl,
		cleanup: time.NewTicker(time.Minute),
		done:    make(chan struct{}),
		now:     time.Now,
	}

	go cache.cleanupLoop()

	return cache
}

// Get retrieves a preview from the cache
func (c *PreviewCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, false
	}

	if c.now().After(entry.expiration) {
		return nil, false
	}

	return entry.value, true
}

// Set stores a preview in the cache
func (c *PreviewCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry{
		value:      value,
		expiration: c.now().Add(c.ttl),
	}
}

// DeleteByPrefix removes all entries with keys starting with the given prefix
func (c *PreviewCache) DeleteByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
}

// Size returns the number of entries in the cache
func (c *PreviewCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data)
}

func (c *PreviewCache) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *PreviewCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, key)
		}
	}
}

// Close stops the cleanup loop
func (c *PreviewCache) Close() {
	c.cleanup.Stop()
	close(c.done)
}
