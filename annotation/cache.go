package annotation

import "sync"

type thumbKey struct {
	ref  string
	size int
}

// ThumbnailCache keeps encoded thumbnails in memory. When full, the oldest
// entry is evicted. A nil cache stores nothing.
type ThumbnailCache struct {
	mu      sync.RWMutex
	entries map[thumbKey][]byte
	order   []thumbKey
	max     int
}

// NewThumbnailCache creates a cache holding up to max thumbnails
func NewThumbnailCache(max int) *ThumbnailCache {
	return &ThumbnailCache{entries: map[thumbKey][]byte{}, max: max}
}

// Get returns a cached thumbnail if available
func (c *ThumbnailCache) Get(ref string, size int) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[thumbKey{ref, size}]
	return data, ok
}

// Put caches a thumbnail
func (c *ThumbnailCache) Put(ref string, size int, data []byte) {
	if c == nil || c.max <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := thumbKey{ref, size}
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = data
	for len(c.order) > c.max {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
}

// Forget drops every thumbnail of an image
func (c *ThumbnailCache) Forget(ref string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.order[:0]
	for _, key := range c.order {
		if key.ref == ref {
			delete(c.entries, key)
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
}
