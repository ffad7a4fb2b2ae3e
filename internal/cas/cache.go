package cas

import (
	"sync"

	"github.com/manifd/manifd"
)

// objectCache keeps recently used objects in memory. Manifests are small
// and read-heavy, so a bounded map with random eviction is enough; the
// disk copy is always authoritative.
type objectCache struct {
	mu      sync.RWMutex
	maxSize int
	items   map[manifd.Digest][]byte
}

func newObjectCache(maxSize int) *objectCache {
	return &objectCache{
		maxSize: maxSize,
		items:   make(map[manifd.Digest][]byte),
	}
}

func (c *objectCache) get(digest manifd.Digest) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.items[digest]
	return data, ok
}

func (c *objectCache) add(digest manifd.Digest, data []byte) {
	if c.maxSize <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) >= c.maxSize {
		for k := range c.items {
			delete(c.items, k)
			break
		}
	}
	c.items[digest] = data
}

func (c *objectCache) has(digest manifd.Digest) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[digest]
	return ok
}
