package prefstore

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

const (
	DefaultCacheCostLimit  = 16 << 20
	DefaultCacheMaxEntries = 512
)

// costCache is an LRU bounded both by entry count and by the total byte
// length of its values. It is not safe for concurrent use; Disk guards it
// with its own mutex.
type costCache struct {
	lru   *simplelru.LRU[string, []byte]
	cost  int
	limit int
}

func newCostCache(limit, maxEntries int) *costCache {
	if limit <= 0 {
		limit = DefaultCacheCostLimit
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	c := &costCache{limit: limit}
	lru, err := simplelru.NewLRU[string, []byte](maxEntries, func(_ string, v []byte) {
		c.cost -= len(v)
	})
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	c.lru = lru
	return c
}

func (c *costCache) get(key string) ([]byte, bool) {
	return c.lru.Get(key)
}

// add stores value, evicting least recently used entries until the total
// cost fits. Values above the limit are not cached at all.
func (c *costCache) add(key string, value []byte) {
	c.lru.Remove(key)
	if len(value) > c.limit {
		return
	}
	c.lru.Add(key, value)
	c.cost += len(value)
	for c.cost > c.limit && c.lru.Len() > 1 {
		c.lru.RemoveOldest()
	}
}

func (c *costCache) remove(key string) {
	c.lru.Remove(key)
}

func (c *costCache) len() int {
	return c.lru.Len()
}
