package embed

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// vectorCache memoizes per-text embeddings with bounded LRU eviction.
// Keys are hash(model_id, text) so a model change never serves stale vectors.
//
// Safe for concurrent use.
type vectorCache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	capacity int
}

type cacheItem struct {
	key    string
	vector []float32
}

func newVectorCache(capacity int) *vectorCache {
	if capacity < 1 {
		capacity = 1
	}
	return &vectorCache{
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
		capacity: capacity,
	}
}

// cacheKey derives the cache key from model id and text.
func cacheKey(modelID, text string) string {
	sum := sha256.Sum256([]byte(modelID + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (c *vectorCache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheItem).vector, true
}

func (c *vectorCache) put(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheItem).vector = vector
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}

	el := c.order.PushFront(&cacheItem{key: key, vector: vector})
	c.entries[key] = el
}

// evictOldest drops the least recently used 10% of entries (at least one),
// so a full cache doesn't thrash on every subsequent insert.
func (c *vectorCache) evictOldest() {
	n := c.capacity / 10
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		back := c.order.Back()
		if back == nil {
			return
		}
		c.order.Remove(back)
		delete(c.entries, back.Value.(*cacheItem).key)
	}
}

func (c *vectorCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
