package rag

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Cache memoizes assembled contexts keyed by normalized query and retrieval
// parameters. Entries expire after a TTL and the cache is capacity-bounded
// with least-recently-used eviction. An expired entry reads as a miss.
//
// Concurrent get/put on the same key are safe; a stampede of concurrent
// misses for one key is allowed to recompute redundantly rather than
// coalescing requests.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	capacity int
	ttl      time.Duration

	hits   int64
	misses int64
}

type cacheEntry struct {
	key       string
	value     *Context
	expiresAt time.Time
}

// NewCache creates a cache holding at most capacity contexts for ttl each.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Cache{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
	}
}

// CacheKey derives the deterministic lookup key for a query and its
// retrieval parameters. The query is trimmed and lowercased first, so
// trivially restated queries share an entry. The key is tier-agnostic.
func CacheKey(query string, maxChunks int, minSimilarity float64) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%g", normalized, maxChunks, minSimilarity))
	return hex.EncodeToString(sum[:16])
}

// Get returns the cached context for key, or nil on a miss. Expired entries
// are removed and count as misses.
func (c *Cache) Get(key string) *Context {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil
	}
	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.entries, key)
		c.misses++
		return nil
	}

	c.order.MoveToFront(elem)
	c.hits++
	return entry.value
}

// Put stores value under key, refreshing recency and expiry if the key is
// already present.
func (c *Cache) Put(key string, value *Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	elem := c.order.PushFront(&cacheEntry{key: key, value: value, expiresAt: expiresAt})
	c.entries[key] = elem
}

// Len returns the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// evictOldest removes the least-recently-used entry. Caller holds the lock.
func (c *Cache) evictOldest() {
	back := c.order.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*cacheEntry)
	c.order.Remove(back)
	delete(c.entries, entry.key)
}
