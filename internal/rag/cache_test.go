package rag

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCache_PutGet(t *testing.T) {
	c := NewCache(10, time.Hour)
	key := CacheKey("qual a dose", 5, 0.1)

	if got := c.Get(key); got != nil {
		t.Fatal("expected miss on empty cache")
	}

	value := &Context{Query: "qual a dose", TierUsed: TierLexical}
	c.Put(key, value)

	got := c.Get(key)
	if got == nil {
		t.Fatal("expected hit after Put")
	}
	if got.Query != "qual a dose" {
		t.Errorf("cached Query = %q", got.Query)
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Stats = (%d, %d), want (1, 1)", hits, misses)
	}
}

func TestCacheKey_NormalizesQuery(t *testing.T) {
	a := CacheKey("  Qual a DOSE  ", 5, 0.1)
	b := CacheKey("qual a dose", 5, 0.1)
	if a != b {
		t.Error("trimmed/lowercased queries must share a key")
	}

	if CacheKey("qual a dose", 5, 0.1) == CacheKey("qual a dose", 3, 0.1) {
		t.Error("different maxChunks must produce different keys")
	}
	if CacheKey("qual a dose", 5, 0.1) == CacheKey("qual a dose", 5, 0.2) {
		t.Error("different minSimilarity must produce different keys")
	}
}

func TestCache_ExpiredEntryIsMiss(t *testing.T) {
	c := NewCache(10, 10*time.Millisecond)
	key := CacheKey("pergunta", 5, 0.1)
	c.Put(key, &Context{Query: "pergunta"})

	time.Sleep(20 * time.Millisecond)

	if got := c.Get(key); got != nil {
		t.Error("expired entry must read as miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not removed, Len = %d", c.Len())
	}
}

func TestCache_LRUEviction(t *testing.T) {
	c := NewCache(3, time.Hour)

	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("k%d", i), &Context{})
	}
	// Touch k0 so k1 becomes the least recently used.
	if c.Get("k0") == nil {
		t.Fatal("k0 should be present")
	}

	c.Put("k3", &Context{})

	if c.Get("k1") != nil {
		t.Error("k1 should have been evicted as LRU")
	}
	if c.Get("k0") == nil || c.Get("k3") == nil {
		t.Error("recently used entries were evicted")
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
}

func TestCache_PutRefreshesExisting(t *testing.T) {
	c := NewCache(10, time.Hour)
	key := CacheKey("pergunta", 5, 0.1)

	c.Put(key, &Context{Query: "velho"})
	c.Put(key, &Context{Query: "novo"})

	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1 after re-Put of same key", c.Len())
	}
	got := c.Get(key)
	if got == nil || got.Query != "novo" {
		t.Errorf("Get returned %+v, want refreshed value", got)
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache(100, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%20)
				c.Put(key, &Context{Query: key})
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 100 {
		t.Errorf("Len = %d exceeds capacity", c.Len())
	}
}
