package embedding

import (
	"container/list"
	"context"
	"sync"
)

// Cache is an LRU cache for embeddings keyed by text, wrapped around an
// inner Embedder.
type Cache struct {
	inner    Embedder
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value []float32
}

// NewCache wraps inner with an LRU of the given capacity.
func NewCache(inner Embedder, capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Cache{
		inner:    inner,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Embed returns the cached embedding for text when present, delegating to
// the inner embedder otherwise.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	if elem, ok := c.entries[text]; ok {
		c.lru.MoveToFront(elem)
		v := elem.Value.(*cacheEntry).value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.set(text, vec)
	c.mu.Unlock()
	return vec, nil
}

// set stores under the lock, evicting the oldest entry at capacity.
func (c *Cache) set(key string, value []float32) {
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}
	elem := c.lru.PushFront(&cacheEntry{key: key, value: value})
	c.entries[key] = elem
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

// EmbedBatch embeds each text through the cache.
func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the inner embedder's dimension.
func (c *Cache) Dimensions() int { return c.inner.Dimensions() }

// Close closes the inner embedder.
func (c *Cache) Close() error { return c.inner.Close() }
