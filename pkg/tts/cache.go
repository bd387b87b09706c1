package tts

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
)

// Cache wraps a Provider with a content-addressed synthesis cache keyed by
// (voice, text). Entries are never invalidated within a run; spoken prompts
// repeat constantly on a kiosk and the audio for a given voice+text pair is
// stable.
type Cache struct {
	inner Provider

	mu      sync.RWMutex
	entries map[string]*AudioResult
	hits    uint64
	misses  uint64
}

// NewCache creates a caching wrapper around the given provider.
func NewCache(inner Provider) *Cache {
	return &Cache{
		inner:   inner,
		entries: make(map[string]*AudioResult),
	}
}

// Synthesize returns cached audio when available, delegating otherwise.
// Only successful results are cached.
func (c *Cache) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	key := cacheKey(req)

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return cached, nil
	}

	result, err := c.inner.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.misses++
	c.entries[key] = result
	c.mu.Unlock()
	return result, nil
}

// Health delegates to the wrapped provider.
func (c *Cache) Health(ctx context.Context) error {
	return c.inner.Health(ctx)
}

// Close delegates to the wrapped provider.
func (c *Cache) Close() error {
	return c.inner.Close()
}

// Stats returns cache hit/miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cacheKey derives a stable content address for a request.
func cacheKey(req Request) string {
	h := fnv.New64a()
	h.Write([]byte(req.Voice))
	h.Write([]byte{0})
	h.Write([]byte(req.Language))
	h.Write([]byte{0})
	h.Write([]byte(req.Text))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Verify Cache implements Provider at compile time.
var _ Provider = (*Cache)(nil)
