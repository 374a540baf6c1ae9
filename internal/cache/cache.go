// Package cache provides thread-safe generic caching, with optional expiry,
// and the rendered markdown cache.
package cache

import (
	"sync"
	"time"
)

type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]V),
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.items[key]
	return val, ok
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]V)
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

type entry[V any] struct {
	value   V
	expires time.Time
}

// Expiring is a Cache whose entries stop being returned once their TTL has
// elapsed. A TTL of zero or less disables caching entirely.
type Expiring[K comparable, V any] struct {
	entries *Cache[K, entry[V]]
	ttl     time.Duration
	now     func() time.Time
}

func NewExpiring[K comparable, V any](ttl time.Duration) *Expiring[K, V] {
	return &Expiring[K, V]{
		entries: NewCache[K, entry[V]](),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *Expiring[K, V]) Get(key K) (V, bool) {
	e, ok := c.entries.Get(key)
	if !ok || !c.now().Before(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Expiring[K, V]) Set(key K, value V) {
	if c.ttl <= 0 {
		return
	}
	c.entries.Set(key, entry[V]{value: value, expires: c.now().Add(c.ttl)})
}

func (c *Expiring[K, V]) Delete(key K) {
	c.entries.Delete(key)
}

func (c *Expiring[K, V]) Clear() {
	c.entries.Clear()
}

// RenderedContent is cached rendered markdown with the renderer's extra data.
type RenderedContent struct {
	HTML  []byte
	Extra any
}

var renderedMarkdownCache = NewCache[string, *RenderedContent]()

func GetRenderedMarkdown(contentHash, renderer string) (*RenderedContent, bool) {
	return renderedMarkdownCache.Get(contentHash + ":" + renderer)
}

func SetRenderedMarkdown(contentHash, renderer string, html []byte, extra any) {
	renderedMarkdownCache.Set(contentHash+":"+renderer, &RenderedContent{
		HTML:  html,
		Extra: extra,
	})
}

func ClearRenderedMarkdownCache() {
	renderedMarkdownCache.Clear()
}
