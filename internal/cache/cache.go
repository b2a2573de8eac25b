// Package cache provides an in-process TTL cache with an LRU bound and
// tag-based invalidation. It fronts computed API payloads (market
// overview, portfolio valuations) that are cheap to rebuild but hot.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the cache when no explicit size is given.
const DefaultMaxEntries = 1024

type entry struct {
	key       string
	value     any
	tags      []string
	expiresAt time.Time
	elem      *list.Element
}

// Cache is a bounded TTL cache. All methods are safe for concurrent
// use. Expired entries are dropped lazily on read and when evicting.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]*entry
	byTag      map[string]map[string]struct{}
	lru        *list.List // front = most recently used
	now        func() time.Time

	hits   uint64
	misses uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries sets the LRU bound.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithClock overrides the clock, used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		maxEntries: DefaultMaxEntries,
		entries:    make(map[string]*entry),
		byTag:      make(map[string]map[string]struct{}),
		lru:        list.New(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores a value under key with the given TTL and tags. A
// non-positive TTL stores nothing.
func (c *Cache) Set(key string, value any, ttl time.Duration, tags ...string) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.remove(old)
	}

	e := &entry{
		key:       key,
		value:     value,
		tags:      tags,
		expiresAt: c.now().Add(ttl),
	}
	e.elem = c.lru.PushFront(e)
	c.entries[key] = e
	for _, tag := range tags {
		keys, ok := c.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}

	for c.lru.Len() > c.maxEntries {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.remove(oldest.Value.(*entry))
	}
}

// Get returns the cached value for key, if present and not expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.remove(e)
		c.misses++
		return nil, false
	}

	c.lru.MoveToFront(e.elem)
	c.hits++
	return e.value, true
}

// Delete removes a single key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.remove(e)
	}
}

// InvalidateTag removes every entry carrying the tag and returns how
// many were dropped. Writes that change a user's portfolio invalidate
// the user's tag rather than enumerating keys.
func (c *Cache) InvalidateTag(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.byTag[tag]
	if !ok {
		return 0
	}

	n := 0
	for key := range keys {
		if e, ok := c.entries[key]; ok {
			c.remove(e)
			n++
		}
	}
	return n
}

// Len returns the number of entries, including any not yet reaped.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// remove must be called with the lock held.
func (c *Cache) remove(e *entry) {
	delete(c.entries, e.key)
	c.lru.Remove(e.elem)
	for _, tag := range e.tags {
		if keys, ok := c.byTag[tag]; ok {
			delete(keys, e.key)
			if len(keys) == 0 {
				delete(c.byTag, tag)
			}
		}
	}
}
