package lru

import (
	"container/list"
	"sync"
	"time"
)

// EvictCallback is used to get a callback when a cache entry is evicted
type EvictCallback[K comparable, V any] func(key K, value V)

// LRU a thread-safe LRU with expirable entries, expired entries are dropped lazily
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	size    int
	ttl     time.Duration
	items   map[K]*list.Element
	order   *list.List // front is newest
	onEvict EvictCallback[K, V]
	now     func() time.Time
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// NewLRU returns a new cache, size 0 is unbounded and ttl 0 never expires
func NewLRU[K comparable, V any](size int, onEvict EvictCallback[K, V], ttl time.Duration) *LRU[K, V] {
	if size < 0 {
		size = 0
	}
	if ttl < 0 {
		ttl = 0
	}

	return &LRU[K, V]{
		size:    size,
		ttl:     ttl,
		items:   make(map[K]*list.Element),
		order:   list.New(),
		onEvict: onEvict,
		now:     time.Now,
	}
}

// Add adds a value to the cache, returns true if an eviction occurred
func (c *LRU[K, V]) Add(key K, value V) (evicted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if e, ok := c.items[key]; ok {
		c.order.MoveToFront(e)
		ent := e.Value.(*entry[K, V])
		ent.value, ent.expiresAt = value, expiresAt
		return false
	}

	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})

	if c.size > 0 && c.order.Len() > c.size {
		c.removeElement(c.order.Back())
		return true
	}
	return false
}

// Get looks up a key's value and marks it as recently used
func (c *LRU[K, V]) Get(key K) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return value, false
	}
	if c.expired(e) {
		c.removeElement(e)
		return value, false
	}
	c.order.MoveToFront(e)
	return e.Value.(*entry[K, V]).value, true
}

// Contains checks if a live key is in the cache without updating recency
func (c *LRU[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	return ok && !c.expired(e)
}

// Remove removes the key, reports whether it was present
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.removeElement(e)
		return true
	}
	return false
}

// Keys live keys, oldest first
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deleteExpired()
	keys := make([]K, 0, c.order.Len())
	for e := c.order.Back(); e != nil; e = e.Prev() {
		keys = append(keys, e.Value.(*entry[K, V]).key)
	}
	return keys
}

// Values live values, oldest first
func (c *LRU[K, V]) Values() []V {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deleteExpired()
	values := make([]V, 0, c.order.Len())
	for e := c.order.Back(); e != nil; e = e.Prev() {
		values = append(values, e.Value.(*entry[K, V]).value)
	}
	return values
}

// Len number of live entries
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deleteExpired()
	return c.order.Len()
}

// Purge removes all entries, calling the evict callback for each
func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.order.Back(); e != nil; e = c.order.Back() {
		c.removeElement(e)
	}
}

func (c *LRU[K, V]) expired(e *list.Element) bool {
	ent := e.Value.(*entry[K, V])
	return !ent.expiresAt.IsZero() && !c.now().Before(ent.expiresAt)
}

func (c *LRU[K, V]) deleteExpired() {
	if c.ttl == 0 {
		return
	}
	for e := c.order.Back(); e != nil; {
		prev := e.Prev()
		if c.expired(e) {
			c.removeElement(e)
		}
		e = prev
	}
}

func (c *LRU[K, V]) removeElement(e *list.Element) {
	ent := c.order.Remove(e).(*entry[K, V])
	delete(c.items, ent.key)
	if c.onEvict != nil {
		c.onEvict(ent.key, ent.value)
	}
}
