package lru

import (
	"container/list"
)

// Cache is a size-bounded map that evicts the least recently used entry
// once it holds more than its capacity. It is not safe for concurrent use;
// each trace parse owns its own cache.
type Cache[K comparable, V any] struct {
	capacity  int
	items     map[K]*list.Element
	evictList *list.List
	hits      int
	misses    int
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// NewCache creates a new LRU cache with the given capacity.
func NewCache[K comparable, V any](capacity int) *Cache[K, V] {
	return &Cache[K, V]{
		capacity:  capacity,
		items:     make(map[K]*list.Element),
		evictList: list.New(),
	}
}

// Add stores value under key, marking it as the most recently used entry.
func (c *Cache[K, V]) Add(key K, value V) {
	if elem, ok := c.items[key]; ok {
		c.evictList.MoveToFront(elem)
		elem.Value.(*entry[K, V]).value = value
		return
	}

	c.items[key] = c.evictList.PushFront(&entry[K, V]{key: key, value: value})

	if c.evictList.Len() > c.capacity {
		if elem := c.evictList.Back(); elem != nil {
			c.evictList.Remove(elem)
			delete(c.items, elem.Value.(*entry[K, V]).key)
		}
	}
}

// Get retrieves a value from the cache and marks it as recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	if elem, ok := c.items[key]; ok {
		c.evictList.MoveToFront(elem)
		c.hits++
		return elem.Value.(*entry[K, V]).value, true
	}
	c.misses++
	var zero V
	return zero, false
}

// Memo returns the cached value for key, computing and storing it with
// compute on a miss.
func (c *Cache[K, V]) Memo(key K, compute func(K) V) V {
	if v, ok := c.Get(key); ok {
		return v
	}
	v := compute(key)
	c.Add(key, v)
	return v
}

// Len returns the number of entries currently held.
func (c *Cache[K, V]) Len() int {
	return c.evictList.Len()
}

// Stats returns the number of lookups that hit and missed.
func (c *Cache[K, V]) Stats() (hits, misses int) {
	return c.hits, c.misses
}
