package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// LRU is a cost-bounded least-recently-used cache keyed by image identifier.
type LRU[V any] struct {
	mu        sync.Mutex
	capacity  int64
	cost      int64
	items     map[string]*list.Element
	evictList *list.List

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type entry[V any] struct {
	key   string
	value V
	cost  int64
}

// NewLRU creates a new LRU cache with the given total cost capacity.
// A capacity below 1 is raised to 1.
func NewLRU[V any](capacity int64) *LRU[V] {
	return &LRU[V]{
		capacity:  max(capacity, 1),
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// Take removes the entry for key and returns it.
func (c *LRU[V]) Take(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		v := ent.Value.(*entry[V]).value
		c.removeElement(ent)
		return v, true
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// Peek returns the entry for key without removing it and marks it recently used.
func (c *LRU[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry[V]).value, true
	}
	var zero V
	return zero, false
}

// Contains reports whether key is cached without touching recency.
func (c *LRU[V]) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Insert adds or replaces the entry for key. Costs below 1 count as 1.
// Least-recently-used entries are evicted until the total cost fits the
// capacity or only the new entry remains.
func (c *LRU[V]) Insert(key string, v V, cost int64) {
	cost = max(cost, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		e := ent.Value.(*entry[V])
		c.cost += cost - e.cost
		e.value = v
		e.cost = cost
		c.evictList.MoveToFront(ent)
	} else {
		c.items[key] = c.evictList.PushFront(&entry[V]{key: key, value: v, cost: cost})
		c.cost += cost
	}

	c.evict()
}

// SetCapacity changes the cost bound, evicting immediately if needed.
func (c *LRU[V]) SetCapacity(capacity int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.capacity = max(capacity, 1)
	c.evict()
}

// Invalidate removes entries matching the predicate.
func (c *LRU[V]) Invalidate(predicate func(key string, v V) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for _, element := range c.items {
		e := element.Value.(*entry[V])
		if predicate(e.key, e.value) {
			toRemove = append(toRemove, element)
		}
	}
	for _, e := range toRemove {
		c.removeElement(e)
	}
	return len(toRemove)
}

// Clear drops all entries.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.items)
	c.evictList.Init()
	c.cost = 0
}

// evict must be called with c.mu held. The front element is the most recent
// insert and is never evicted.
func (c *LRU[V]) evict() {
	for c.cost > c.capacity && c.evictList.Len() > 1 {
		c.removeElement(c.evictList.Back())
		c.evictions.Add(1)
	}
}

func (c *LRU[V]) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	kv := e.Value.(*entry[V])
	delete(c.items, kv.key)
	c.cost -= kv.cost
}

// Len returns the number of entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Cost returns the total cost of all entries.
func (c *LRU[V]) Cost() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cost
}

// Capacity returns the current cost bound.
func (c *LRU[V]) Capacity() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Keys returns the cached keys from most to least recently used.
func (c *LRU[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for e := c.evictList.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*entry[V]).key)
	}
	return keys
}

// Stats returns Take hit/miss counts and the number of capacity evictions.
func (c *LRU[V]) Stats() (hits, misses, evictions int64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}
