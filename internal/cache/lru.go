package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU cache with TTL and size-based eviction
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	onEvict func(key string, data T)
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache with TTL
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// OnEvict registers fn to run, outside the cache lock, for every entry
// dropped because of capacity, expiry or Purge.
func (c *LRUCache[T]) OnEvict(fn func(key string, data T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

func (c *LRUCache[T]) notify(fn func(string, T), dropped []*cacheItem[T]) {
	if fn == nil {
		return
	}
	for _, item := range dropped {
		fn(item.key, item.data)
	}
}

// Get retrieves a value from the cache
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])

	if time.Now().After(item.expiresAt) {
		c.removeElement(elem)
		fn := c.onEvict
		c.mu.Unlock()
		c.notify(fn, []*cacheItem[T]{item})
		return zero, false
	}

	c.lru.MoveToFront(elem)
	c.mu.Unlock()
	return item.data, true
}

// Set stores a value in the cache using the default TTL
func (c *LRUCache[T]) Set(key string, data T) {
	c.SetWithExpiry(key, data, time.Now().Add(c.ttl))
}

// SetWithExpiry stores a value that expires at the given instant
func (c *LRUCache[T]) SetWithExpiry(key string, data T, expiresAt time.Time) {
	c.mu.Lock()
	var evicted []*cacheItem[T]
	fn := c.onEvict
	defer func() {
		c.mu.Unlock()
		c.notify(fn, evicted)
	}()

	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: expiresAt,
	}

	// Check if key already exists
	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	// Add new item
	elem := c.lru.PushFront(item)
	c.items[key] = elem

	// Evict if over capacity
	if c.lru.Len() > c.maxSize {
		oldest := c.lru.Back()
		if oldest != nil {
			evicted = append(evicted, oldest.Value.(*cacheItem[T]))
			c.removeElement(oldest)
		}
	}
}

// Delete removes a key from the cache
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()

	now := time.Now()
	var toRemove []*list.Element
	var dropped []*cacheItem[T]

	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		item := elem.Value.(*cacheItem[T])
		if now.After(item.expiresAt) {
			toRemove = append(toRemove, elem)
			dropped = append(dropped, item)
		}
	}

	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	fn := c.onEvict
	c.mu.Unlock()

	c.notify(fn, dropped)
	return len(toRemove)
}

// Purge empties the cache, reporting every entry to the eviction handler.
func (c *LRUCache[T]) Purge() {
	c.mu.Lock()
	var dropped []*cacheItem[T]
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		dropped = append(dropped, elem.Value.(*cacheItem[T]))
	}
	c.items = make(map[string]*list.Element)
	c.lru.Init()
	fn := c.onEvict
	c.mu.Unlock()

	c.notify(fn, dropped)
}

// Peek returns a value even when expired, without touching recency.
// The boolean reports whether the value is still fresh.
func (c *LRUCache[T]) Peek(key string) (data T, fresh bool, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		return data, false, false
	}
	item := elem.Value.(*cacheItem[T])
	return item.data, !time.Now().After(item.expiresAt), true
}

// Size returns the current number of items in the cache
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}