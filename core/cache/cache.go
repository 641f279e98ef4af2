// Package cache provides in-memory LRU caches. The math cache keeps LaTeX
// to MathML conversions of the current process in front of the persistent
// store, so a formula repeated within a quiz runs pandoc once.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a generic LRU cache interface.
type Cache[K comparable, V any] interface {
	// Get retrieves a value from the cache.
	Get(key K) (V, bool)

	// Put stores a value in the cache.
	Put(key K, value V)

	// Remove removes a value from the cache.
	Remove(key K)

	// Clear removes all entries from the cache.
	Clear()

	// Len returns the number of entries in the cache.
	Len() int

	// Stats returns cache statistics.
	Stats() Stats
}

// Stats contains cache statistics.
type Stats struct {
	Hits       int64
	Misses     int64
	Evictions  int64
	Size       int
	MaxSize    int
	TotalBytes int64
}

// HitRate returns the fraction of lookups that hit, or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Config contains cache configuration options.
type Config struct {
	// MaxSize is the maximum number of entries (0 = unlimited).
	MaxSize int

	// TTL is the time-to-live for entries (0 = no expiration).
	TTL time.Duration

	// OnEvict is called when an entry or a replaced value leaves the cache
	// for any reason other than Clear.
	OnEvict func(key, value interface{})
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{MaxSize: 1024}
}

// timeNow is replaced in tests to control expiry.
var timeNow = time.Now

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// lruCache is a thread-safe LRU cache implementation.
type lruCache[K comparable, V any] struct {
	mu        sync.Mutex
	config    Config
	entries   map[K]*list.Element
	evictList *list.List
	stats     Stats
}

// NewLRUCache creates a new LRU cache with the given configuration.
func NewLRUCache[K comparable, V any](config Config) Cache[K, V] {
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}
	return &lruCache[K, V]{
		config:    config,
		entries:   make(map[K]*list.Element),
		evictList: list.New(),
	}
}

func (c *lruCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if c.config.TTL > 0 && timeNow().After(e.expiresAt) {
		c.removeElement(el)
		c.stats.Misses++
		return zero, false
	}
	c.evictList.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

func (c *lruCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.evictList.MoveToFront(el)
		e := el.Value.(*entry[K, V])
		if c.config.OnEvict != nil {
			c.config.OnEvict(e.key, e.value)
		}
		e.value = value
		e.expiresAt = c.expiry()
		return
	}

	el := c.evictList.PushFront(&entry[K, V]{key: key, value: value, expiresAt: c.expiry()})
	c.entries[key] = el
	if c.config.MaxSize > 0 && c.evictList.Len() > c.config.MaxSize {
		c.removeOldest()
	}
}

func (c *lruCache[K, V]) expiry() time.Time {
	if c.config.TTL <= 0 {
		return time.Time{}
	}
	return timeNow().Add(c.config.TTL)
}

func (c *lruCache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
}

func (c *lruCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*list.Element)
	c.evictList.Init()
}

func (c *lruCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

func (c *lruCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = c.evictList.Len()
	s.MaxSize = c.config.MaxSize
	return s
}

func (c *lruCache[K, V]) removeOldest() {
	if el := c.evictList.Back(); el != nil {
		c.removeElement(el)
		c.stats.Evictions++
	}
}

func (c *lruCache[K, V]) removeElement(el *list.Element) {
	c.evictList.Remove(el)
	e := el.Value.(*entry[K, V])
	delete(c.entries, e.key)
	if c.config.OnEvict != nil {
		c.config.OnEvict(e.key, e.value)
	}
}

// BoundedCache is an LRU cache that also bounds the total size of its
// values. Entries are evicted oldest first until a new value fits.
type BoundedCache[K comparable, V any] struct {
	mu       sync.Mutex
	cache    Cache[K, V]
	maxBytes int64
	size     int64
	sizeFunc func(V) int64
	order    *list.List // keys, most recent first
	keys     map[K]*list.Element
}

// NewBoundedCache creates a cache with both entry count and byte size
// limits. config.OnEvict is chained after the size bookkeeping.
func NewBoundedCache[K comparable, V any](config Config, maxBytes int64, sizeFunc func(V) int64) *BoundedCache[K, V] {
	b := &BoundedCache[K, V]{
		maxBytes: maxBytes,
		sizeFunc: sizeFunc,
		order:    list.New(),
		keys:     make(map[K]*list.Element),
	}
	next := config.OnEvict
	config.OnEvict = func(key, value interface{}) {
		b.forget(key.(K), value.(V))
		if next != nil {
			next(key, value)
		}
	}
	b.cache = NewLRUCache[K, V](config)
	return b
}

// forget runs under the lock of the caller that triggered the eviction.
func (b *BoundedCache[K, V]) forget(key K, value V) {
	b.size -= b.sizeFunc(value)
	if el, ok := b.keys[key]; ok {
		b.order.Remove(el)
		delete(b.keys, key)
	}
}

// Get retrieves a value from the cache.
func (b *BoundedCache[K, V]) Get(key K) (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.cache.Get(key)
	if ok {
		b.order.MoveToFront(b.keys[key])
	}
	return v, ok
}

// Put stores a value. Values larger than the byte limit are not cached.
func (b *BoundedCache[K, V]) Put(key K, value V) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := b.sizeFunc(value)
	if b.maxBytes > 0 && size > b.maxBytes {
		return
	}
	b.cache.Remove(key)
	if b.maxBytes > 0 {
		for b.size+size > b.maxBytes && b.order.Len() > 0 {
			b.cache.Remove(b.order.Back().Value.(K))
		}
	}
	b.cache.Put(key, value)
	b.size += size
	b.keys[key] = b.order.PushFront(key)
	// The LRU may have dropped an entry on its count limit; forget has
	// already adjusted size and order for it.
}

// Remove removes a value from the cache.
func (b *BoundedCache[K, V]) Remove(key K) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache.Remove(key)
}

// Clear removes all entries from the cache.
func (b *BoundedCache[K, V]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cache.Clear()
	b.order.Init()
	b.keys = make(map[K]*list.Element)
	b.size = 0
}

// Len returns the number of entries in the cache.
func (b *BoundedCache[K, V]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cache.Len()
}

// Stats returns cache statistics including byte size information.
func (b *BoundedCache[K, V]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.cache.Stats()
	s.TotalBytes = b.size
	return s
}

// MathCache maps LaTeX source to converted markup.
type MathCache struct {
	cache *BoundedCache[string, string]
}

// NewMathCache creates a math cache holding at most maxEntries
// conversions and maxBytes of markup (0 = unlimited).
func NewMathCache(maxEntries int, maxBytes int64) *MathCache {
	config := DefaultConfig()
	config.MaxSize = maxEntries
	return &MathCache{
		cache: NewBoundedCache[string, string](config, maxBytes, func(s string) int64 { return int64(len(s)) }),
	}
}

// Get returns the markup cached for latex.
func (c *MathCache) Get(latex string) (string, bool) {
	return c.cache.Get(latex)
}

// Put caches the markup for latex.
func (c *MathCache) Put(latex, markup string) {
	c.cache.Put(latex, markup)
}

// Clear drops every cached conversion.
func (c *MathCache) Clear() {
	c.cache.Clear()
}

// Len returns the number of cached conversions.
func (c *MathCache) Len() int {
	return c.cache.Len()
}

// Stats returns cache statistics.
func (c *MathCache) Stats() Stats {
	return c.cache.Stats()
}
