package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
)

// Default limits used when a Config leaves them unset.
const (
	DefaultMaxSize = 200
	DefaultTTL     = 5 * time.Minute
)

// Config bounds a cache. MaxSize <= 0 means unbounded, TTL 0 means entries
// never expire.
type Config struct {
	MaxSize int
	TTL     time.Duration
}

// DefaultConfig returns the limits used for schema-derived artifacts.
func DefaultConfig() Config {
	return Config{MaxSize: DefaultMaxSize, TTL: DefaultTTL}
}

// Update changes a live cache. Nil fields are left as they are.
type Update struct {
	MaxSize *int
	TTL     *time.Duration
}

type Stats struct {
	Size      int           `json:"size"`
	MaxSize   int           `json:"maxSize"`
	TTL       time.Duration `json:"ttl"`
	Hits      uint64        `json:"hits"`
	Misses    uint64        `json:"misses"`
	Evictions uint64        `json:"evictions"`
	Expired   uint64        `json:"expired"`
}

type Option[K comparable, V any] func(*Cache[K, V])

// WithClock replaces time.Now.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) { c.now = now }
}

// WithOnEvict registers a callback run for entries dropped to make room.
// It runs with the cache lock held and must not call back into the cache.
func WithOnEvict[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *Cache[K, V]) { c.onEvict = fn }
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
	order     *list.Element
}

// Cache is a size-bounded map with per-entry expiry. When full, the entry
// inserted first is evicted (FIFO); reads do not refresh position.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	data    map[K]*entry[K, V]
	order   *list.List
	maxSize int
	ttl     time.Duration

	hits, misses, evictions, expired uint64

	now     func() time.Time
	onEvict func(K, V)
}

func New[K comparable, V any](cfg Config, opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		data:    make(map[K]*entry[K, V]),
		order:   list.New(),
		maxSize: cfg.MaxSize,
		ttl:     cfg.TTL,
		now:     time.Now,
	}
	if c.ttl < 0 {
		c.ttl = 0
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key. An expired entry is removed and reported
// as missing.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(key)
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Has reports whether key is present and fresh. It does not touch hit stats.
func (c *Cache[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.lookup(key)
	return ok
}

// Set stores value with the cache TTL.
func (c *Cache[K, V]) Set(key K, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.put(key, value, c.ttl)
}

// SetWithTTL stores value with its own TTL; 0 means no expiry.
func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl < 0 {
		return &apperrors.CacheError{Op: "set", Reason: "negative ttl"}
	}
	return c.put(key, value, ttl)
}

func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return false
	}
	c.remove(e)
	return true
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[K]*entry[K, V])
	c.order.Init()
}

// Len counts stored entries, including expired ones not yet collected.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.data)
}

// Keys lists fresh keys in insertion order.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	keys := make([]K, 0, len(c.data))
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry[K, V])
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			continue
		}
		keys = append(keys, e.key)
	}
	return keys
}

func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Size:      len(c.data),
		MaxSize:   c.maxSize,
		TTL:       c.ttl,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Expired:   c.expired,
	}
}

// UpdateConfig applies new limits. Shrinking MaxSize evicts the oldest
// entries before returning. A new TTL applies to entries set afterwards.
func (c *Cache[K, V]) UpdateConfig(u Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if u.TTL != nil {
		if *u.TTL < 0 {
			return &apperrors.CacheError{Op: "update", Reason: "negative ttl"}
		}
		c.ttl = *u.TTL
	}
	if u.MaxSize != nil {
		c.maxSize = *u.MaxSize
		if c.maxSize > 0 {
			for len(c.data) > c.maxSize {
				if err := c.evictOldest(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (c *Cache[K, V]) lookup(key K) (*entry[K, V], bool) {
	e, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.remove(e)
		c.expired++
		return nil, false
	}
	return e, true
}

func (c *Cache[K, V]) put(key K, value V, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if e, ok := c.data[key]; ok {
		// update in place: cardinality does not change, FIFO slot is kept
		e.value = value
		e.expiresAt = expiresAt
		return nil
	}

	if c.maxSize > 0 {
		for len(c.data) >= c.maxSize {
			if err := c.evictOldest(); err != nil {
				return err
			}
		}
	}

	e := &entry[K, V]{key: key, value: value, expiresAt: expiresAt}
	e.order = c.order.PushBack(e)
	c.data[key] = e
	return nil
}

func (c *Cache[K, V]) evictOldest() error {
	el := c.order.Front()
	if el == nil {
		return &apperrors.CacheError{Op: "evict", Reason: "order list empty while map holds entries"}
	}
	e := el.Value.(*entry[K, V])
	if _, ok := c.data[e.key]; !ok {
		return &apperrors.CacheError{Op: "evict", Reason: "order list references a missing key"}
	}
	c.remove(e)
	c.evictions++
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
	return nil
}

func (c *Cache[K, V]) remove(e *entry[K, V]) {
	c.order.Remove(e.order)
	delete(c.data, e.key)
}
