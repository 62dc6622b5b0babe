package cache

import (
	"sync"
	"time"
)

const (
	defaultJanitorInterval = time.Minute
	fallbackTTL            = time.Second
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache. Expired entries are dropped
// lazily on read and swept periodically by a janitor goroutine.
type MemoryCache struct {
	mu         sync.RWMutex
	items      map[string]memoryItem
	defaultTTL time.Duration

	hits      uint64
	misses    uint64
	evictions uint64

	stop   chan struct{}
	closed bool
}

// MemoryOption tunes a MemoryCache.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	janitorInterval time.Duration
	defaultTTL      time.Duration
}

// WithJanitorInterval overrides the sweep cadence.
func WithJanitorInterval(interval time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		if interval > 0 {
			o.janitorInterval = interval
		}
	}
}

// WithDefaultTTL sets the expiry applied when Set is called without a
// positive TTL.
func WithDefaultTTL(ttl time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		if ttl > 0 {
			o.defaultTTL = ttl
		}
	}
}

// NewMemoryCache creates an in-process cache and starts its janitor.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	options := memoryOptions{
		janitorInterval: defaultJanitorInterval,
		defaultTTL:      fallbackTTL,
	}
	for _, opt := range opts {
		opt(&options)
	}

	c := &MemoryCache{
		items:      make(map[string]memoryItem),
		defaultTTL: options.defaultTTL,
		stop:       make(chan struct{}),
	}
	go c.janitor(options.janitorInterval)
	return c
}

func (c *MemoryCache) Get(key string) ([]byte, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, cacheError(ErrClosed, "")
	}
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		observeCacheResult("miss")
		return nil, ErrCacheMiss
	}
	if time.Now().After(item.expiresAt) {
		c.mu.Lock()
		if current, still := c.items[key]; still && current.expiresAt.Equal(item.expiresAt) {
			delete(c.items, key)
			c.evictions++
		}
		c.misses++
		c.mu.Unlock()
		observeCacheResult("miss")
		return nil, ErrCacheMiss
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	observeCacheResult("hit")
	return append([]byte{}, item.value...), nil
}

func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return cacheError(ErrClosed, "")
	}
	c.items[key] = memoryItem{
		value:     append([]byte{}, value...),
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (c *MemoryCache) Delete(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, cacheError(ErrClosed, "")
	}
	_, existed := c.items[key]
	delete(c.items, key)
	return existed, nil
}

func (c *MemoryCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return cacheError(ErrClosed, "")
	}
	c.items = make(map[string]memoryItem)
	return nil
}

func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Keys:      len(c.items),
		Evictions: c.evictions,
	}
}

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.stop)
	c.items = nil
	return nil
}

func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *MemoryCache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
			c.evictions++
		}
	}
}
