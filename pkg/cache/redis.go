package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisCacheTimeout = 2 * time.Second

// RedisCache is a namespaced Redis-backed cache. TTL eviction is
// delegated to Redis; hit/miss stats are tracked client-side.
type RedisCache struct {
	client     *redis.Client
	namespace  string
	timeout    time.Duration
	defaultTTL time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// RedisOption tunes a RedisCache.
type RedisOption func(*RedisCache)

// WithRedisDefaultTTL sets the expiry applied when Set is called without
// a positive TTL.
func WithRedisDefaultTTL(ttl time.Duration) RedisOption {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// NewRedisCache creates a cache on an existing Redis client. All keys
// are prefixed with namespace so multiple logical caches can share one
// Redis instance.
func NewRedisCache(client *redis.Client, namespace string, opts ...RedisOption) (*RedisCache, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if namespace == "" {
		return nil, errors.New("cache namespace is required")
	}
	c := &RedisCache{
		client:     client,
		namespace:  namespace,
		timeout:    defaultRedisCacheTimeout,
		defaultTTL: fallbackTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *RedisCache) Get(key string) ([]byte, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}
	ctx, cancel := c.opContext()
	defer cancel()

	value, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		observeCacheResult("miss")
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	c.hits.Add(1)
	observeCacheResult("hit")
	return value, nil
}

func (c *RedisCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.guard(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	ctx, cancel := c.opContext()
	defer cancel()
	return c.client.Set(ctx, c.fullKey(key), value, ttl).Err()
}

func (c *RedisCache) Delete(key string) (bool, error) {
	if err := c.guard(); err != nil {
		return false, err
	}
	ctx, cancel := c.opContext()
	defer cancel()

	deleted, err := c.client.Del(ctx, c.fullKey(key)).Result()
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

func (c *RedisCache) Flush() error {
	if err := c.guard(); err != nil {
		return err
	}
	ctx, cancel := c.opContext()
	defer cancel()

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.namespace+":*", 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *RedisCache) Stats() Stats {
	keys := 0
	if c.guard() == nil {
		ctx, cancel := c.opContext()
		defer cancel()
		var cursor uint64
		for {
			batch, next, err := c.client.Scan(ctx, cursor, c.namespace+":*", 200).Result()
			if err != nil {
				break
			}
			keys += len(batch)
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Keys:   keys,
	}
}

// Close marks the cache closed. The shared Redis client is owned by the
// store adapter and stays open.
func (c *RedisCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *RedisCache) guard() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return cacheError(ErrClosed, "")
	}
	return nil
}

func (c *RedisCache) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

func (c *RedisCache) fullKey(key string) string {
	return c.namespace + ":" + key
}
