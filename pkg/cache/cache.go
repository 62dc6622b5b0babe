// Package cache provides named TTL caches behind one operational surface
// (stats, flush, single-key delete) plus the process-wide registry that
// addresses them.
package cache

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCacheMiss indicates that a cache key was not found.
	ErrCacheMiss = errors.New("cache key not found")
	// ErrNotFound indicates an unknown cache name.
	ErrNotFound = errors.New("cache not found")
	// ErrClosed indicates operations on a closed cache.
	ErrClosed = errors.New("cache closed")
)

func cacheError(kind error, message string) error {
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}

// Stats is the observability snapshot of one cache.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Keys      int    `json:"keys"`
	Evictions uint64 `json:"evictions"`
}

// Cache is one independently-owned key/value cache. Each implementation
// manages its own TTL and eviction policy.
type Cache interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
	// Delete reports whether the key existed. Absence is not an error.
	Delete(key string) (bool, error)
	// Flush clears every entry.
	Flush() error
	Stats() Stats
	Close() error
}
