package cache

import (
	"sort"
	"strings"
	"sync"
)

// Registry addresses multiple named caches behind one operational
// surface. It is purely an addressing and fan-out layer; every cache
// keeps its own TTL and eviction policy.
//
// Registration is last-write-wins: caches are registered once at
// startup and are not expected to race.
type Registry struct {
	mu     sync.RWMutex
	caches map[string]Cache
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{caches: map[string]Cache{}}
}

// Register associates a logical name with a cache instance.
func (r *Registry) Register(name string, c Cache) {
	name = strings.TrimSpace(name)
	if name == "" || c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caches[name] = c
}

// Names returns the registered cache names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.caches))
	for name := range r.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns stats for one cache, or for every registered cache when
// name is empty.
func (r *Registry) Stats(name string) (map[string]Stats, error) {
	name = strings.TrimSpace(name)

	r.mu.RLock()
	targets := map[string]Cache{}
	if name == "" {
		for n, c := range r.caches {
			targets[n] = c
		}
	} else {
		c, ok := r.caches[name]
		if !ok {
			r.mu.RUnlock()
			return nil, cacheError(ErrNotFound, "unknown cache "+name)
		}
		targets[name] = c
	}
	r.mu.RUnlock()

	out := make(map[string]Stats, len(targets))
	for n, c := range targets {
		out[n] = c.Stats()
	}
	return out, nil
}

// Flush clears one named cache, or every registered cache when name is
// empty. The returned map holds a per-cache outcome (nil on success) so
// one cache's failure never aborts the others.
func (r *Registry) Flush(name string) (map[string]error, error) {
	name = strings.TrimSpace(name)

	r.mu.RLock()
	targets := map[string]Cache{}
	if name == "" {
		for n, c := range r.caches {
			targets[n] = c
		}
	} else {
		c, ok := r.caches[name]
		if !ok {
			r.mu.RUnlock()
			return nil, cacheError(ErrNotFound, "unknown cache "+name)
		}
		targets[name] = c
	}
	r.mu.RUnlock()

	outcomes := make(map[string]error, len(targets))
	for n, c := range targets {
		outcomes[n] = c.Flush()
		observeCacheFlush(n)
	}
	return outcomes, nil
}

// DeleteKey removes one key from one named cache. Returns ErrNotFound
// for an unknown cache name; an absent key is reported as false, not an
// error.
func (r *Registry) DeleteKey(name, key string) (bool, error) {
	name = strings.TrimSpace(name)

	r.mu.RLock()
	c, ok := r.caches[name]
	r.mu.RUnlock()
	if !ok {
		return false, cacheError(ErrNotFound, "unknown cache "+name)
	}
	return c.Delete(key)
}

// Close closes every registered cache.
func (r *Registry) Close() error {
	r.mu.Lock()
	caches := make([]Cache, 0, len(r.caches))
	for _, c := range r.caches {
		caches = append(caches, c)
	}
	r.caches = map[string]Cache{}
	r.mu.Unlock()

	var firstErr error
	for _, c := range caches {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
