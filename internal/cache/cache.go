// Package cache memoizes expensive reads behind structured keys so the
// caller can invalidate exactly the entries a mutation touched.
package cache

import (
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Group tags the keys that one class of mutation invalidates together.
type Group string

// Key addresses one cached result: a group plus an optional scope such
// as a path, a branch name, or a config key.
type Key struct {
	Group Group
	Scope string
}

func (k Key) String() string {
	if k.Scope == "" {
		return string(k.Group)
	}
	return string(k.Group) + ":" + k.Scope
}

type entry struct {
	value any
}

// Cache is a memoizing key/value store. Concurrent readers of a cold
// key share one in-flight computation, and hits return the stored
// value itself so result identity is preserved until invalidation.
type Cache struct {
	mu sync.RWMutex
	// entries holds settled values; vers counts invalidations per key
	// so a computation that raced an invalidation is never stored.
	entries map[Key]*entry
	vers    map[Key]uint64
	flight  singleflight.Group
}

func New() *Cache {
	return &Cache{
		entries: make(map[Key]*entry),
		vers:    make(map[Key]uint64),
	}
}

// GetOrSet returns the memoized value for key, computing it at most
// once across concurrent callers on a miss. Failed computations are
// not stored; the next read retries.
func (c *Cache) GetOrSet(key Key, compute func() (any, error)) (any, error) {
	c.mu.RLock()
	if e, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return e.value, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.flight.Do(key.String(), func() (any, error) {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok {
			c.mu.Unlock()
			return e.value, nil
		}
		// Writing the version back registers unseen keys, so group
		// invalidation covers reads that are still in flight.
		before := c.vers[key]
		c.vers[key] = before
		c.mu.Unlock()

		value, err := compute()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.vers[key] == before {
			c.entries[key] = &entry{value: value}
		}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Peek returns the stored value without computing anything.
func (c *Cache) Peek(key Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[key]; ok {
		return e.value, true
	}
	return nil, false
}

// Invalidate drops the given keys.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.dropLocked(key)
	}
}

// InvalidateGroups drops every key in the given groups regardless of
// scope.
func (c *Cache) InvalidateGroups(groups ...Group) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range groups {
		for key := range c.vers {
			if key.Group == g {
				c.dropLocked(key)
			}
		}
	}
}

// InvalidateScopePrefix drops every key in group whose scope starts
// with prefix.
func (c *Cache) InvalidateScopePrefix(g Group, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.vers {
		if key.Group == g && strings.HasPrefix(key.Scope, prefix) {
			c.dropLocked(key)
		}
	}
}

// Clear drops everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.vers {
		c.dropLocked(key)
	}
}

func (c *Cache) dropLocked(key Key) {
	delete(c.entries, key)
	c.vers[key]++
	c.flight.Forget(key.String())
}

// Len reports how many settled entries are stored.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
