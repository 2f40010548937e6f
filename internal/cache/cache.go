// Package cache provides a small TTL cache for computed response
// text, keyed by a stable hash of subject and normalized query. Used
// by downstream lookups (intent, weather, calendar) to avoid repeated
// computation within a session window.
package cache

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

// Key derives a stable hash from a subject identifier and a query.
// The query is normalized so trivial formatting differences hit the
// same entry.
func Key(subject, query string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(subject))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	return h.Sum64()
}

type entry struct {
	value     string
	expiresAt time.Time
}

// Cache is a concurrency-safe in-memory TTL cache. A zero TTL keeps
// entries for the process lifetime.
type Cache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[uint64]entry

	now func() time.Time
}

// New creates a cache whose entries expire after ttl.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[uint64]entry),
		now:     time.Now,
	}
}

// Get returns the cached value for (subject, query), if present and
// not expired. Expired entries are removed on access.
func (c *Cache) Get(subject, query string) (string, bool) {
	key := Key(subject, query)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}

	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", false
	}
	return e.value, true
}

// Set stores the value for (subject, query).
func (c *Cache) Set(subject, query, value string) {
	e := entry{value: value}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	c.entries[Key(subject, query)] = e
	c.mu.Unlock()
}

// Delete removes the entry for (subject, query).
func (c *Cache) Delete(subject, query string) {
	c.mu.Lock()
	delete(c.entries, Key(subject, query))
	c.mu.Unlock()
}

// Len reports how many entries are held, including any not yet purged.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
