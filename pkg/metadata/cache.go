package metadata

import (
	"sync"
	"time"
)

// DefaultTTL is how long a cached record stays valid. Airframe metadata
// changes rarely (re-registration, change of operator), so entries live
// for a day by default.
const DefaultTTL = 24 * time.Hour

// Cache is a TTL cache of aircraft metadata keyed by ICAO24 address.
//
// Expiry is checked lazily on read; there is no background sweep. Entries
// are overwritten on refresh and never deleted, so the cache is bounded by
// the number of distinct aircraft seen during the process lifetime. Safe
// for concurrent readers alongside a single writer.
type Cache struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time

	entries map[string]cacheEntry
}

// cacheEntry wraps a metadata record with its expiry instant.
type cacheEntry struct {
	meta    Aircraft
	expires time.Time
}

// NewCache creates a cache with the given TTL. A non-positive TTL falls
// back to DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached record for an aircraft, if present and not yet
// expired. An expired entry is reported as a miss; the stale record stays
// in place until the next Put overwrites it.
func (c *Cache) Get(icao24 string) (Aircraft, bool) {
	key := NormalizeICAO(icao24)

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expires) {
		return Aircraft{}, false
	}
	return entry.meta, true
}

// Put stores a record, unconditionally overwriting any previous entry and
// restarting its TTL.
func (c *Cache) Put(meta Aircraft) {
	key := NormalizeICAO(meta.ICAO24)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		meta:    meta,
		expires: c.now().Add(c.ttl),
	}
}

// Len returns the number of entries held, including expired ones that have
// not been overwritten yet.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
