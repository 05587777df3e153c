package cache

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryCache is an in-process SessionCache. Entries live until the process exits.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Record

	stores     atomic.Int64
	overwrites atomic.Int64
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	// Entries is the number of sessions with a cached record.
	Entries int

	// Stores is the number of successful Store calls.
	Stores int64

	// Overwrites is the number of Store calls that replaced an existing record.
	Overwrites int64
}

// NewMemoryCache creates an empty in-memory session cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*Record),
	}
}

// Lookup returns the record for sessionID. Expired records are returned
// as-is; validity is decided by Policy.IsReusable.
func (c *MemoryCache) Lookup(_ context.Context, sessionID string) (*Record, bool) {
	c.mu.RLock()
	rec, ok := c.entries[sessionID]
	c.mu.RUnlock()
	return rec, ok
}

// Store inserts or overwrites the record for sessionID.
func (c *MemoryCache) Store(_ context.Context, sessionID string, rec *Record) error {
	if err := ValidateKey(sessionID); err != nil {
		return err
	}
	if rec == nil {
		return ErrNilRecord
	}

	c.mu.Lock()
	_, existed := c.entries[sessionID]
	c.entries[sessionID] = rec
	c.mu.Unlock()

	c.stores.Add(1)
	if existed {
		c.overwrites.Add(1)
	}
	return nil
}

// Len returns the number of cached sessions.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns current cache statistics.
func (c *MemoryCache) Stats() Stats {
	return Stats{
		Entries:    c.Len(),
		Stores:     c.stores.Load(),
		Overwrites: c.overwrites.Load(),
	}
}

// Ensure MemoryCache implements SessionCache
var _ SessionCache = (*MemoryCache)(nil)
