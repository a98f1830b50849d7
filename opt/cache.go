package opt

import (
	"container/list"
	"sync"
	"time"
)

// CacheStats holds cache performance counters. Hits and misses are
// monotonically increasing for the lifetime of the cache.
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Entries   int     `json:"entries"`
	HitRate   float64 `json:"hit_rate"`
}

// cacheEntry is one stored result. expiresAt is zero for entries that never
// expire on their own (they remain subject to LRU eviction).
type cacheEntry struct {
	fingerprint string
	value       any
	createdAt   time.Time
	expiresAt   time.Time
}

// ContextAwareCache stores invocation results keyed by a fingerprint of
// (capability, arguments, cache-relevant context). Two calls differing only
// in irrelevant context fields (a request timestamp, say) hit the same
// entry. At most one live entry exists per fingerprint; a Put with an
// existing fingerprint replaces it atomically.
//
// Capacity is bounded by MaxEntries with least-recently-used eviction.
// Expired entries are dropped lazily on access and count as misses. The
// cache never calls a server; the caller invokes the capability on a miss
// and then calls Put. Safe for concurrent use.
type ContextAwareCache struct {
	mu          sync.Mutex
	maxEntries  int
	defaultTTL  time.Duration
	contextKeys []string

	entries map[string]*list.Element // fingerprint → element in order
	order   *list.List               // front = most recently used

	hits      int64
	misses    int64
	evictions int64
}

// NewContextAwareCache creates a cache from config. Zero MaxEntries falls
// back to the default capacity.
func NewContextAwareCache(cfg CacheConfig) *ContextAwareCache {
	max := cfg.MaxEntries
	if max <= 0 {
		max = DefaultCacheMaxEntries
	}
	return &ContextAwareCache{
		maxEntries:  max,
		defaultTTL:  time.Duration(cfg.DefaultTTL),
		contextKeys: cfg.ContextKeys,
		entries:     make(map[string]*list.Element),
		order:       list.New(),
	}
}

// Get looks up a prior result. A missing or expired entry counts as a miss
// and returns (nil, false); a hit refreshes the entry's recency.
func (c *ContextAwareCache) Get(capability string, args map[string]any, rctx RequestContext) (any, bool) {
	fp := Fingerprint(capability, args, rctx, c.contextKeys)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[fp]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.removeLocked(el)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return entry.value, true
}

// Put stores a result under the configured default TTL.
func (c *ContextAwareCache) Put(capability string, args map[string]any, rctx RequestContext, value any) {
	c.PutTTL(capability, args, rctx, value, c.defaultTTL)
}

// PutTTL stores a result with an explicit time-to-live. A ttl of zero means
// the entry never expires on its own.
func (c *ContextAwareCache) PutTTL(capability string, args map[string]any, rctx RequestContext, value any, ttl time.Duration) {
	fp := Fingerprint(capability, args, rctx, c.contextKeys)
	now := time.Now()
	entry := &cacheEntry{fingerprint: fp, value: value, createdAt: now}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[fp]; ok {
		el.Value = entry
		c.order.MoveToFront(el)
		return
	}
	if c.order.Len() >= c.maxEntries {
		if oldest := c.order.Back(); oldest != nil {
			c.removeLocked(oldest)
			c.evictions++
		}
	}
	c.entries[fp] = c.order.PushFront(entry)
}

// Invalidate removes the entry for one invocation shape. Returns true if an
// entry existed.
func (c *ContextAwareCache) Invalidate(capability string, args map[string]any, rctx RequestContext) bool {
	fp := Fingerprint(capability, args, rctx, c.contextKeys)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[fp]
	if !ok {
		return false
	}
	c.removeLocked(el)
	return true
}

// Len returns the number of live entries (expired-but-unvisited entries
// included, since expiry is lazy).
func (c *ContextAwareCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a consistent snapshot of the counters. HitRate is 0 when no
// lookups have been made.
func (c *ContextAwareCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   c.order.Len(),
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// removeLocked unlinks an element from both the map and the recency list.
// Caller holds c.mu.
func (c *ContextAwareCache) removeLocked(el *list.Element) {
	entry := el.Value.(*cacheEntry)
	delete(c.entries, entry.fingerprint)
	c.order.Remove(el)
}
