package cache

import (
	"sync"

	"jfrq/internal/jfrlog"
	"jfrq/internal/query/pipeline"
)

// DefaultMaxSize mirrors app/cache/cache.go's DefaultCacheMaxSize: 100MB of
// estimated entry size before eviction kicks in.
const DefaultMaxSize = 100 * 1024 * 1024

// Entry is one cached, fully pipelined query result: the rows produced by
// evaluating a query and running every pipeline stage, including the
// non-cacheable decorate stages (a fresh Evaluate always re-streams; only a
// later Session.ApplyToRows on these materialized rows skips them).
type Entry struct {
	Rows []*pipeline.Row
	Size int64
}

func estimateSize(rows []*pipeline.Row) int64 {
	var size int64
	for _, r := range rows {
		for _, k := range r.Keys() {
			size += int64(len(k)) + 16 // rough per-value overhead, matching
			// app/cache/cache.go's calculateEntrySizeWithOriginal's
			// string-length-plus-constant-overhead heuristic.
		}
	}
	return size
}

// Cache is a size-bounded LRU over query results, keyed by BuildKey's
// content-hash+query+pipeline string (spec §4.6: a Session's ApplyToRows
// lets a cached variable grow its pipeline without re-streaming the
// recording). Adapted from app/cache/cache.go's Cache, trimmed to the one
// entry kind jfrq needs.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	lru     *LRUList
	size    int64
	maxSize int64
}

// New returns an empty cache bounded at maxSize estimated bytes.
func New(maxSize int64) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache{
		entries: make(map[string]*Entry),
		lru:     NewLRUList(),
		maxSize: maxSize,
	}
}

// Get returns the cached rows for key, marking key most-recently-used.
func (c *Cache) Get(key string) ([]*pipeline.Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		jfrlog.CacheMiss(key)
		return nil, false
	}
	c.lru.MoveToFront(key)
	jfrlog.CacheHit(key)
	return e.Rows, true
}

// Store records rows under key, evicting least-recently-used entries first
// if the cache would exceed maxSize.
func (c *Cache) Store(key string, rows []*pipeline.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, exists := c.entries[key]; exists {
		c.size -= old.Size
		c.lru.Remove(key)
	}
	size := estimateSize(rows)
	for c.size+size > c.maxSize && c.lru.Size() > 0 {
		oldest := c.lru.RemoveOldest()
		if old, ok := c.entries[oldest]; ok {
			c.size -= old.Size
			delete(c.entries, oldest)
			jfrlog.CacheEvict(oldest, old.Size)
		}
	}
	c.entries[key] = &Entry{Rows: rows, Size: size}
	c.lru.AddToFront(key)
	c.size += size
}

// Remove drops key from the cache, a no-op if absent.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, exists := c.entries[key]; exists {
		c.size -= old.Size
		delete(c.entries, key)
		c.lru.Remove(key)
	}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	c.lru = NewLRUList()
	c.size = 0
}

// Size reports the cache's current estimated byte size.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// EntryCount reports the number of cached entries.
func (c *Cache) EntryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// InvalidateHash drops every entry keyed under contentHash, for when a
// recording on disk has changed and its content hash no longer matches.
func (c *Cache) InvalidateHash(contentHash string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed int
	for key := range c.entries {
		if !IsKeyForHash(key, contentHash) {
			continue
		}
		c.size -= c.entries[key].Size
		delete(c.entries, key)
		c.lru.Remove(key)
		removed++
	}
	return removed
}
