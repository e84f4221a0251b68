// Package jfrlog wraps the standard library log package in the bracketed-tag
// convention the teacher's cache.go and pipeline.go use throughout
// (log.Printf("[CACHE_HIT] ...")) instead of adopting a structured logging
// library the teacher itself never reaches for.
package jfrlog

import "log"

// Tagf logs a bracketed-tag line: jfrlog.Tagf("QUERY_EVAL", "parsed %d ops", n)
// produces "[QUERY_EVAL] parsed %d ops".
func Tagf(tag, format string, args ...interface{}) {
	log.Printf("["+tag+"] "+format, args...)
}

// CacheHit logs a cache hit for key.
func CacheHit(key string) {
	Tagf("CACHE_HIT", "key=%s", key)
}

// CacheMiss logs a cache miss for key.
func CacheMiss(key string) {
	Tagf("CACHE_MISS", "key=%s", key)
}

// CacheEvict logs an LRU eviction of key, freeing size bytes.
func CacheEvict(key string, size int64) {
	Tagf("CACHE_EVICT", "key=%s size=%d", key, size)
}

// CacheInvalidate logs an invalidation sweep that dropped n entries for a
// recording identified by contentHash.
func CacheInvalidate(contentHash string, n int) {
	Tagf("CACHE_INVALIDATE", "hash=%s removed=%d", contentHash, n)
}

// QueryEval logs the start of a query evaluation against a recording path.
func QueryEval(path, query string) {
	Tagf("QUERY_EVAL", "path=%s query=%q", path, query)
}

// QueryError logs a failed query evaluation.
func QueryError(path, query string, err error) {
	Tagf("QUERY_ERROR", "path=%s query=%q err=%v", path, query, err)
}
