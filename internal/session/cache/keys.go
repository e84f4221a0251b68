package cache

import "strings"

// BuildKey composes a cache key from a recording's content hash and its
// query string (Session passes the raw query text; nothing normalizes it),
// pipe-delimited in the same "field:value|field:value"
// convention app/cache/keys.go's ExtractStageCount/IsCacheKeyPrefix assume of
// their cache keys.
func BuildKey(contentHash, normalizedQuery string) string {
	return "hash:" + contentHash + "|query:" + normalizedQuery
}

// IsKeyForHash reports whether key was built from contentHash, letting a
// Session invalidate every cached result for a recording whose content has
// changed without tracking keys separately (mirrors
// app/cache/keys.go's IsCacheKeyPrefix prefix-matching convention).
func IsKeyForHash(key, contentHash string) bool {
	prefix := "hash:" + contentHash + "|"
	return strings.HasPrefix(key, prefix)
}
