// Package session implements spec §4.6's thin Session/Variable contract over
// an open recording: recording_path(), available_event_types(), and
// apply_to_rows(rows, pipeline) for re-running cacheable pipeline stages
// against previously materialized rows without re-streaming. It is grounded
// on app/interfaces.FileTab's per-file state plus app/cache's size-bounded
// query-result cache, trimmed to a single open recording instead of a
// multi-tab CSV workspace.
package session

import (
	"fmt"

	"jfrq/internal/jfr/chunk"
	"jfrq/internal/jfrlog"
	"jfrq/internal/query/ast"
	"jfrq/internal/query/eval"
	"jfrq/internal/query/parse"
	"jfrq/internal/query/pipeline"
	"jfrq/internal/session/cache"
)

// Session owns one open recording and the query-result cache over it.
type Session struct {
	handle      *chunk.RecordingHandle
	contentHash string
	cache       *cache.Cache
	progress    pipeline.ProgressCallback
}

// SetProgressCallback registers a callback receiving per-stage start/complete
// reports (pipeline.ProgressTracker) for every subsequent Evaluate call that
// is not served from cache. A nil callback disables reporting.
func (s *Session) SetProgressCallback(cb pipeline.ProgressCallback) {
	s.progress = cb
}

// Open opens path as a JFR recording and fingerprints its chunk headers
// (ContentHash) so cached results can later be invalidated if the file on
// disk changes underneath the session. The query-result cache is bounded at
// cache.DefaultMaxSize; use OpenWithCacheSize to apply a configured limit.
func Open(path string) (*Session, error) {
	return OpenWithCacheSize(path, cache.DefaultMaxSize)
}

// OpenWithCacheSize is Open with an explicit cache size bound in bytes,
// typically config.Config.CacheSizeLimitBytes() from a loaded settings file.
func OpenWithCacheSize(path string, maxCacheBytes int64) (*Session, error) {
	h, err := chunk.Open(path)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	hash, err := ContentHash(h)
	if err != nil {
		return nil, err
	}
	return &Session{handle: h, contentHash: hash, cache: cache.New(maxCacheBytes)}, nil
}

// RecordingPath implements spec §4.6's recording_path().
func (s *Session) RecordingPath() string {
	return s.handle.Path()
}

// AvailableEventTypes implements spec §4.6's available_event_types(), which
// may return an empty set when the recording carries no declared metadata
// (spec §3.2 allows evaluation to proceed regardless).
func (s *Session) AvailableEventTypes() (map[string]struct{}, error) {
	return s.handle.DeclaredEventTypeNames()
}

// Evaluate runs query end-to-end: parse, stream-evaluate against the live
// recording, then run every pipeline stage (including decorateByTime/
// decorateByKey, which need the live handle). The full result is cached
// under the recording's content hash plus the raw query text so a later
// Variable can replay cacheable stages via ApplyToRows without re-streaming.
func (s *Session) Evaluate(query string) ([]*pipeline.Row, error) {
	key := cache.BuildKey(s.contentHash, query)
	if rows, ok := s.cache.Get(key); ok {
		return rows, nil
	}

	jfrlog.QueryEval(s.handle.Path(), query)

	q, err := parse.Parse(query)
	if err != nil {
		jfrlog.QueryError(s.handle.Path(), query, err)
		return nil, fmt.Errorf("session: %w", err)
	}

	fms, err := eval.Evaluate(s.handle, q)
	if err != nil {
		jfrlog.QueryError(s.handle.Path(), query, err)
		return nil, fmt.Errorf("session: %w", err)
	}
	rows := pipeline.FromFieldMaps(fms)

	ctx := &pipeline.Context{Handle: s.handle, Progress: s.progress}
	rows, err = pipeline.Run(ctx, rows, q.Pipeline)
	if err != nil {
		jfrlog.QueryError(s.handle.Path(), query, err)
		return nil, fmt.Errorf("session: %w", err)
	}

	s.cache.Store(key, rows)
	return rows, nil
}

// ApplyToRows implements spec §4.6's apply_to_rows(rows, pipeline): it
// re-runs every cacheable stage in ops against rows without touching the
// recording, silently skipping decorateByTime/decorateByKey (pipeline.
// ApplyCacheable). This is what lets a cached Variable grow a new downstream
// operator chain on a later access without re-evaluating the base query.
func (s *Session) ApplyToRows(rows []*pipeline.Row, ops []ast.PipelineOp) ([]*pipeline.Row, error) {
	return pipeline.ApplyCacheable(rows, ops)
}

// InvalidateCache drops every cached result for this recording's current
// content hash, for callers that know the underlying file has changed.
func (s *Session) InvalidateCache() int {
	n := s.cache.InvalidateHash(s.contentHash)
	jfrlog.CacheInvalidate(s.contentHash, n)
	return n
}
