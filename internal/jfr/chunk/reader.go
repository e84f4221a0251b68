package chunk

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
	"os"
)

// RecordingHandle is the result of Open: a file path plus its derived chunk
// list, immutable across the handle's lifetime (spec §3.1).
type RecordingHandle struct {
	path   string
	chunks []chunkData
}

type chunkData struct {
	summary ChunkSummary
	logical []byte // uncompressed header+events+metadata+checkpoint bytes
	pools   constantPools
	types   []TypeInfo
	parsed  bool
}

// Open reads path (optionally wrapped in gzip/bzip2/xz, auto-detected by
// magic bytes — the same approach as the teacher's
// fileloader.DetectCompressionByMagic/DecompressFile) and splits it into its
// constituent chunks (spec §4.1, §6.1).
func Open(path string) (*RecordingHandle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &IoError{Cause: err}
	}

	raw, err = unwrapOuterCompression(raw)
	if err != nil {
		return nil, &IoError{Cause: err}
	}

	if len(raw) < headerFixedSize {
		return nil, &InvalidFormatError{Path: path}
	}

	var chunks []chunkData
	offset := int64(0)
	index := 0
	for offset < int64(len(raw)) {
		if int64(len(raw))-offset < headerFixedSize {
			return nil, &CorruptRecordingError{ChunkIndex: index, Offset: offset, Reason: "truncated chunk header"}
		}
		headerBuf := raw[offset : offset+headerFixedSize]
		if headerBuf[0] != magic[0] || headerBuf[1] != magic[1] || headerBuf[2] != magic[2] || headerBuf[3] != magic[3] {
			if index == 0 {
				return nil, &InvalidFormatError{Path: path}
			}
			return nil, &CorruptRecordingError{ChunkIndex: index, Offset: offset, Reason: "bad chunk magic"}
		}
		h, err := readHeader(bytes.NewReader(headerBuf))
		if err != nil {
			return nil, &CorruptRecordingError{ChunkIndex: index, Offset: offset, Reason: err.Error()}
		}
		if offset+h.ChunkSize > int64(len(raw)) {
			return nil, &CorruptRecordingError{ChunkIndex: index, Offset: offset, Reason: "chunk size exceeds file length"}
		}

		body := raw[offset+headerFixedSize : offset+h.ChunkSize]
		logical := make([]byte, 0, headerFixedSize+len(body))
		logical = append(logical, headerBuf...)
		if h.compressed() {
			decompressed, err := gunzip(body)
			if err != nil {
				return nil, &CorruptRecordingError{ChunkIndex: index, Offset: offset, Reason: "per-chunk decompression failed: " + err.Error()}
			}
			logical = append(logical, decompressed...)
		} else {
			logical = append(logical, body...)
		}

		chunks = append(chunks, chunkData{summary: h.summary(index, offset), logical: logical})
		offset += h.ChunkSize
		index++
	}

	return &RecordingHandle{path: path, chunks: chunks}, nil
}

// unwrapOuterCompression detects and strips a whole-file gzip/bzip2/xz
// wrapper, the way operators commonly ship ".jfr.gz"/".jfr.xz" recordings
// around (spec §6.1 describes the chunk layout of the unwrapped bytes; the
// wrapper itself is not part of that format).
func unwrapOuterCompression(data []byte) ([]byte, error) {
	if len(data) >= 4 && data[0] == magic[0] && data[1] == magic[1] && data[2] == magic[2] && data[3] == magic[3] {
		return data, nil // already a bare recording
	}
	switch detectCompression(data) {
	case compressionGzip:
		return gunzip(data)
	case compressionXZ:
		return unxz(data)
	case compressionBzip2:
		return unbzip2(data)
	default:
		return data, nil
	}
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// Path returns the filesystem path the handle was opened from.
func (h *RecordingHandle) Path() string { return h.path }

// ListChunks returns the chunk summaries in recording order (spec §4.1).
func (h *RecordingHandle) ListChunks() []ChunkSummary {
	out := make([]ChunkSummary, len(h.chunks))
	for i, c := range h.chunks {
		out[i] = c.summary
	}
	return out
}

func (h *RecordingHandle) ensureParsed(idx int) error {
	c := &h.chunks[idx]
	if c.parsed {
		return nil
	}
	pools := make(constantPools)
	r := bufio.NewReader(bytes.NewReader(c.logical))
	if _, err := io.CopyN(io.Discard, r, headerFixedSize); err != nil {
		return &CorruptRecordingError{ChunkIndex: idx, Offset: c.summary.Offset, Reason: "short header"}
	}

	eventsEnd := c.summary.MetadataOff
	if c.summary.ConstantPoolOff < eventsEnd {
		eventsEnd = c.summary.ConstantPoolOff
	}
	if eventsEnd < headerFixedSize || eventsEnd > int64(len(c.logical)) {
		return &CorruptRecordingError{ChunkIndex: idx, Offset: c.summary.Offset, Reason: "invalid metadata/constant-pool offsets"}
	}

	metaReader := bufio.NewReader(bytes.NewReader(c.logical[c.summary.MetadataOff:]))
	types, err := readMetadata(metaReader)
	if err != nil {
		return &CorruptRecordingError{ChunkIndex: idx, Offset: c.summary.MetadataOff, Reason: "bad metadata: " + err.Error()}
	}

	cpReader := bufio.NewReader(bytes.NewReader(c.logical[c.summary.ConstantPoolOff:]))
	if err := readCheckpoint(cpReader, pools); err != nil {
		return &CorruptRecordingError{ChunkIndex: idx, Offset: c.summary.ConstantPoolOff, Reason: "bad checkpoint: " + err.Error()}
	}

	c.types = types
	c.pools = pools
	c.parsed = true
	return nil
}

// LoadMetadata returns the TypeInfo for typeName, or every declared type if
// typeName is empty (spec §4.1). Metadata is chunk-local: a named lookup
// yields one entry per chunk that declares the type (identical definitions
// included), while an empty typeName yields each name once, with the
// definition from the first chunk that declares it.
func (h *RecordingHandle) LoadMetadata(typeName string) ([]TypeInfo, error) {
	var out []TypeInfo
	seen := make(map[string]bool)
	for idx := range h.chunks {
		if err := h.ensureParsed(idx); err != nil {
			return nil, err
		}
		for _, t := range h.chunks[idx].types {
			if typeName != "" && t.Name != typeName {
				continue
			}
			key := t.Name
			if typeName == "" {
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// DeclaredEventTypeNames returns the set of event type names the recording's
// metadata declares across all chunks, used by evaluate's validation step
// (spec §4.3.2). Returns an empty (non-nil) set if no chunk carries
// metadata, matching "if the set is empty, validation is skipped".
func (h *RecordingHandle) DeclaredEventTypeNames() (map[string]struct{}, error) {
	names := make(map[string]struct{})
	for idx := range h.chunks {
		if err := h.ensureParsed(idx); err != nil {
			return nil, err
		}
		for _, t := range h.chunks[idx].types {
			names[t.Name] = struct{}{}
		}
	}
	return names, nil
}

// ConstantPoolSummary returns per-type entry counts, aggregated across all
// chunks (spec §4.1).
func (h *RecordingHandle) ConstantPoolSummary() ([]PoolSummary, error) {
	totals := make(map[string]int)
	var order []string
	for idx := range h.chunks {
		if err := h.ensureParsed(idx); err != nil {
			return nil, err
		}
		for name, pool := range h.chunks[idx].pools {
			if _, ok := totals[name]; !ok {
				order = append(order, name)
			}
			totals[name] += len(pool.entries)
		}
	}
	out := make([]PoolSummary, 0, len(order))
	for _, name := range order {
		out = append(out, PoolSummary{Name: name, TotalSize: totals[name]})
	}
	return out, nil
}

// ConstantPoolEntries returns rows (id, resolved value) for typeName's pool
// across all chunks, filtered by pred (spec §4.1). pred may be nil to select
// every entry.
func (h *RecordingHandle) ConstantPoolEntries(typeName string, pred func(id int64, v Value) bool) ([]Row, error) {
	var out []Row
	for idx := range h.chunks {
		if err := h.ensureParsed(idx); err != nil {
			return nil, err
		}
		pool, ok := h.chunks[idx].pools[typeName]
		if !ok {
			continue
		}
		for id := range pool.entries {
			resolved := pool.Resolve(id)
			if pred != nil && !pred(id, resolved) {
				continue
			}
			out = append(out, Row{Columns: []string{"id", "value"}, Values: []Value{
				{Kind: KindScalar, Scalar: id},
				resolved,
			}})
		}
	}
	return out, nil
}

// StreamEvents drives visitor over every event in recording order: by chunk,
// then by event sequence within the chunk (spec §5, "Ordering guarantees").
// It stops as soon as the visitor calls ctl.Abort(), without reading further
// events in the current chunk or any subsequent one (spec §4.1, §5).
func (h *RecordingHandle) StreamEvents(visitor func(typeName string, fields FieldMap, ctl *Control) error) error {
	ctl := &Control{}
	for idx := range h.chunks {
		if err := h.ensureParsed(idx); err != nil {
			return err
		}
		c := &h.chunks[idx]
		ctl.Chunk = c.summary
		eventsEnd := c.summary.MetadataOff
		if c.summary.ConstantPoolOff < eventsEnd {
			eventsEnd = c.summary.ConstantPoolOff
		}
		r := bufio.NewReader(bytes.NewReader(c.logical[headerFixedSize:eventsEnd]))
		for {
			if _, err := r.Peek(1); err != nil {
				if err == io.EOF {
					break
				}
				return &CorruptRecordingError{ChunkIndex: idx, Offset: c.summary.Offset, Reason: err.Error()}
			}
			typeName, fields, err := readEvent(r, c.pools)
			if err != nil {
				if err == io.EOF {
					break
				}
				return &CorruptRecordingError{ChunkIndex: idx, Offset: c.summary.Offset, Reason: "truncated event: " + err.Error()}
			}
			if err := visitor(typeName, fields, ctl); err != nil {
				return err
			}
			if ctl.Aborted() {
				return nil
			}
		}
	}
	return nil
}
