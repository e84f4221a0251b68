package session

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/minio/highwayhash"

	"jfrq/internal/jfr/chunk"
)

// contentHashKey is the fixed 32-byte key every recording's content hash is
// computed under, the same "hardcoded key so hashes are stable regardless of
// context" convention app.go's FileHashKey uses.
var contentHashKey = func() []byte {
	b := make([]byte, 32)
	copy(b, []byte("jfrq recording content hash key"))
	return b
}()

// ContentHash fingerprints a recording from its chunk headers rather than its
// full byte content: a JFR file can be gigabytes, but its chunk table (index,
// offset, size, and timing per chunk) already uniquely identifies the
// recording for cache-invalidation purposes, so there is no need to stream
// the whole file through the hash the way CalculateFileHash does for a flat
// CSV/JSON file.
func ContentHash(h *chunk.RecordingHandle) (string, error) {
	hasher, err := highwayhash.New(contentHashKey)
	if err != nil {
		return "", fmt.Errorf("session: %w", err)
	}
	var buf [40]byte
	for _, c := range h.ListChunks() {
		binary.BigEndian.PutUint64(buf[0:8], uint64(c.Offset))
		binary.BigEndian.PutUint64(buf[8:16], uint64(c.Size))
		binary.BigEndian.PutUint64(buf[16:24], uint64(c.StartNanos))
		binary.BigEndian.PutUint64(buf[24:32], uint64(c.StartTicks))
		binary.BigEndian.PutUint64(buf[32:40], uint64(c.TickFrequency))
		if _, err := hasher.Write(buf[:]); err != nil {
			return "", fmt.Errorf("session: %w", err)
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
