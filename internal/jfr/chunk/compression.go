package chunk

import (
	"bytes"
	"compress/bzip2"
	"encoding/hex"
	"io"
	"os"

	"github.com/minio/highwayhash"
	"github.com/ulikunitz/xz"
)

// outerCompression identifies a whole-file wrapper around a bare recording,
// detected the same way the teacher's fileloader.DetectCompressionByMagic
// does it: a short magic-byte sniff, no content inspection.
type outerCompression int

const (
	compressionNone outerCompression = iota
	compressionGzip
	compressionBzip2
	compressionXZ
)

var (
	gzipMagicBytes  = []byte{0x1f, 0x8b}
	bzip2MagicBytes = []byte{0x42, 0x5a, 0x68}
	xzMagicBytes    = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
)

func detectCompression(data []byte) outerCompression {
	if len(data) >= 2 && bytes.HasPrefix(data, gzipMagicBytes) {
		return compressionGzip
	}
	if len(data) >= 3 && bytes.HasPrefix(data, bzip2MagicBytes) {
		return compressionBzip2
	}
	if len(data) >= 6 && bytes.HasPrefix(data, xzMagicBytes) {
		return compressionXZ
	}
	return compressionNone
}

func unxz(data []byte) ([]byte, error) {
	xzReader, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(xzReader)
}

func unbzip2(data []byte) ([]byte, error) {
	return io.ReadAll(bzip2.NewReader(bytes.NewReader(data)))
}

// fileHashKey is a fixed 32-byte key for the HighwayHash content digest
// below, the same way the teacher hardcodes one so a recording's hash stays
// stable regardless of which session opened it. Session cache keys (spec
// §6.2) only need stability within a process's lifetime, not
// cross-process reproducibility against an adversary.
var fileHashKey = []byte("jfrq recording content hash key\x00")[:32]

// ContentHash returns a hex-encoded HighwayHash digest of path's raw bytes.
// Session caches are not keyed on it: internal/session fingerprints a
// recording from its chunk headers instead (session.ContentHash).
func ContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := highwayhash.New(fileHashKey)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
