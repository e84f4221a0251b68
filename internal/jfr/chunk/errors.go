package chunk

import "fmt"

// InvalidFormatError is returned by Open when the file header is not a
// recognized JFR sentinel (spec §4.1).
type InvalidFormatError struct {
	Path string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("chunk: %q is not a recognized JFR recording", e.Path)
}

// IoError wraps an underlying read failure (spec §6.4).
type IoError struct {
	Cause error
}

func (e *IoError) Error() string { return fmt.Sprintf("chunk: io error: %v", e.Cause) }
func (e *IoError) Unwrap() error { return e.Cause }

// CorruptRecordingError reports a malformed chunk header, truncated event, or
// inconsistent metadata (spec §4.1, §6.4). It is non-recoverable for the
// affected chunk. The reader always returns it to the caller; there is no
// option to skip the corrupt chunk and continue with the next one.
type CorruptRecordingError struct {
	ChunkIndex int
	Offset     int64
	Reason     string
}

func (e *CorruptRecordingError) Error() string {
	return fmt.Sprintf("chunk: corrupt recording at chunk %d, offset %d: %s", e.ChunkIndex, e.Offset, e.Reason)
}
