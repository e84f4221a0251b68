package parse

import "fmt"

// SyntaxError carries the byte offset into the input and a message; the
// parser never panics on malformed input and always returns this type
// instead (spec §4.2, "Failure").
type SyntaxError struct {
	Position int
	Message  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at byte %d: %s", e.Position, e.Message)
}
