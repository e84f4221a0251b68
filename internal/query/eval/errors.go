package eval

import "fmt"

// UnknownEventTypeError reports a query event type that does not match the
// recording's declared types, with an optional did-you-mean suggestion
// (spec §3.2, §4.3.2, §6.4).
type UnknownEventTypeError struct {
	Name       string
	Suggestion string
}

func (e *UnknownEventTypeError) Error() string {
	if e.Suggestion == "" {
		return fmt.Sprintf("eval: unknown event type %q", e.Name)
	}
	return fmt.Sprintf("eval: unknown event type %q, did you mean %q?", e.Name, e.Suggestion)
}

// UnknownFieldError reports a projection or expression path that could not
// be resolved against a value of the given type (spec §6.4).
type UnknownFieldError struct {
	Path string
	Type string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("eval: unknown field %q on %s", e.Path, e.Type)
}

// TypeMismatchError reports a pipeline or expression operation applied to a
// value of the wrong kind (spec §6.4).
type TypeMismatchError struct {
	Expected string
	Actual   string
	Where    string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("eval: type mismatch at %s: expected %s, got %s", e.Where, e.Expected, e.Actual)
}
