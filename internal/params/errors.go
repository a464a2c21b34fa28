package params

import (
	"errors"
	"fmt"
)

// Parse error kinds. Match with errors.Is.
var (
	ErrInvalidIterationCount = errors.New("invalid cpu iteration count")
	ErrInvalidMemorySize     = errors.New("invalid KiB count for memory")
	ErrInvalidSleepDuration  = errors.New("invalid sleep duration")
)

// ParseError reports a malformed value for a recognized numeric key.
type ParseError struct {
	Key   string
	Value string
	Kind  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s=%q is not an unsigned integer", e.Kind, e.Key, e.Value)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}
