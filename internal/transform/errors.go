package transform

import (
	"errors"
	"fmt"
)

// ErrCast is matched by every fatal cast failure.
var ErrCast = errors.New("cast failed")

// CastError reports a source value that could not be cast to its column type.
type CastError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *CastError) Error() string {
	return fmt.Sprintf("line %d: cannot cast %s value %q: %v", e.Line, e.Column, e.Value, e.Err)
}

// Unwrap lets errors.Is match both ErrCast and the underlying parse error.
func (e *CastError) Unwrap() []error {
	return []error{ErrCast, e.Err}
}
