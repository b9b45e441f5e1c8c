package models

import (
	"errors"
	"fmt"
)

// ErrIOFailure marks a failed write to a measurement record.
var ErrIOFailure = errors.New("io failure")

// IOFailure wraps the cause of a persistence failure. It matches
// ErrIOFailure with errors.Is and unwraps to the underlying error.
type IOFailure struct {
	Op   string // "open", "write", "insert", …
	Path string
	Err  error
}

func (e *IOFailure) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOFailure) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrIOFailure.
func (e *IOFailure) Is(target error) bool { return target == ErrIOFailure }
