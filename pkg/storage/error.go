package storage

import (
	"errors"
	"fmt"
)

// ErrDuplicateEntry is returned by Put when the run already holds an entry
// with the same sequence number.
var ErrDuplicateEntry = errors.New("duplicate entry")

// ErrDuplicateRun is returned by CreateRun when the run ID is taken.
var ErrDuplicateRun = errors.New("duplicate run")

// NotFoundError is returned when a run doesn't exist in the store.
type NotFoundError struct {
	RunID string
}

func (e NotFoundError) Error() string {
	if e.RunID == "" {
		return "run not found"
	}

	return "run not found: " + e.RunID
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// UnknownKindError is returned when a stored entry names an event kind this
// build does not know.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown event kind %q", e.Kind)
}
