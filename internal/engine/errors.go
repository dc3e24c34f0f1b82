package engine

import (
	"fmt"
)

// ValidationError reports a malformed caller input and names the offending
// field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// PersistenceError reports a failed appointment insert. The session is left
// intact so the caller can retry the same confirmation without re-collecting
// fields.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("appointment persistence failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
