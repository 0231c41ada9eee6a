package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the student has no stored state yet. It is not a
	// failure: callers initialize the student with the prior.
	ErrNotFound = errors.New("store: state not found")

	// ErrCorruptState matches every *CorruptStateError.
	ErrCorruptState = errors.New("store: corrupt persisted state")

	// ErrPersistence matches every *PersistenceError.
	ErrPersistence = errors.New("store: persistence failure")

	// ErrDuplicateOrdinal means an interaction with the same ordinal already
	// exists for the student.
	ErrDuplicateOrdinal = errors.New("store: duplicate interaction ordinal")
)

// CorruptStateError reports a stored record that failed validation.
type CorruptStateError struct {
	StudentID string
	Reason    string
	Err       error
}

func (e *CorruptStateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt state for student %q: %s: %v", e.StudentID, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt state for student %q: %s", e.StudentID, e.Reason)
}

func (e *CorruptStateError) Is(target error) bool { return target == ErrCorruptState }

func (e *CorruptStateError) Unwrap() error { return e.Err }

// PersistenceError reports a read or write the backend could not complete.
// It is an infrastructure failure: the operation may be retried as a whole.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Retryable is always true; the failed operation left no partial state.
func (e *PersistenceError) Retryable() bool { return true }

// Fail wraps err as a *PersistenceError for op. Nil stays nil, and errors
// that already carry a store kind are returned unchanged.
func Fail(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) || errors.Is(err, ErrDuplicateOrdinal) ||
		errors.Is(err, ErrCorruptState) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
