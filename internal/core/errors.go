package core

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is returned by the log when no record matches a key
	ErrRecordNotFound = errors.New("submission record not found")

	// ErrPersistence matches every PersistenceError
	ErrPersistence = errors.New("submission log failure")
)

// PersistenceError wraps an infrastructure failure of the submission log
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("submission log %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is reports ErrPersistence as a match so callers can branch without errors.As
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func persistenceError(op string, err error) error {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
