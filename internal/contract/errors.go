package contract

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the error taxonomy. Every typed error matches one via errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrConnection = errors.New("connection failed")
	ErrNotFound   = errors.New("not found")
	ErrTransient  = errors.New("transient backend error")
)

// Violation is one broken validation rule.
type Violation struct {
	Block   string // original block id, empty for schedule-level rules
	Field   string
	Message string
}

func (v Violation) String() string {
	if v.Block == "" {
		return fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return fmt.Sprintf("block %s: %s: %s", v.Block, v.Field, v.Message)
}

// ValidationError carries every violation found, never only the first.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("validation failed with %d violation(s): %s", len(e.Violations), strings.Join(parts, "; "))
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError reports a uniqueness collision on a natural key.
type ConflictError struct {
	Entity     string
	Key        string
	ExistingID int64
	Err        error
}

func (e *ConflictError) Error() string {
	if e.ExistingID > 0 {
		return fmt.Sprintf("%s %q already exists with id %d", e.Entity, e.Key, e.ExistingID)
	}
	return fmt.Sprintf("%s %q already exists", e.Entity, e.Key)
}

// Is matches ErrConflict.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Unwrap returns the driver error.
func (e *ConflictError) Unwrap() error { return e.Err }

// ConnectionError is surfaced once the bounded retry policy gives up.
type ConnectionError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

// Is matches ErrConnection.
func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// Unwrap returns the last underlying error.
func (e *ConnectionError) Unwrap() error { return e.Err }

// NotFoundError reports a missing schedule or block.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TransientError is a generic retryable backend error.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient error: %v", e.Op, e.Err)
}

// Is matches ErrTransient.
func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// Unwrap returns the underlying error.
func (e *TransientError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrConnection)
}
