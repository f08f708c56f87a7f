package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an event id does not exist.
	ErrNotFound = errors.New("event not found")

	// ErrConflict marks a refused deletion of unresolved leads.
	ErrConflict = errors.New("unresolved leads require confirmation")

	// ErrStorage marks failures of the underlying store.
	ErrStorage = errors.New("storage failure")

	// ErrReportingDisabled is returned when no activity ledger is configured.
	ErrReportingDisabled = errors.New("reporting is not configured")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConflictError is returned when a delete would discard leads that have no
// outcome and the caller did not confirm.
type ConflictError struct {
	Unresolved int64
}

func (e *ConflictError) Error() string {
	if e.Unresolved == 1 {
		return "lead has no result yet (unresolved); retry with confirm_unresolved=true"
	}
	return fmt.Sprintf("%d leads have no result yet (unresolved); retry with confirm_unresolved=true", e.Unresolved)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// StorageError wraps a failure of the event store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// NewStorageError wraps err unless it already carries a domain meaning.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrStorage) || errors.As(err, &ve) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
