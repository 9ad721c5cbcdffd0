package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrConflict      = errors.New("conflict")
	ErrTransform     = errors.New("transformation error")
	ErrCheckpoint    = errors.New("checkpoint error")
	ErrWrite         = errors.New("write error")
	ErrIntegrity     = errors.New("integrity error")
	ErrRollback      = errors.New("rollback error")
)

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
// It occurs before any write, so the caller can abort without rollback.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}

// NewValidationErrors creates a ValidationError from multiple field errors.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}

// ConflictResolutionError reports that a resolution strategy could not be
// applied to one entity. Fatal for that entity only.
type ConflictResolutionError struct {
	EntityType EntityType
	Strategy   Strategy
	Reason     string
}

func (e *ConflictResolutionError) Error() string {
	return fmt.Sprintf("resolve %s with strategy %q: %s", e.EntityType, e.Strategy, e.Reason)
}

func (e *ConflictResolutionError) Unwrap() error { return ErrConflict }

// TransformationError reports a failure while mapping guest entities to
// account entities. It should not occur on pre-validated input; when it
// does, the pipeline aborts before checkpoint creation.
type TransformationError struct {
	EntityType EntityType
	EntityID   string
	Err        error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("transform %s %s: %v", e.EntityType, e.EntityID, e.Err)
}

func (e *TransformationError) Unwrap() error { return ErrTransform }

// CheckpointError reports that a snapshot could not be created or persisted.
// Nothing has been written yet, so no rollback is needed.
type CheckpointError struct {
	Op  string
	Err error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s: %v", e.Op, e.Err)
}

func (e *CheckpointError) Unwrap() error { return ErrCheckpoint }

// WriteError reports that the account store rejected a write during the
// commit phase. It triggers rollback.
type WriteError struct {
	EntityType EntityType
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.EntityType, e.Err)
}

func (e *WriteError) Unwrap() error { return ErrWrite }

// IntegrityError reports a post-migration integrity score below the
// configured threshold. It triggers rollback.
type IntegrityError struct {
	Score     int
	Threshold int
	Failed    []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity score %d below threshold %d (failed checks: %v)",
		e.Score, e.Threshold, e.Failed)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// RollbackError reports that one or more rollback steps failed. It is
// surfaced as a critical, manually-actionable error; rollback is never
// retried automatically.
type RollbackError struct {
	CheckpointID string
	Steps        []string
	Err          error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback of checkpoint %s: steps %v failed: %v",
		e.CheckpointID, e.Steps, e.Err)
}

func (e *RollbackError) Unwrap() error { return ErrRollback }
