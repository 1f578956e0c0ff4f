/*
errors.go - Centralized error types for the attendance engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failure surfaced by the engine falls into one of five classes; the
  API layer maps each class to a status code, nothing else needs to know
  the concrete type.

ERROR CATEGORIES:
  1. Validation   - rejected before any write (bad range, checkOut <= checkIn)
  2. Conflict     - duplicate worker-day, overlapping assignment or incident
  3. Not found    - referenced worker/shift/incident type/incident missing
  4. Already decided - incident is no longer pending
  5. Forbidden    - caller's capability does not cover the target

USAGE:
  if errors.Is(err, generic.ErrConflict) {
      // loser of a race on the same worker-day
  }

  var ve *generic.ValidationError
  if errors.As(err, &ve) {
      fmt.Println(ve.Field)
  }

No error class is fatal to the process: each operation is a unit of work and
its failure aborts only its own transaction.
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when input violates a business rule before any write.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a write collides with existing state
	// (duplicate worker-day record, overlapping assignment or incident).
	ErrConflict = errors.New("conflict")

	// ErrNotFound is returned when a referenced entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyDecided is returned when deciding an incident that is no longer pending.
	ErrAlreadyDecided = errors.New("incident already decided")

	// ErrForbidden is returned when the caller's capability does not cover the target.
	ErrForbidden = errors.New("forbidden")

	// ErrDuplicateRecord is returned by stores when the (worker, date)
	// uniqueness constraint rejects an insert.
	ErrDuplicateRecord = &ConflictError{Subject: "attendance_record", Message: "a record already exists for this worker-day"}
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError describes what collided.
type ConflictError struct {
	Subject string
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Subject, e.Message)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError identifies the missing entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AlreadyDecidedError carries the incident's terminal status.
type AlreadyDecidedError struct {
	IncidentID string
	Status     string
}

func (e *AlreadyDecidedError) Error() string {
	return fmt.Sprintf("incident %s already decided: %s", e.IncidentID, e.Status)
}

func (e *AlreadyDecidedError) Unwrap() error { return ErrAlreadyDecided }

// ForbiddenError explains which action was refused.
type ForbiddenError struct {
	Action string
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Action
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func NewNotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict returns true for conflicts, including decisions on decided incidents.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrAlreadyDecided)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
