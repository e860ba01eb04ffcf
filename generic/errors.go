/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these with fmt.Errorf("...: %w", err) and callers
  test them with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Validation errors - rejected before any write (negative amounts,
     malformed dates, missing required references)
  2. Balance errors - a ledger operation would drive remaining below zero;
     the operation is aborted and the stored state is unchanged
  3. Lookup errors - unknown employee, leave type, component, request
  4. Workflow errors - a leave request that already left Pending

  A cap clamp (max_calculated_value) is NOT an error.

USAGE:
  if errors.Is(err, generic.ErrInsufficientBalance) {
      var ib *generic.InsufficientBalanceError
      errors.As(err, &ib)
      fmt.Println(ib.Remaining, ib.Requested)
  }

SEE ALSO:
  - balance.go: Debit returns InsufficientBalanceError
  - api/handlers.go: maps categories to HTTP status codes
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
	// ErrValidation is the category of every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance is returned when a debit exceeds remaining balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNotFound is the category of every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a leave request is decided twice.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrDayCovered is returned when a leave request spans a day that
	// already has a leave application.
	ErrDayCovered = errors.New("day already covered by a leave application")

	// ErrDuplicateIdempotencyKey is returned when a journal entry with the same
	// idempotency key already exists.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which input was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EmployeeCode EmployeeCode
	LeaveType    LeaveTypeCode
	Remaining    Amount
	Requested    Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: remaining %s < requested %s",
		e.Remaining.Value.String(), e.Requested.Value.String())
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// NotFoundError names the kind of thing that was missing and its key.
type NotFoundError struct {
	Kind string // "employee", "leave type", "component", "leave request", ...
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound is shorthand for a NotFoundError.
func NotFound(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsConflict returns true if the request was well-formed but the current
// ledger or workflow state does not allow it.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDayCovered) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
