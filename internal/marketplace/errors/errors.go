// Package errors defines the error kinds returned by the marketplace core.
// Callers match kinds with errors.Is and extract details with errors.As.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = fmt.Errorf("not found")
	ErrInvalidInput         = fmt.Errorf("invalid input")
	ErrDuplicateKey         = fmt.Errorf("duplicate key")
	ErrDuplicateApplication = fmt.Errorf("duplicate application")
	ErrInvalidTransition    = fmt.Errorf("invalid transition")
	ErrConflict             = fmt.Errorf("conflict")
	ErrForbidden            = fmt.Errorf("forbidden")
	ErrUnauthenticated      = fmt.Errorf("unauthenticated")
	// ErrTimeout marks a storage call that did not finish in time. It is retryable.
	ErrTimeout = fmt.Errorf("timeout")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput, v.Field, v.Reason)
}

func (v *ValidationError) Unwrap() error { return ErrInvalidInput }

// Invalid is a shorthand for a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// DuplicateError names the unique key that was violated.
type DuplicateError struct {
	Key   string
	Value string
}

func (d *DuplicateError) Error() string {
	return fmt.Sprintf("%s: %s %q already exists", ErrDuplicateKey, d.Key, d.Value)
}

func (d *DuplicateError) Unwrap() error { return ErrDuplicateKey }

// Duplicate is a shorthand for a *DuplicateError.
func Duplicate(key, value string) error {
	return &DuplicateError{Key: key, Value: value}
}

// RecipeError is the single failure reported by a rolled back composer recipe.
type RecipeError struct {
	Recipe string
	Step   string
	Err    error
}

func (r *RecipeError) Error() string {
	return fmt.Sprintf("recipe %s failed at step %s: %v", r.Recipe, r.Step, r.Err)
}

func (r *RecipeError) Unwrap() error { return r.Err }

// Retryable reports whether the caller may retry the operation with fresh state.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConflict)
}
