package care

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEntityRef indicates an EntityRef failed validation (nil UUID
	// or an entity_type outside the closed set).
	ErrInvalidEntityRef = errors.New("invalid entity reference")

	// ErrInvalidCareState indicates a care_state value outside the closed set.
	ErrInvalidCareState = errors.New("invalid care state")

	// ErrEmptyReason indicates a CareHistoryEvent or TransitionProposal carried
	// an empty or whitespace-only reason. This is a correctness invariant
	// (§4.D): rejection at applyTransition is mandatory.
	ErrEmptyReason = errors.New("history event reason must not be empty")

	// ErrIdentityTransition indicates applyTransition was asked to persist a
	// transition whose to_state equals the current state; per §8 identity
	// transitions are not persisted.
	ErrIdentityTransition = errors.New("identity transition is not persisted")
)

// ValidationError wraps a validation failure with the field that caused it.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("care: field %q: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError for the named field.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}
