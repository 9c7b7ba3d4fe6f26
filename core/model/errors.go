package model

import (
	"errors"
	"fmt"
)

// Validation error kinds. A *ValidationError unwraps to exactly one of them.
var (
	ErrIncompleteData   = errors.New("incomplete energy flow data")
	ErrInvalidCostModel = errors.New("invalid cost model")
	ErrMalformedWindow  = errors.New("malformed time window")
	ErrMissingWindow    = errors.New("appliance has no time window")
	ErrInvalidAppliance = errors.New("invalid appliance")
	ErrInvalidTwinWorld = errors.New("invalid twin world")
	ErrInvalidRequest   = errors.New("invalid planning request")
)

// ErrInvariant marks an internal consistency failure of the planner.
var ErrInvariant = errors.New("planner invariant violated")

// ValidationError reports malformed or incomplete input rejected before
// scheduling starts. Field is a dotted path to the offending value.
type ValidationError struct {
	Kind   error
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Kind }

func invalid(kind error, field, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IncompleteDataError reports a gap in the energy flow coverage.
func IncompleteDataError(field, format string, args ...any) error {
	return invalid(ErrIncompleteData, field, format, args...)
}

// InvalidCostModelError reports a negative or out of range cost parameter.
func InvalidCostModelError(field, format string, args ...any) error {
	return invalid(ErrInvalidCostModel, field, format, args...)
}

// InvariantError wraps ErrInvariant with context.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string { return fmt.Sprintf("%v: %s", ErrInvariant, e.Detail) }

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// NewInvariantError builds an InvariantError.
func NewInvariantError(format string, args ...any) error {
	return &InvariantError{Detail: fmt.Sprintf(format, args...)}
}
