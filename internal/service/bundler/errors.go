package bundler

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks user mistakes: bad coordinates, missing
	// main class or missing resources.
	ErrConfiguration = errors.New("configuration error")
	// ErrInternalConsistency marks a defect in the pipeline itself.
	ErrInternalConsistency = errors.New("internal consistency failure")

	// ErrUnresolvedDependency is returned when a dependency matches no artifact.
	ErrUnresolvedDependency = fmt.Errorf("%w: unresolved dependency", ErrConfiguration)
	// ErrMainClassNotFound is returned when no staged jar holds the main class.
	ErrMainClassNotFound = fmt.Errorf("%w: no artifact contains the main class", ErrConfiguration)
	// ErrResourceNotFound is returned when an auxiliary resource cannot be located.
	ErrResourceNotFound = fmt.Errorf("%w: resource not found", ErrConfiguration)
)

// InvariantError reports a violated pipeline invariant.
type InvariantError struct {
	// Stage names the stage that detected the violation.
	Stage string
	// Expected and Actual are the diverging counts.
	Expected int
	Actual   int
	// Detail describes what was compared.
	Detail string
}

// Error implements error.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("implementation error in %s stage: %s (expected %d, got %d)",
		e.Stage, e.Detail, e.Expected, e.Actual)
}

// Unwrap lets errors.Is match ErrInternalConsistency.
func (e *InvariantError) Unwrap() error {
	return ErrInternalConsistency
}
