package vectorstore

import (
	"errors"
	"fmt"
)

// ErrMemoryLimit indicates the resource controller's memory budget cannot
// accommodate another vector.
var ErrMemoryLimit = errors.New("vector buffer memory limit reached")

// ErrNotFound indicates the requested vector id is not present.
type ErrNotFound struct {
	ID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("vector not found: %s", e.ID)
}

// ErrAlreadyExists indicates an insert collided with an existing vector id.
type ErrAlreadyExists struct {
	ID string
}

func (e *ErrAlreadyExists) Error() string {
	return fmt.Sprintf("vector already exists: %s", e.ID)
}

// ErrInvalidDimensions indicates a vector whose length does not match the
// store's configured dimensionality.
type ErrInvalidDimensions struct {
	Expected int
	Actual   int
}

func (e *ErrInvalidDimensions) Error() string {
	return fmt.Sprintf("invalid dimensions: expected %d, got %d", e.Expected, e.Actual)
}

// ErrValidationFailed wraps a metadata schema violation with the offending
// vector id.
type ErrValidationFailed struct {
	ID    string
	Cause error
}

func (e *ErrValidationFailed) Error() string {
	return fmt.Sprintf("metadata validation failed for %s: %v", e.ID, e.Cause)
}

func (e *ErrValidationFailed) Unwrap() error {
	return e.Cause
}
