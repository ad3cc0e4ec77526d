package knowledge

import "fmt"

// ErrNotFound indicates the requested id is absent or tombstoned.
type ErrNotFound struct {
	ID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("knowledge not found: %s", e.ID)
}

// ErrStorageLimitReached indicates the set is full and the id is new. It is
// a capacity signal, never retried.
type ErrStorageLimitReached struct {
	Limit   int
	Current int
}

func (e *ErrStorageLimitReached) Error() string {
	return fmt.Sprintf("knowledge storage limit reached: %d/%d entries", e.Current, e.Limit)
}
