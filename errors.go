package vecmesh

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/vecmesh/breaker"
	"github.com/hupe1980/vecmesh/knowledge"
	"github.com/hupe1980/vecmesh/router"
	"github.com/hupe1980/vecmesh/shard"
	"github.com/hupe1980/vecmesh/vectorstore"
)

var (
	// ErrNotFound is returned when an item is not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when an insert collides with an existing id.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidDimensions is returned when a vector or query does not match
	// the configured dimensionality.
	ErrInvalidDimensions = errors.New("invalid dimensions")

	// ErrStorageLimitReached is returned when a knowledge set is full or the
	// vector memory budget is exhausted. It is a capacity signal and is
	// never retried.
	ErrStorageLimitReached = errors.New("storage limit reached")

	// ErrValidationFailed is returned when metadata violates the declared
	// schema.
	ErrValidationFailed = errors.New("validation failed")

	// ErrMigrationFailed is returned when a shard migration cannot progress.
	ErrMigrationFailed = errors.New("migration failed")

	// ErrCircuitOpen is returned when a circuit breaker rejects an operation.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrNodeUnavailable is returned when no node could answer a query.
	ErrNodeUnavailable = errors.New("node unavailable")

	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = errors.New("timeout")
)

// translateError unifies subpackage errors into the root taxonomy. The
// original error stays reachable via errors.Unwrap so callers keep the
// resource ids and limits it carries.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var vnf *vectorstore.ErrNotFound
	var knf *knowledge.ErrNotFound
	if errors.As(err, &vnf) || errors.As(err, &knf) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var ae *vectorstore.ErrAlreadyExists
	if errors.As(err, &ae) {
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	}

	var dim *vectorstore.ErrInvalidDimensions
	if errors.As(err, &dim) {
		return fmt.Errorf("%w: %w", ErrInvalidDimensions, err)
	}

	var vf *vectorstore.ErrValidationFailed
	if errors.As(err, &vf) {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	var sl *knowledge.ErrStorageLimitReached
	if errors.As(err, &sl) || errors.Is(err, vectorstore.ErrMemoryLimit) {
		return fmt.Errorf("%w: %w", ErrStorageLimitReached, err)
	}

	var mf *shard.ErrMigrationFailed
	if errors.As(err, &mf) {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	if errors.Is(err, breaker.ErrOpen) {
		return fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}

	if errors.Is(err, router.ErrNodeUnavailable) {
		return fmt.Errorf("%w: %w", ErrNodeUnavailable, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return err
}
