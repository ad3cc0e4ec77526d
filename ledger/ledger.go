// Package ledger defines the boundary to the replicated ledger substrate
// that durably persists entries and enforces per-agent write permissions.
//
// The substrate itself is an external collaborator; everything above it
// (sharding, migration, CRDT merge, routing) is written against the Ledger
// interface and testable with the in-memory stand-in.
package ledger

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an entry does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("ledger: entry not found")

// Ledger is the persistence boundary.
// Implementations must be safe for concurrent use.
type Ledger interface {
	// PutEntry stores data under (kind, id), replacing any previous entry.
	PutEntry(ctx context.Context, kind, id string, data []byte) error

	// GetEntry returns the data stored under (kind, id).
	GetEntry(ctx context.Context, kind, id string) ([]byte, error)

	// DeleteEntry removes the entry under (kind, id). Missing entries are
	// a no-op.
	DeleteEntry(ctx context.Context, kind, id string) error

	// Link records a tagged edge from base to target.
	// Linking the same (base, tag, target) twice is a no-op.
	Link(ctx context.Context, base, tag, target string) error

	// GetLinks returns the targets linked from base under tag.
	GetLinks(ctx context.Context, base, tag string) ([]string, error)

	// CurrentAgent returns the identity writes are attributed to.
	CurrentAgent() string
}
