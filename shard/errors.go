package shard

import (
	"errors"
	"fmt"
)

// ErrUnknownMigration is returned when a migration id is not registered.
var ErrUnknownMigration = errors.New("shard: unknown migration")

// ErrShardNotFound indicates an operation referenced a shard that does not exist.
type ErrShardNotFound struct {
	ShardID string
}

func (e *ErrShardNotFound) Error() string {
	return fmt.Sprintf("shard %s not found", e.ShardID)
}

// ErrSplitNotNeeded indicates a split was requested for a shard below the
// size limit.
type ErrSplitNotNeeded struct {
	ShardID string
	Size    int
	Max     int
}

func (e *ErrSplitNotNeeded) Error() string {
	return fmt.Sprintf("shard %s does not need splitting: size %d <= max %d", e.ShardID, e.Size, e.Max)
}

// ErrMigrationActive indicates the source shard already has an outbound
// migration in flight.
type ErrMigrationActive struct {
	SourceShard string
	MigrationID string
}

func (e *ErrMigrationActive) Error() string {
	return fmt.Sprintf("shard %s already has active migration %s", e.SourceShard, e.MigrationID)
}

// ErrMigrationFailed indicates a batch transfer failed.
//
// The underlying error can be accessed via errors.Unwrap.
type ErrMigrationFailed struct {
	MigrationID string
	BatchID     string
	cause       error
}

func (e *ErrMigrationFailed) Error() string {
	return fmt.Sprintf("migration %s failed at batch %s: %v", e.MigrationID, e.BatchID, e.cause)
}

func (e *ErrMigrationFailed) Unwrap() error { return e.cause }
