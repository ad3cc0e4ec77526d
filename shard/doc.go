// Package shard assigns vectors to shards along a Hilbert space-filling
// curve and rebalances overfull shards through resumable streaming
// migration.
//
// The Manager owns the vector→shard mapping; there is exactly one Manager
// per node and it is passed by handle. Migrations run as background tasks
// driven by the Scheduler, transfer batches through a Transport, and are
// gated by a circuit breaker: a migration that cannot make progress is
// suspended, never dropped, and resumes once the breaker recovers.
package shard
