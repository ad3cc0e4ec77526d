package shard

import (
	"sync"
	"time"
)

// VectorEntry is one vector inside a migration batch. The payload is opaque
// to the sharding layer; the owning store encodes and decodes it.
type VectorEntry struct {
	ID      string `json:"id"`
	Ordinal uint64 `json:"ordinal"`
	Payload []byte `json:"payload"`
}

// Batch is an immutable unit of migration transfer.
type Batch struct {
	ID       string            `json:"id"`
	Vectors  []VectorEntry     `json:"vectors"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// MigrationPlan describes how vectors move from one shard to another.
// Plans are immutable once built.
type MigrationPlan struct {
	ID          string    `json:"id"`
	SourceShard string    `json:"source_shard"`
	TargetShard string    `json:"target_shard"`
	Boundary    uint64    `json:"boundary"`
	Batches     []Batch   `json:"batches"`
	CreatedAt   time.Time `json:"created_at"`
}

// TotalVectors returns the number of vectors across all batches.
func (p *MigrationPlan) TotalVectors() int {
	n := 0
	for _, b := range p.Batches {
		n += len(b.Vectors)
	}
	return n
}

// MigrationState identifies where a migration is in its lifecycle.
type MigrationState int

const (
	MigrationPending MigrationState = iota
	MigrationRunning
	// MigrationSuspended means the breaker blocked progress; the scheduler
	// resumes the migration once the breaker recovers.
	MigrationSuspended
	MigrationCompleted
)

// String returns the string representation of the MigrationState.
func (s MigrationState) String() string {
	switch s {
	case MigrationPending:
		return "pending"
	case MigrationRunning:
		return "running"
	case MigrationSuspended:
		return "suspended"
	case MigrationCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// StreamingMigration is the mutable cursor over an immutable plan.
// It is owned by the driving task; the cursor is resumable from the last
// completed batch after suspension or crash-restart.
type StreamingMigration struct {
	plan *MigrationPlan

	mu         sync.Mutex
	next       int
	completed  map[string]bool
	state      MigrationState
	failStreak int
	lastUpdate time.Time
}

func newStreamingMigration(plan *MigrationPlan) *StreamingMigration {
	return &StreamingMigration{
		plan:       plan,
		completed:  make(map[string]bool),
		state:      MigrationPending,
		lastUpdate: time.Now(),
	}
}

// Plan returns the immutable plan driven by this cursor.
func (sm *StreamingMigration) Plan() *MigrationPlan { return sm.plan }

// NextBatch returns the next batch to transfer and advances the cursor.
// Already-completed batches are skipped (replay after resume is idempotent).
// The second return is false when no batches remain.
func (sm *StreamingMigration) NextBatch() (Batch, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for sm.next < len(sm.plan.Batches) {
		b := sm.plan.Batches[sm.next]
		sm.next++
		if !sm.completed[b.ID] {
			return b, true
		}
	}
	return Batch{}, false
}

// Rewind moves the cursor back one batch after a failed transfer.
func (sm *StreamingMigration) Rewind() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.next > 0 {
		sm.next--
	}
	sm.lastUpdate = time.Now()
}

// MarkCompleted records a durably transferred batch.
func (sm *StreamingMigration) MarkCompleted(batchID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.completed[batchID] = true
	sm.failStreak = 0
	sm.lastUpdate = time.Now()
}

// Progress returns completed and total batch counts.
func (sm *StreamingMigration) Progress() (completed, total int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.completed), len(sm.plan.Batches)
}

// State returns the current lifecycle state.
func (sm *StreamingMigration) State() MigrationState {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

// IsStale reports whether the migration made no progress within timeout.
func (sm *StreamingMigration) IsStale(timeout time.Duration) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state != MigrationCompleted && time.Since(sm.lastUpdate) > timeout
}

func (sm *StreamingMigration) setState(s MigrationState) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.state = s
	sm.lastUpdate = time.Now()
}

// bumpFailStreak increments and returns the consecutive failure count for
// the current batch.
func (sm *StreamingMigration) bumpFailStreak() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.failStreak++
	return sm.failStreak
}

// cursorState is the ledger-persisted form of the cursor, sufficient to
// resume from the last completed batch after crash-restart.
type cursorState struct {
	MigrationID string   `json:"migration_id"`
	State       string   `json:"state"`
	Completed   []string `json:"completed"`
}

// Status is a point-in-time snapshot of one migration.
type Status struct {
	MigrationID      string
	SourceShard      string
	TargetShard      string
	State            MigrationState
	CompletedBatches int
	TotalBatches     int
}
