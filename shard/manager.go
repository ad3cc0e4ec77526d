package shard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/vecmesh/breaker"
	"github.com/hupe1980/vecmesh/codec"
	"github.com/hupe1980/vecmesh/curve"
	"github.com/hupe1980/vecmesh/ledger"
	"github.com/hupe1980/vecmesh/metrics"
	"github.com/hupe1980/vecmesh/resource"
)

const (
	// breakerResource names the breaker guarding batch transfers.
	breakerResource = "migration"

	// ledger entry kinds.
	kindShardIndex = "shard-index"
	kindMigration  = "migration"
)

// Config holds shard placement and migration tuning.
type Config struct {
	// CurveDimensions is the number of vector components that participate
	// in curve placement. Defaults to 2.
	CurveDimensions int
	// CurveOrder is the number of bits per curve dimension. Defaults to 10.
	CurveOrder int
	// CoordMin/CoordMax declare the expected component range for
	// quantization. Default to -1 and 1.
	CoordMin, CoordMax float32
	// MaxShardSize is the vector count that triggers a split. Defaults to 1000.
	MaxShardSize int
	// MigrationBatchSize is the number of vectors per migration batch.
	// Defaults to 100.
	MigrationBatchSize int
	// StaleAfter is how long a migration may sit without progress before
	// the scheduler sweep re-queues it. Defaults to 1 minute.
	StaleAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.CurveDimensions <= 0 {
		c.CurveDimensions = 2
	}
	if c.CurveOrder <= 0 {
		c.CurveOrder = 10
	}
	if c.CoordMin == 0 && c.CoordMax == 0 {
		c.CoordMin, c.CoordMax = -1, 1
	}
	if c.MaxShardSize <= 0 {
		c.MaxShardSize = 1000
	}
	if c.MigrationBatchSize <= 0 {
		c.MigrationBatchSize = 100
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = time.Minute
	}
	return c
}

// shardInfo is the in-memory state of one shard: its ordinal range
// [lower, upper) and current members.
type shardInfo struct {
	id      string
	lower   uint64
	upper   uint64
	members map[string]uint64 // vector id -> ordinal
}

// Manager owns the vector→shard mapping and drives splits and migrations.
//
// Locking: mu guards the mapping and shard table; migMu guards the
// migration registry. Batch transfers happen outside both locks; only the
// per-batch mapping flip takes mu exclusively.
type Manager struct {
	cfg       Config
	hilbert   *curve.Hilbert
	quant     *Quantizer
	transport Transport
	store     ledger.Ledger
	codec     codec.Codec
	breakers  *breaker.Group
	collector *metrics.Collector
	logger    *slog.Logger
	resources *resource.Controller

	mu      sync.RWMutex
	mapping map[string]string
	shards  map[string]*shardInfo

	migMu      sync.Mutex
	migrations map[string]*StreamingMigration
	bySource   map[string]string // source shard -> active migration id
}

// Option configures a Manager.
type Option func(*Manager)

// WithTransport sets the batch transfer transport.
func WithTransport(t Transport) Option {
	return func(m *Manager) { m.transport = t }
}

// WithLedger sets the persistence substrate for the shard index and
// migration cursors.
func WithLedger(l ledger.Ledger) Option {
	return func(m *Manager) { m.store = l }
}

// WithCodec sets the codec for batch payloads and cursor state.
func WithCodec(c codec.Codec) Option {
	return func(m *Manager) { m.codec = c }
}

// WithBreakers sets the shared breaker group gating batch transfers.
func WithBreakers(g *breaker.Group) Option {
	return func(m *Manager) { m.breakers = g }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.collector = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithResources attaches the controller that throttles batch transfer
// throughput. A nil controller leaves transfers unthrottled.
func WithResources(rc *resource.Controller) Option {
	return func(m *Manager) { m.resources = rc }
}

// NewManager creates a Manager with a single shard covering the whole
// ordinal space.
func NewManager(cfg Config, optFns ...Option) (*Manager, error) {
	cfg = cfg.withDefaults()
	if cfg.CoordMin >= cfg.CoordMax {
		return nil, fmt.Errorf("shard: coordinate range [%f,%f] is empty", cfg.CoordMin, cfg.CoordMax)
	}

	h, err := curve.New(cfg.CurveDimensions, cfg.CurveOrder)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:        cfg,
		hilbert:    h,
		quant:      NewQuantizer(cfg.CurveDimensions, cfg.CurveOrder, cfg.CoordMin, cfg.CoordMax),
		logger:     slog.New(slog.DiscardHandler),
		mapping:    make(map[string]string),
		shards:     make(map[string]*shardInfo),
		migrations: make(map[string]*StreamingMigration),
		bySource:   make(map[string]string),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(m)
		}
	}
	if m.breakers == nil {
		m.breakers = breaker.NewGroup(breaker.Config{})
	}

	root := &shardInfo{
		id:      uuid.NewString(),
		lower:   0,
		upper:   m.maxOrdinal(),
		members: make(map[string]uint64),
	}
	m.shards[root.id] = root

	return m, nil
}

// maxOrdinal returns the exclusive upper bound of the ordinal space.
func (m *Manager) maxOrdinal() uint64 {
	bits := m.cfg.CurveDimensions * m.cfg.CurveOrder
	if bits >= 64 {
		return ^uint64(0)
	}
	return 1 << bits
}

// Ordinal computes the curve ordinal for a vector.
func (m *Manager) Ordinal(vec []float32) (uint64, error) {
	return m.hilbert.Index(m.quant.Point(vec))
}

// Assign maps a vector to its owning shard and records the membership.
// Re-assigning an existing id moves it.
func (m *Manager) Assign(ctx context.Context, id string, vec []float32) (string, error) {
	ordinal, err := m.Ordinal(vec)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	if prev, ok := m.mapping[id]; ok {
		if s := m.shards[prev]; s != nil {
			delete(s.members, id)
		}
	}

	target := m.shardForOrdinal(ordinal)
	target.members[id] = ordinal
	m.mapping[id] = target.id
	m.mu.Unlock()

	m.collector.Inc("shard_assignments")

	if m.store != nil {
		if err := m.store.PutEntry(ctx, kindShardIndex, id, []byte(target.id)); err != nil {
			return "", fmt.Errorf("shard: persist index for %s: %w", id, err)
		}
	}

	return target.id, nil
}

// Remove drops a vector from the mapping.
func (m *Manager) Remove(ctx context.Context, id string) {
	m.mu.Lock()
	if sid, ok := m.mapping[id]; ok {
		if s := m.shards[sid]; s != nil {
			delete(s.members, id)
		}
		delete(m.mapping, id)
	}
	m.mu.Unlock()

	if m.store != nil {
		_ = m.store.DeleteEntry(ctx, kindShardIndex, id)
	}
}

// Locate returns the shard currently owning a vector.
// During migration this remains the source shard until the batch holding
// the vector is durably transferred.
func (m *Manager) Locate(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sid, ok := m.mapping[id]
	return sid, ok
}

// ShardSizes returns the current member count per shard.
func (m *Manager) ShardSizes() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sizes := make(map[string]int, len(m.shards))
	for id, s := range m.shards {
		sizes[id] = len(s.members)
	}
	return sizes
}

// Overfull returns the ids of shards above the size limit.
func (m *Manager) Overfull() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for id, s := range m.shards {
		if len(s.members) > m.cfg.MaxShardSize {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// shardForOrdinal must be called with m.mu held.
func (m *Manager) shardForOrdinal(ordinal uint64) *shardInfo {
	for _, s := range m.shards {
		if ordinal >= s.lower && ordinal < s.upper {
			return s
		}
	}
	// Ranges partition the ordinal space, so this is unreachable unless
	// the table was corrupted; fall back to any shard rather than panic.
	for _, s := range m.shards {
		return s
	}
	return nil
}

// HandleSplit builds a MigrationPlan moving the upper half of an overfull
// shard to a new shard. payloads supplies the opaque encoded vector for
// each member id; ids without a payload are skipped.
//
// The target shard and the shrunken source range are registered
// immediately, but the vector mapping only flips per batch during
// execution.
func (m *Manager) HandleSplit(_ context.Context, shardID string, payloads map[string][]byte) (*MigrationPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.shards[shardID]
	if !ok {
		return nil, &ErrShardNotFound{ShardID: shardID}
	}
	if len(src.members) <= m.cfg.MaxShardSize {
		return nil, &ErrSplitNotNeeded{ShardID: shardID, Size: len(src.members), Max: m.cfg.MaxShardSize}
	}

	ordinals := make([]uint64, 0, len(src.members))
	for _, o := range src.members {
		ordinals = append(ordinals, o)
	}
	bounds := curve.SplitPoints(ordinals, 2)
	if len(bounds) != 1 || bounds[0] <= src.lower || bounds[0] >= src.upper {
		return nil, fmt.Errorf("shard: cannot find split boundary for %s", shardID)
	}
	boundary := bounds[0]

	// Collect the upper side, ordered by ordinal (ties by id) so batch
	// contents are deterministic.
	type member struct {
		id      string
		ordinal uint64
	}
	var moving []member
	for id, o := range src.members {
		if o >= boundary {
			moving = append(moving, member{id: id, ordinal: o})
		}
	}
	sort.Slice(moving, func(i, j int) bool {
		if moving[i].ordinal != moving[j].ordinal {
			return moving[i].ordinal < moving[j].ordinal
		}
		return moving[i].id < moving[j].id
	})

	target := &shardInfo{
		id:      uuid.NewString(),
		lower:   boundary,
		upper:   src.upper,
		members: make(map[string]uint64),
	}
	src.upper = boundary
	m.shards[target.id] = target

	plan := &MigrationPlan{
		ID:          uuid.NewString(),
		SourceShard: shardID,
		TargetShard: target.id,
		Boundary:    boundary,
		CreatedAt:   time.Now(),
	}

	for start := 0; start < len(moving); start += m.cfg.MigrationBatchSize {
		end := start + m.cfg.MigrationBatchSize
		if end > len(moving) {
			end = len(moving)
		}
		batch := Batch{ID: uuid.NewString()}
		for _, mv := range moving[start:end] {
			payload, ok := payloads[mv.id]
			if !ok {
				continue
			}
			batch.Vectors = append(batch.Vectors, VectorEntry{
				ID:      mv.id,
				Ordinal: mv.ordinal,
				Payload: payload,
			})
		}
		if len(batch.Vectors) > 0 {
			plan.Batches = append(plan.Batches, batch)
		}
	}

	m.collector.Inc("shard_splits")
	m.logger.Info("shard split planned",
		"source", plan.SourceShard,
		"target", plan.TargetShard,
		"boundary", plan.Boundary,
		"batches", len(plan.Batches),
	)

	return plan, nil
}

// RegisterMigration registers a plan for execution. A source shard may have
// at most one active outbound migration.
func (m *Manager) RegisterMigration(plan *MigrationPlan) (*StreamingMigration, error) {
	m.migMu.Lock()
	defer m.migMu.Unlock()

	if active, ok := m.bySource[plan.SourceShard]; ok {
		return nil, &ErrMigrationActive{SourceShard: plan.SourceShard, MigrationID: active}
	}

	sm := newStreamingMigration(plan)
	m.migrations[plan.ID] = sm
	m.bySource[plan.SourceShard] = plan.ID

	m.collector.SetGauge("active_migrations", float64(len(m.bySource)))
	return sm, nil
}

// ExecuteMigration registers and drives a plan to completion or suspension.
// It returns nil when the migration completed or was suspended (a suspended
// migration stays registered and resumes via the scheduler).
func (m *Manager) ExecuteMigration(ctx context.Context, plan *MigrationPlan) error {
	sm, err := m.RegisterMigration(plan)
	if err != nil {
		return err
	}
	return m.drive(ctx, sm)
}

// ResumeMigration continues a pending or suspended migration by id.
func (m *Manager) ResumeMigration(ctx context.Context, migrationID string) error {
	m.migMu.Lock()
	sm, ok := m.migrations[migrationID]
	m.migMu.Unlock()
	if !ok {
		return ErrUnknownMigration
	}

	switch sm.State() {
	case MigrationCompleted:
		return nil
	case MigrationRunning:
		// Only take over a running migration if its driver went silent.
		if !sm.IsStale(m.cfg.StaleAfter) {
			return nil
		}
	}
	return m.drive(ctx, sm)
}

// drive pulls batches one at a time and transfers them. Each batch is a
// bounded unit of work outside any shared-map critical section.
func (m *Manager) drive(ctx context.Context, sm *StreamingMigration) error {
	sm.setState(MigrationRunning)
	plan := sm.Plan()
	br := m.breakers.Get(breakerResource)

	for {
		if err := ctx.Err(); err != nil {
			sm.setState(MigrationSuspended)
			return err
		}

		if !br.Allow() {
			m.suspend(sm)
			return nil
		}

		batch, ok := sm.NextBatch()
		if !ok {
			break
		}

		if err := m.transferBatch(ctx, plan, batch); err != nil {
			sm.Rewind()

			// First failure of a batch gets one internal retry before it
			// counts toward the breaker threshold.
			if sm.bumpFailStreak() > 1 {
				br.RecordFailure()
			}

			m.collector.Inc("migration_batch_failures")
			m.logger.Warn("batch transfer failed",
				"migration", plan.ID,
				"batch", batch.ID,
				"error", err,
			)
			continue
		}

		br.RecordSuccess()
		sm.MarkCompleted(batch.ID)
		m.flipMapping(plan.TargetShard, batch)
		m.persistCursor(ctx, sm)
		m.collector.Inc("migration_batches_transferred")
	}

	m.finalize(sm)
	return nil
}

// transferBatch encodes, throttles and ships one batch.
func (m *Manager) transferBatch(ctx context.Context, plan *MigrationPlan, batch Batch) error {
	if m.transport == nil {
		return nil
	}

	data, err := EncodeBatch(m.codec, &batch)
	if err != nil {
		return err
	}

	if err := m.resources.WaitTransfer(ctx, len(data)); err != nil {
		return err
	}

	defer m.collector.Timer("migration_transfer_latency")()

	if err := m.transport.TransferBatch(ctx, plan.TargetShard, data); err != nil {
		return &ErrMigrationFailed{MigrationID: plan.ID, BatchID: batch.ID, cause: err}
	}
	return nil
}

// flipMapping atomically repoints a batch's vectors at the target shard.
// Readers find vectors at the source until this point.
func (m *Manager) flipMapping(targetShard string, batch Batch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.shards[targetShard]
	if !ok {
		return
	}

	for _, v := range batch.Vectors {
		prev, ok := m.mapping[v.ID]
		if !ok {
			// Deleted mid-migration; nothing to flip.
			continue
		}
		if s := m.shards[prev]; s != nil {
			delete(s.members, v.ID)
		}
		target.members[v.ID] = v.Ordinal
		m.mapping[v.ID] = targetShard
	}
}

func (m *Manager) suspend(sm *StreamingMigration) {
	sm.setState(MigrationSuspended)
	m.collector.Inc("migrations_suspended")
	m.logger.Info("migration suspended", "migration", sm.Plan().ID)
}

func (m *Manager) finalize(sm *StreamingMigration) {
	sm.setState(MigrationCompleted)

	m.migMu.Lock()
	delete(m.bySource, sm.Plan().SourceShard)
	m.collector.SetGauge("active_migrations", float64(len(m.bySource)))
	m.migMu.Unlock()

	m.collector.Inc("migrations_completed")
	m.logger.Info("migration completed",
		"migration", sm.Plan().ID,
		"source", sm.Plan().SourceShard,
		"target", sm.Plan().TargetShard,
	)
}

// persistCursor writes the cursor to the ledger so a crashed node can
// resume from the last completed batch.
func (m *Manager) persistCursor(ctx context.Context, sm *StreamingMigration) {
	if m.store == nil {
		return
	}

	sm.mu.Lock()
	cs := cursorState{
		MigrationID: sm.plan.ID,
		State:       sm.state.String(),
		Completed:   make([]string, 0, len(sm.completed)),
	}
	for id := range sm.completed {
		cs.Completed = append(cs.Completed, id)
	}
	sm.mu.Unlock()
	sort.Strings(cs.Completed)

	c := m.codec
	if c == nil {
		c = codec.Default
	}
	data, err := c.Marshal(cs)
	if err != nil {
		m.logger.Warn("cursor encode failed", "migration", cs.MigrationID, "error", err)
		return
	}
	if err := m.store.PutEntry(ctx, kindMigration, cs.MigrationID, data); err != nil {
		m.logger.Warn("cursor persist failed", "migration", cs.MigrationID, "error", err)
	}
}

// RestoreMigration re-registers a plan after crash-restart, restoring the
// cursor from the ledger so completed batches are not replayed.
func (m *Manager) RestoreMigration(ctx context.Context, plan *MigrationPlan) (*StreamingMigration, error) {
	sm, err := m.RegisterMigration(plan)
	if err != nil {
		return nil, err
	}

	if m.store == nil {
		return sm, nil
	}

	data, err := m.store.GetEntry(ctx, kindMigration, plan.ID)
	if err != nil {
		if err == ledger.ErrNotFound {
			return sm, nil
		}
		return nil, err
	}

	c := m.codec
	if c == nil {
		c = codec.Default
	}
	var cs cursorState
	if err := c.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("shard: decode cursor for %s: %w", plan.ID, err)
	}

	sm.mu.Lock()
	for _, id := range cs.Completed {
		sm.completed[id] = true
	}
	sm.state = MigrationSuspended
	sm.mu.Unlock()

	return sm, nil
}

// MigrationStatus returns a snapshot of all registered migrations.
func (m *Manager) MigrationStatus() []Status {
	m.migMu.Lock()
	defer m.migMu.Unlock()

	out := make([]Status, 0, len(m.migrations))
	for _, sm := range m.migrations {
		completed, total := sm.Progress()
		out = append(out, Status{
			MigrationID:      sm.Plan().ID,
			SourceShard:      sm.Plan().SourceShard,
			TargetShard:      sm.Plan().TargetShard,
			State:            sm.State(),
			CompletedBatches: completed,
			TotalBatches:     total,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MigrationID < out[j].MigrationID })
	return out
}

// Resumable returns ids of migrations the scheduler should pick up:
// pending, suspended, or stale.
func (m *Manager) Resumable() []string {
	m.migMu.Lock()
	defer m.migMu.Unlock()

	var out []string
	for id, sm := range m.migrations {
		switch sm.State() {
		case MigrationPending, MigrationSuspended:
			out = append(out, id)
		case MigrationRunning:
			if sm.IsStale(m.cfg.StaleAfter) {
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}
