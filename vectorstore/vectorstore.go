package vectorstore

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/vecmesh/codec"
	"github.com/hupe1980/vecmesh/distance"
	"github.com/hupe1980/vecmesh/ledger"
	"github.com/hupe1980/vecmesh/metadata"
	"github.com/hupe1980/vecmesh/metrics"
	"github.com/hupe1980/vecmesh/resource"
	"github.com/hupe1980/vecmesh/shard"
)

const kindVector = "vector"

// Vector is the unit of storage. Values are replaced wholesale on update.
type Vector struct {
	ID        string            `json:"id"`
	Values    []float32         `json:"values"`
	Metadata  metadata.Metadata `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Result is a single search hit.
type Result struct {
	ID       string            `json:"id"`
	Score    float32           `json:"score"`
	Metadata metadata.Metadata `json:"metadata,omitempty"`
}

// Config holds the store parameters.
type Config struct {
	// Dimensions is the authoritative vector length.
	Dimensions int

	// Metric selects the similarity function used by Search.
	Metric distance.Metric

	// Schema validates recognized metadata keys on insert and update.
	// Nil accepts everything.
	Schema metadata.Schema
}

func (c Config) withDefaults() Config {
	if c.Dimensions <= 0 {
		c.Dimensions = 128
	}

	return c
}

type item struct {
	row       int
	meta      metadata.Metadata
	createdAt time.Time
	updatedAt time.Time
	seq       uint64
}

// Store owns the vector map and its columnar value buffer. Placement is
// delegated to the shard manager; durable persistence to the ledger.
type Store struct {
	cfg    Config
	scorer distance.Func
	shards *shard.Manager

	mu    sync.RWMutex
	rows  *rows
	items map[string]*item
	seq   uint64

	ledger    ledger.Ledger
	codec     codec.Codec
	resources *resource.Controller
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// Option configures the store.
type Option func(*Store)

// WithLedger sets the durable persistence boundary for vector entries.
func WithLedger(l ledger.Ledger) Option {
	return func(s *Store) { s.ledger = l }
}

// WithCodec sets the codec used for ledger entries.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithResources attaches the controller accounting for vector buffer
// memory. Inserts fail with ErrMemoryLimit once its limit is reached.
func WithResources(rc *resource.Controller) Option {
	return func(s *Store) { s.resources = rc }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Store) { s.metrics = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a vector store using the given shard manager for placement.
func New(cfg Config, shards *shard.Manager, optFns ...Option) (*Store, error) {
	cfg = cfg.withDefaults()

	scorer, err := distance.Provider(cfg.Metric)
	if err != nil {
		return nil, err
	}

	s := &Store{
		cfg:    cfg,
		scorer: scorer,
		shards: shards,
		rows:   newRows(cfg.Dimensions),
		items:  make(map[string]*item),
		codec:  codec.Default,
		logger: slog.New(slog.DiscardHandler),
	}

	for _, fn := range optFns {
		fn(s)
	}

	return s, nil
}

// Dimensions returns the configured vector length.
func (s *Store) Dimensions() int {
	return s.cfg.Dimensions
}

// Len returns the number of live vectors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}

// Insert adds a new vector. The id must be unused and the values must match
// the configured dimensionality.
func (s *Store) Insert(ctx context.Context, v *Vector) error {
	if len(v.Values) != s.cfg.Dimensions {
		return &ErrInvalidDimensions{Expected: s.cfg.Dimensions, Actual: len(v.Values)}
	}

	if err := s.cfg.Schema.Validate(v.Metadata); err != nil {
		return &ErrValidationFailed{ID: v.ID, Cause: err}
	}

	if !s.resources.TryAcquireMemory(s.vectorBytes()) {
		return ErrMemoryLimit
	}

	s.mu.Lock()
	if _, ok := s.items[v.ID]; ok {
		s.mu.Unlock()
		s.resources.ReleaseMemory(s.vectorBytes())
		return &ErrAlreadyExists{ID: v.ID}
	}

	now := time.Now()

	s.seq++
	it := &item{
		row:       s.rows.add(v.Values),
		meta:      v.Metadata.Clone(),
		createdAt: now,
		updatedAt: now,
		seq:       s.seq,
	}
	s.items[v.ID] = it
	s.mu.Unlock()

	shardID, err := s.shards.Assign(ctx, v.ID, v.Values)
	if err != nil {
		s.mu.Lock()
		s.rows.release(it.row)
		delete(s.items, v.ID)
		s.mu.Unlock()
		s.resources.ReleaseMemory(s.vectorBytes())

		return err
	}

	if err := s.persist(ctx, v.ID); err != nil {
		s.mu.Lock()
		s.rows.release(it.row)
		delete(s.items, v.ID)
		s.mu.Unlock()
		s.shards.Remove(ctx, v.ID)
		s.resources.ReleaseMemory(s.vectorBytes())

		return err
	}

	s.metrics.Inc("vector_inserts")
	s.logger.Debug("vector inserted", "id", v.ID, "shard", shardID)

	return nil
}

// Get returns a copy of the stored vector.
func (s *Store) Get(_ context.Context, id string) (*Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return nil, &ErrNotFound{ID: id}
	}

	return s.vectorLocked(id, it), nil
}

// Update replaces the vector's values and metadata wholesale. A changed
// placement is reassigned in the mapping and logged; data is not migrated
// synchronously.
func (s *Store) Update(ctx context.Context, v *Vector) error {
	if len(v.Values) != s.cfg.Dimensions {
		return &ErrInvalidDimensions{Expected: s.cfg.Dimensions, Actual: len(v.Values)}
	}

	if err := s.cfg.Schema.Validate(v.Metadata); err != nil {
		return &ErrValidationFailed{ID: v.ID, Cause: err}
	}

	s.mu.Lock()
	it, ok := s.items[v.ID]
	if !ok {
		s.mu.Unlock()
		return &ErrNotFound{ID: v.ID}
	}

	prevValues := slices.Clone(s.rows.at(it.row))
	prevMeta := it.meta
	prevUpdated := it.updatedAt

	s.rows.set(it.row, v.Values)
	it.meta = v.Metadata.Clone()
	it.updatedAt = time.Now()
	s.mu.Unlock()

	prevShard, _ := s.shards.Locate(v.ID)

	newShard, err := s.shards.Assign(ctx, v.ID, v.Values)
	if err != nil {
		s.revert(ctx, v.ID, it, prevValues, prevMeta, prevUpdated)
		return err
	}

	if err := s.persist(ctx, v.ID); err != nil {
		s.revert(ctx, v.ID, it, prevValues, prevMeta, prevUpdated)
		return err
	}

	if prevShard != "" && newShard != prevShard {
		s.metrics.Inc("vector_reassignments")
		s.logger.Info("vector reassigned on update",
			"id", v.ID,
			"from", prevShard,
			"to", newShard,
		)
	}

	s.metrics.Inc("vector_updates")

	return nil
}

// Delete removes the vector from the store, the shard mapping, and the
// ledger.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	it, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return &ErrNotFound{ID: id}
	}

	s.rows.release(it.row)
	delete(s.items, id)
	s.mu.Unlock()
	s.resources.ReleaseMemory(s.vectorBytes())

	s.shards.Remove(ctx, id)

	if s.ledger != nil {
		if err := s.ledger.DeleteEntry(ctx, kindVector, id); err != nil {
			s.logger.Warn("ledger delete failed", "id", id, "error", err)
		}
	}

	s.metrics.Inc("vector_deletes")

	return nil
}

// Search scores all live vectors against the query, applies exact metadata
// filters, keeps scores at or above threshold, sorts descending with ties
// broken by insertion order, and truncates to limit. A non-positive limit
// returns all matches.
func (s *Store) Search(_ context.Context, query []float32, limit int, threshold float32, filter metadata.Filter) ([]Result, error) {
	if len(query) != s.cfg.Dimensions {
		return nil, &ErrInvalidDimensions{Expected: s.cfg.Dimensions, Actual: len(query)}
	}

	done := s.metrics.Timer("vector_search_duration")
	defer done()

	type hit struct {
		Result
		seq uint64
	}

	s.mu.RLock()

	hits := make([]hit, 0, len(s.items))

	for id, it := range s.items {
		if !filter.Matches(it.meta) {
			continue
		}

		score := s.scorer(query, s.rows.at(it.row))
		if score < threshold {
			continue
		}

		hits = append(hits, hit{
			Result: Result{ID: id, Score: score, Metadata: it.meta.Clone()},
			seq:    it.seq,
		})
	}

	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}

		return hits[i].seq < hits[j].seq
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = h.Result
	}

	s.metrics.Inc("vector_searches")

	return results, nil
}

// CheckRebalancing plans a split for every overfull shard and returns the
// plans. It is a periodic maintenance pass; callers hand the plans to the
// migration scheduler.
func (s *Store) CheckRebalancing(ctx context.Context) ([]*shard.MigrationPlan, error) {
	var plans []*shard.MigrationPlan

	for _, shardID := range s.shards.Overfull() {
		payloads, err := s.shardPayloads(shardID)
		if err != nil {
			return plans, err
		}

		plan, err := s.shards.HandleSplit(ctx, shardID, payloads)
		if err != nil {
			return plans, err
		}

		plans = append(plans, plan)
		s.metrics.Inc("shard_splits_planned")
	}

	return plans, nil
}

// shardPayloads encodes every vector currently mapped to the shard, keyed
// by vector id. These become the batch payloads handed to the transport.
func (s *Store) shardPayloads(shardID string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payloads := make(map[string][]byte)

	for id, it := range s.items {
		owner, ok := s.shards.Locate(id)
		if !ok || owner != shardID {
			continue
		}

		data, err := s.codec.Marshal(s.vectorLocked(id, it))
		if err != nil {
			return nil, err
		}

		payloads[id] = data
	}

	return payloads, nil
}

// persist writes the vector's current state to the ledger, if one is set.
func (s *Store) persist(ctx context.Context, id string) error {
	if s.ledger == nil {
		return nil
	}

	s.mu.RLock()
	it, ok := s.items[id]
	if !ok {
		s.mu.RUnlock()
		return nil
	}
	v := s.vectorLocked(id, it)
	s.mu.RUnlock()

	data, err := s.codec.Marshal(v)
	if err != nil {
		return err
	}

	return s.ledger.PutEntry(ctx, kindVector, id, data)
}

// revert restores a vector's previous values, metadata, and placement
// after a failed update, so memory and the ledger stay consistent.
func (s *Store) revert(ctx context.Context, id string, it *item, values []float32, meta metadata.Metadata, updatedAt time.Time) {
	s.mu.Lock()
	s.rows.set(it.row, values)
	it.meta = meta
	it.updatedAt = updatedAt
	s.mu.Unlock()

	if _, err := s.shards.Assign(ctx, id, values); err != nil {
		s.logger.Warn("placement restore failed", "id", id, "error", err)
	}
}

// vectorBytes is the accounted buffer cost of one vector.
func (s *Store) vectorBytes() int64 {
	return int64(4 * s.cfg.Dimensions)
}

// vectorLocked materializes a Vector copy; callers hold at least a read lock.
func (s *Store) vectorLocked(id string, it *item) *Vector {
	return &Vector{
		ID:        id,
		Values:    slices.Clone(s.rows.at(it.row)),
		Metadata:  it.meta.Clone(),
		CreatedAt: it.createdAt,
		UpdatedAt: it.updatedAt,
	}
}
