package knowledge

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/vecmesh/metrics"
)

// confidenceHalfLife controls the recency weighting of concurrent merges:
// a report this old carries half the weight of a fresh one.
const confidenceHalfLife = time.Hour

// Knowledge is the replicated payload of an entry.
type Knowledge struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Tags       []string  `json:"tags,omitempty"`
	Source     string    `json:"source,omitempty"`
	Confidence float64   `json:"confidence"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

func (k Knowledge) clone() Knowledge {
	k.Tags = slices.Clone(k.Tags)
	k.Embedding = slices.Clone(k.Embedding)

	return k
}

// Entry is a knowledge payload plus its replication state.
type Entry struct {
	Knowledge  Knowledge     `json:"knowledge"`
	Version    VersionVector `json:"version"`
	Tombstone  bool          `json:"tombstone"`
	LastUpdate time.Time     `json:"lastUpdate"`
}

// Clone returns an independent copy of the entry.
func (e *Entry) Clone() *Entry {
	return &Entry{
		Knowledge:  e.Knowledge.clone(),
		Version:    e.Version.Clone(),
		Tombstone:  e.Tombstone,
		LastUpdate: e.LastUpdate,
	}
}

// Set is a bounded CRDT knowledge store. Tombstones count toward capacity
// until pruned.
type Set struct {
	mu         sync.RWMutex
	maxEntries int
	entries    map[string]*Entry
	index      *invertedIndex

	now     func() time.Time
	metrics *metrics.Collector
	logger  *slog.Logger
}

// SetOption configures a Set.
type SetOption func(*Set)

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) SetOption {
	return func(s *Set) { s.metrics = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) SetOption {
	return func(s *Set) { s.logger = l }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) SetOption {
	return func(s *Set) { s.now = now }
}

// NewSet creates an empty knowledge set holding at most maxEntries entries.
func NewSet(maxEntries int, optFns ...SetOption) *Set {
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	s := &Set{
		maxEntries: maxEntries,
		entries:    make(map[string]*Entry),
		index:      newInvertedIndex(),
		now:        time.Now,
		logger:     slog.New(slog.DiscardHandler),
	}

	for _, fn := range optFns {
		fn(s)
	}

	return s
}

// Len returns the number of entries, tombstones included.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Add creates the entry or replaces an existing one under an incremented
// version for agent. Adding over a tombstone revives the entry.
func (s *Set) Add(_ context.Context, k Knowledge, agent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[k.ID]
	if !ok {
		if len(s.entries) >= s.maxEntries {
			return &ErrStorageLimitReached{Limit: s.maxEntries, Current: len(s.entries)}
		}

		e = &Entry{Version: NewVersionVector()}
		s.entries[k.ID] = e
	} else if !e.Tombstone {
		s.index.remove(k.ID, e.Knowledge.Tags, e.Knowledge.Source)
	}

	e.Knowledge = k.clone()
	e.Knowledge.Tags = unionTags(e.Knowledge.Tags, nil)
	e.Tombstone = false
	e.Version.Increment(agent)
	e.LastUpdate = s.now()

	s.index.add(k.ID, e.Knowledge.Tags, e.Knowledge.Source)
	s.metrics.Inc("knowledge_adds")

	return nil
}

// Delete converts the entry into a tombstone under an incremented version.
// Deleting an unknown id is a no-op.
func (s *Set) Delete(_ context.Context, id, agent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil
	}

	if !e.Tombstone {
		s.index.remove(id, e.Knowledge.Tags, e.Knowledge.Source)
	}

	e.Tombstone = true
	e.Version.Increment(agent)
	e.LastUpdate = s.now()

	s.metrics.Inc("knowledge_deletes")

	return nil
}

// Get returns a copy of the live entry.
func (s *Set) Get(_ context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || e.Tombstone {
		return nil, &ErrNotFound{ID: id}
	}

	return e.Clone(), nil
}

// Merge folds the other set into this one: overlapping entries go through
// the pairwise merge rule, disjoint ones are copied while capacity allows.
// Merge is commutative, associative, and idempotent.
func (s *Set) Merge(_ context.Context, other *Set) error {
	theirs := other.snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, them := range theirs {
		mine, ok := s.entries[id]
		if !ok {
			if len(s.entries) >= s.maxEntries {
				s.metrics.Inc("knowledge_merge_skipped")
				s.logger.Warn("merge skipped entry, set full", "id", id)

				continue
			}

			s.entries[id] = them
			if !them.Tombstone {
				s.index.add(id, them.Knowledge.Tags, them.Knowledge.Source)
			}

			continue
		}

		merged := mergeEntries(mine, them, s.now())

		if !mine.Tombstone {
			s.index.remove(id, mine.Knowledge.Tags, mine.Knowledge.Source)
		}
		if !merged.Tombstone {
			s.index.add(id, merged.Knowledge.Tags, merged.Knowledge.Source)
		}

		s.entries[id] = merged
	}

	s.metrics.Inc("knowledge_merges")

	return nil
}

// PruneTombstones hard-removes tombstones whose last update is older than
// maxAge. This is the only true-deletion path; younger tombstones stay as
// a safety margin against resurrecting not-yet-merged updates.
func (s *Set) PruneTombstones(_ context.Context, maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0

	for id, e := range s.entries {
		if e.Tombstone && e.LastUpdate.Before(cutoff) {
			delete(s.entries, id)
			pruned++
		}
	}

	if pruned > 0 {
		s.metrics.Add("knowledge_tombstones_pruned", int64(pruned))
	}

	return pruned
}

// snapshot returns deep copies of all entries.
func (s *Set) snapshot() map[string]*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*Entry, len(s.entries))
	for id, e := range s.entries {
		out[id] = e.Clone()
	}

	return out
}

// mergeEntries applies the pairwise merge rule. Deletion is not sticky: a
// live entry whose version strictly dominates a tombstone's revives the id.
func mergeEntries(a, b *Entry, now time.Time) *Entry {
	switch {
	case a.Tombstone && b.Tombstone:
		out := newer(a, b).Clone()
		out.Version.Merge(older(a, b).Version)

		return out

	case a.Tombstone != b.Tombstone:
		tomb, live := a, b
		if b.Tombstone {
			tomb, live = b, a
		}

		out := tomb.Clone()
		if live.Version.Dominates(tomb.Version) {
			out = live.Clone()
		}
		out.Version.Merge(a.Version)
		out.Version.Merge(b.Version)

		return out

	case a.Version.Dominates(b.Version):
		return a.Clone()

	case b.Version.Dominates(a.Version):
		return b.Clone()

	default:
		// Concurrent or equal versions: union the tag sets, average the
		// confidence weighted by recency, take the newer payload.
		out := newer(a, b).Clone()
		out.Knowledge.Tags = unionTags(a.Knowledge.Tags, b.Knowledge.Tags)
		out.Knowledge.Confidence = weightedConfidence(a, b, now)
		out.Version.Merge(older(a, b).Version)

		return out
	}
}

// newer picks the entry with the later last update; ties break by content
// then id so both merge directions agree.
func newer(a, b *Entry) *Entry {
	if a.LastUpdate.After(b.LastUpdate) {
		return a
	}
	if b.LastUpdate.After(a.LastUpdate) {
		return b
	}
	if a.Knowledge.Content != b.Knowledge.Content {
		if a.Knowledge.Content > b.Knowledge.Content {
			return a
		}
		return b
	}
	if a.Knowledge.ID > b.Knowledge.ID {
		return a
	}

	return b
}

func older(a, b *Entry) *Entry {
	if newer(a, b) == a {
		return b
	}

	return a
}

// unionTags merges two tag sets into a sorted, deduplicated slice.
func unionTags(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)

	slices.Sort(out)

	return slices.Compact(out)
}

// weightedConfidence averages the two confidences with exponential decay:
// the staler report counts for less, halving per confidenceHalfLife.
func weightedConfidence(a, b *Entry, now time.Time) float64 {
	wa := decay(now.Sub(a.LastUpdate))
	wb := decay(now.Sub(b.LastUpdate))

	if wa+wb == 0 {
		return (a.Knowledge.Confidence + b.Knowledge.Confidence) / 2
	}

	return (wa*a.Knowledge.Confidence + wb*b.Knowledge.Confidence) / (wa + wb)
}

func decay(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}

	return math.Pow(0.5, float64(age)/float64(confidenceHalfLife))
}
