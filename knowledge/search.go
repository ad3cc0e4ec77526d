package knowledge

import (
	"context"
	"sort"
	"strings"

	"github.com/hupe1980/vecmesh/distance"
)

// Query filters and ranks knowledge entries. All set fields must match;
// zero values are ignored. When Embedding is set, results rank by cosine
// similarity; otherwise by confidence descending with id tie-break.
type Query struct {
	Embedding     []float32
	Text          string
	Tags          []string
	Source        string
	MinConfidence float64
	Limit         int
}

// SearchResult pairs an entry copy with its ranking score.
type SearchResult struct {
	Entry *Entry
	Score float64
}

// Search returns live entries matching the query. Tag and source filters
// resolve through the posting lists; text matches case-insensitively on
// content.
func (s *Set) Search(_ context.Context, q Query) []SearchResult {
	done := s.metrics.Timer("knowledge_search_duration")
	defer done()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*Entry

	if bm, ok := s.index.candidates(q.Tags, q.Source); ok {
		candidates = make([]*Entry, 0, bm.GetCardinality())

		it := bm.Iterator()
		for it.HasNext() {
			if e, ok := s.entries[s.index.id(it.Next())]; ok {
				candidates = append(candidates, e)
			}
		}
	} else {
		candidates = make([]*Entry, 0, len(s.entries))
		for _, e := range s.entries {
			candidates = append(candidates, e)
		}
	}

	text := strings.ToLower(q.Text)
	results := make([]SearchResult, 0, len(candidates))

	for _, e := range candidates {
		if e.Tombstone {
			continue
		}

		if e.Knowledge.Confidence < q.MinConfidence {
			continue
		}

		if text != "" && !strings.Contains(strings.ToLower(e.Knowledge.Content), text) {
			continue
		}

		score := e.Knowledge.Confidence
		if len(q.Embedding) > 0 {
			if len(e.Knowledge.Embedding) != len(q.Embedding) {
				continue
			}

			score = float64(distance.Cosine(q.Embedding, e.Knowledge.Embedding))
		}

		results = append(results, SearchResult{Entry: e.Clone(), Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}

		return results[i].Entry.Knowledge.ID < results[j].Entry.Knowledge.ID
	})

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}

	s.metrics.Inc("knowledge_searches")

	return results
}
