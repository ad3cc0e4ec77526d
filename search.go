// Package vecmesh provides a distributed vector-and-knowledge store.
//
// This file implements a fluent search API for querying Mesh instances.
package vecmesh

import (
	"context"
	"iter"

	"github.com/hupe1980/vecmesh/metadata"
	"github.com/hupe1980/vecmesh/router"
	"github.com/hupe1980/vecmesh/vectorstore"
)

// Search creates a new fluent search builder for the given query vector.
// Queries route through the health-aware fan-out path, so answers may come
// from remote nodes and the TTL cache as well as the local store.
//
// Example:
//
//	results, err := mesh.Search(query).
//	    Limit(10).
//	    Threshold(0.8).
//	    Execute(ctx)
func (m *Mesh) Search(query []float32) *SearchBuilder {
	return &SearchBuilder{
		mesh:  m,
		query: query,
		limit: 10,
	}
}

// SearchBuilder is a fluent builder for constructing similarity queries.
type SearchBuilder struct {
	mesh      *Mesh
	query     []float32
	limit     int
	threshold float32
	filters   metadata.Filter
	localOnly bool
}

// Limit sets the maximum number of results to return.
func (sb *SearchBuilder) Limit(limit int) *SearchBuilder {
	sb.limit = limit
	return sb
}

// Threshold drops results scoring below the given similarity.
func (sb *SearchBuilder) Threshold(threshold float32) *SearchBuilder {
	sb.threshold = threshold
	return sb
}

// Filter keeps only vectors whose metadata matches every listed key
// exactly.
func (sb *SearchBuilder) Filter(filters metadata.Filter) *SearchBuilder {
	sb.filters = filters
	return sb
}

// LocalOnly skips the fan-out and cache, answering from the local store.
func (sb *SearchBuilder) LocalOnly() *SearchBuilder {
	sb.localOnly = true
	return sb
}

// Execute runs the search and returns the results.
func (sb *SearchBuilder) Execute(ctx context.Context) ([]vectorstore.Result, error) {
	var (
		results []vectorstore.Result
		err     error
	)

	if sb.localOnly {
		results, err = sb.mesh.vectors.Search(ctx, sb.query, sb.limit, sb.threshold, sb.filters)
	} else {
		results, err = sb.mesh.router.Route(ctx, router.Request{
			Vector:    sb.query,
			Limit:     sb.limit,
			Threshold: sb.threshold,
			Filters:   sb.filters,
		})
	}

	err = translateError(err)
	sb.mesh.logger.LogSearch(ctx, sb.limit, len(results), err)

	if err != nil {
		return nil, err
	}

	return results, nil
}

// Stream returns an iterator over search results. Results are yielded from
// best to worst score; breaking out of the loop terminates early.
//
// Example:
//
//	for result, err := range mesh.Search(query).Limit(100).Stream(ctx) {
//	    if err != nil { break }
//	    if result.Score < 0.5 { break } // Early termination
//	    process(result)
//	}
func (sb *SearchBuilder) Stream(ctx context.Context) iter.Seq2[vectorstore.Result, error] {
	return func(yield func(vectorstore.Result, error) bool) {
		results, err := sb.Execute(ctx)
		if err != nil {
			yield(vectorstore.Result{}, err)
			return
		}

		for _, r := range results {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// First returns only the best result, or ErrNotFound if nothing matched.
func (sb *SearchBuilder) First(ctx context.Context) (vectorstore.Result, error) {
	sb.limit = 1

	results, err := sb.Execute(ctx)
	if err != nil {
		return vectorstore.Result{}, err
	}
	if len(results) == 0 {
		return vectorstore.Result{}, ErrNotFound
	}

	return results[0], nil
}

// Count executes the search and returns the number of results.
func (sb *SearchBuilder) Count(ctx context.Context) (int, error) {
	results, err := sb.Execute(ctx)
	if err != nil {
		return 0, err
	}

	return len(results), nil
}
