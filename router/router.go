package router

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/vecmesh/breaker"
	"github.com/hupe1980/vecmesh/metadata"
	"github.com/hupe1980/vecmesh/metrics"
	"github.com/hupe1980/vecmesh/retry"
	"github.com/hupe1980/vecmesh/vectorstore"
)

// ErrNodeUnavailable is returned when every sub-query failed.
var ErrNodeUnavailable = errors.New("no node available")

// minHealthScore excludes nodes at or below this score until a fresher
// report clears them.
const minHealthScore = 0.5

// hashPrefix caps how many vector components feed the query hash.
const hashPrefix = 8

// Request is a similarity query routed across nodes.
type Request struct {
	Vector    []float32
	Limit     int
	Threshold float32
	Filters   metadata.Filter
}

// Executor answers a similarity query on behalf of one node.
type Executor interface {
	Query(ctx context.Context, req Request) ([]vectorstore.Result, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req Request) ([]vectorstore.Result, error)

func (f ExecutorFunc) Query(ctx context.Context, req Request) ([]vectorstore.Result, error) {
	return f(ctx, req)
}

// Config holds the router parameters.
type Config struct {
	// LocalID names the local node. It is always queried.
	LocalID string

	// ParallelQueries caps how many remote nodes join a fan-out.
	ParallelQueries int

	// CacheTTL is how long merged answers stay valid.
	CacheTTL time.Duration

	// SubQueryTimeout bounds each node's sub-query.
	SubQueryTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.LocalID == "" {
		c.LocalID = "local"
	}

	if c.ParallelQueries <= 0 {
		c.ParallelQueries = 3
	}

	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Second
	}

	if c.SubQueryTimeout <= 0 {
		c.SubQueryTimeout = 2 * time.Second
	}

	return c
}

// Router fans queries out to the local executor plus the healthiest
// remote nodes, merges the answers, and caches them.
type Router struct {
	cfg   Config
	local Executor

	mu    sync.RWMutex
	nodes map[string]Executor

	health *healthTable
	cache  *resultCache
	flight singleflight.Group

	breakers *breaker.Group
	retry    retry.Strategy

	now     func() time.Time
	metrics *metrics.Collector
	logger  *slog.Logger
}

// Option configures the router.
type Option func(*Router)

// WithBreakers sets the per-node circuit breaker group for remote calls.
func WithBreakers(g *breaker.Group) Option {
	return func(r *Router) { r.breakers = g }
}

// WithRetryStrategy sets the backoff used for remote sub-queries.
func WithRetryStrategy(s retry.Strategy) Option {
	return func(r *Router) { r.retry = s }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Router) { r.metrics = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// New creates a router around the local executor.
func New(cfg Config, local Executor, optFns ...Option) *Router {
	cfg = cfg.withDefaults()

	r := &Router{
		cfg:      cfg,
		local:    local,
		nodes:    make(map[string]Executor),
		health:   newHealthTable(),
		cache:    newResultCache(cfg.CacheTTL),
		breakers: breaker.NewGroup(breaker.Config{}),
		now:      time.Now,
		logger:   slog.New(slog.DiscardHandler),
	}

	for _, fn := range optFns {
		fn(r)
	}

	return r
}

// AddNode registers a remote node's executor.
func (r *Router) AddNode(nodeID string, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nodes[nodeID] = exec
}

// RemoveNode drops a remote node.
func (r *Router) RemoveNode(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.nodes, nodeID)
}

// UpdateNodeHealth records a node's latest resource report.
func (r *Router) UpdateNodeHealth(nodeID string, h NodeHealth) {
	if h.LastUpdate.IsZero() {
		h.LastUpdate = r.now()
	}

	r.health.update(nodeID, h)
}

// AllNodeHealth returns the latest report per node.
func (r *Router) AllNodeHealth() map[string]NodeHealth {
	return r.health.all()
}

// Route answers the query from the cache, or fans it out to the local
// node plus the healthiest remotes. Concurrent identical queries collapse
// into one fill, and an abandoned caller does not stop the fill from
// populating the cache.
func (r *Router) Route(ctx context.Context, req Request) ([]vectorstore.Result, error) {
	key := hashQuery(req)

	if results, ok := r.cache.get(key, r.now()); ok {
		r.metrics.Inc("router_cache_hits")
		return results, nil
	}

	r.metrics.Inc("router_cache_misses")

	fillCtx := context.WithoutCancel(ctx)

	ch := r.flight.DoChan(strconv.FormatUint(key, 16), func() (any, error) {
		return r.fill(fillCtx, key, req)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		return res.Val.([]vectorstore.Result), nil
	}
}

// fill runs the fan-out, merges the answers, and writes the cache.
func (r *Router) fill(ctx context.Context, key uint64, req Request) ([]vectorstore.Result, error) {
	done := r.metrics.Timer("router_fanout_duration")
	defer done()

	targets := r.selectNodes()

	type answer struct {
		nodeID  string
		results []vectorstore.Result
		err     error
	}

	answers := make([]answer, len(targets)+1)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		qctx, cancel := context.WithTimeout(gctx, r.cfg.SubQueryTimeout)
		defer cancel()

		results, err := r.local.Query(qctx, req)
		answers[0] = answer{nodeID: r.cfg.LocalID, results: results, err: err}

		return nil
	})

	for i, tg := range targets {
		g.Go(func() error {
			results, err := r.queryRemote(gctx, tg.nodeID, tg.exec, req)
			answers[i+1] = answer{nodeID: tg.nodeID, results: results, err: err}

			return nil
		})
	}

	_ = g.Wait()

	merged := make(map[string]vectorstore.Result)
	failed := 0

	var errs []error

	for _, a := range answers {
		if a.err != nil {
			failed++
			errs = append(errs, fmt.Errorf("%s: %w", a.nodeID, a.err))

			r.health.bumpErrorRate(a.nodeID, r.now())
			r.metrics.Inc("router_subquery_failures")
			r.logger.Warn("sub-query failed", "node", a.nodeID, "error", a.err)

			continue
		}

		for _, res := range a.results {
			if cur, ok := merged[res.ID]; !ok || res.Score > cur.Score {
				merged[res.ID] = res
			}
		}
	}

	if failed == len(answers) {
		return nil, fmt.Errorf("%w: %w", ErrNodeUnavailable, errors.Join(errs...))
	}

	results := make([]vectorstore.Result, 0, len(merged))
	for _, res := range merged {
		results = append(results, res)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}

		return results[i].ID < results[j].ID
	})

	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}

	r.cache.put(key, results, r.now())

	return results, nil
}

type target struct {
	nodeID string
	exec   Executor
	score  float64
}

// selectNodes ranks the remotes by health score, skipping any at or below
// the exclusion threshold, and caps the fan-out width. Nodes without a
// report yet count as fully healthy.
func (r *Router) selectNodes() []target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make([]target, 0, len(r.nodes))

	for nodeID, exec := range r.nodes {
		score := 1.0
		if h, ok := r.health.get(nodeID); ok {
			score = h.Score()
		}

		if score <= minHealthScore {
			r.metrics.Inc("router_nodes_excluded")
			continue
		}

		targets = append(targets, target{nodeID: nodeID, exec: exec, score: score})
	}

	sort.Slice(targets, func(i, j int) bool {
		if targets[i].score != targets[j].score {
			return targets[i].score > targets[j].score
		}

		return targets[i].nodeID < targets[j].nodeID
	})

	if len(targets) > r.cfg.ParallelQueries {
		targets = targets[:r.cfg.ParallelQueries]
	}

	return targets
}

// queryRemote runs one node's sub-query gated by its circuit breaker,
// retrying transient failures. Reads are idempotent, so retries are safe.
func (r *Router) queryRemote(ctx context.Context, nodeID string, exec Executor, req Request) ([]vectorstore.Result, error) {
	var results []vectorstore.Result

	strat := r.retry

	err := retry.Do(ctx, &strat, transient, func(ctx context.Context) error {
		return r.breakers.Do("node:"+nodeID, func() error {
			qctx, cancel := context.WithTimeout(ctx, r.cfg.SubQueryTimeout)
			defer cancel()

			var qerr error
			results, qerr = exec.Query(qctx, req)

			return qerr
		})
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// transient reports whether the sub-query error is worth a retry.
func transient(err error) bool {
	return errors.Is(err, breaker.ErrOpen) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrNodeUnavailable)
}

// hashQuery fingerprints a request by its vector prefix, limit, threshold,
// and filters.
func hashQuery(req Request) uint64 {
	h := fnv.New64a()

	var buf [8]byte

	n := min(len(req.Vector), hashPrefix)
	for _, v := range req.Vector[:n] {
		binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(v))
		_, _ = h.Write(buf[:4])
	}

	binary.LittleEndian.PutUint64(buf[:], uint64(req.Limit))
	_, _ = h.Write(buf[:])

	binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(req.Threshold))
	_, _ = h.Write(buf[:4])

	keys := make([]string, 0, len(req.Filters))
	for k := range req.Filters {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		_, _ = h.Write([]byte(k))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(req.Filters[k]))
		_, _ = h.Write([]byte{0})
	}

	return h.Sum64()
}
