package vecmesh

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/vecmesh/breaker"
	"github.com/hupe1980/vecmesh/knowledge"
	"github.com/hupe1980/vecmesh/ledger"
	"github.com/hupe1980/vecmesh/metrics"
	"github.com/hupe1980/vecmesh/resource"
	"github.com/hupe1980/vecmesh/router"
	"github.com/hupe1980/vecmesh/shard"
	"github.com/hupe1980/vecmesh/vectorstore"
)

// Mesh is a distributed vector-and-knowledge store node. It owns the local
// vector shards and knowledge sets, and routes similarity queries across
// the nodes it knows about.
type Mesh struct {
	opts options

	ledger    ledger.Ledger
	resources *resource.Controller
	shards    *shard.Manager
	scheduler *shard.Scheduler
	vectors   *vectorstore.Store
	router    *router.Router

	knowledgeMu sync.RWMutex
	agents      map[string]*knowledge.Set

	metrics   *metrics.Collector
	logger    *Logger
	closeOnce sync.Once
}

// New creates a Mesh.
func New(optFns ...Option) (*Mesh, error) {
	o := applyOptions(optFns)

	led := o.ledger
	if led == nil {
		led = ledger.NewMemory("")
	}

	transport := o.transport
	if transport == nil {
		transport = shard.NewLoopback(nil, nil)
	}

	breakers := breaker.NewGroup(o.breakerConfig, breaker.WithMetrics(o.metricsCollector))
	resources := resource.NewController(o.resourceConfig)

	shards, err := shard.NewManager(o.shardConfig,
		shard.WithTransport(transport),
		shard.WithLedger(led),
		shard.WithCodec(o.codec),
		shard.WithBreakers(breakers),
		shard.WithResources(resources),
		shard.WithMetrics(o.metricsCollector),
		shard.WithLogger(o.logger.Logger),
	)
	if err != nil {
		return nil, err
	}

	vectors, err := vectorstore.New(vectorstore.Config{
		Dimensions: o.dimensions,
		Metric:     o.metric,
		Schema:     o.schema,
	}, shards,
		vectorstore.WithLedger(led),
		vectorstore.WithCodec(o.codec),
		vectorstore.WithResources(resources),
		vectorstore.WithMetrics(o.metricsCollector),
		vectorstore.WithLogger(o.logger.Logger),
	)
	if err != nil {
		return nil, err
	}

	local := router.ExecutorFunc(func(ctx context.Context, req router.Request) ([]vectorstore.Result, error) {
		return vectors.Search(ctx, req.Vector, req.Limit, req.Threshold, req.Filters)
	})

	rt := router.New(o.routerConfig, local,
		router.WithBreakers(breakers),
		router.WithRetryStrategy(o.retryStrategy),
		router.WithMetrics(o.metricsCollector),
		router.WithLogger(o.logger.Logger),
	)

	scheduler := shard.NewScheduler(shards, shard.WithSchedulerResources(resources))
	scheduler.Start()

	m := &Mesh{
		opts:      o,
		ledger:    led,
		resources: resources,
		shards:    shards,
		scheduler: scheduler,
		vectors:   vectors,
		router:    rt,
		agents:    make(map[string]*knowledge.Set),
		metrics:   o.metricsCollector,
		logger:    o.logger,
	}

	return m, nil
}

// Insert adds a vector and assigns it a shard.
func (m *Mesh) Insert(ctx context.Context, v *vectorstore.Vector) error {
	err := translateError(m.vectors.Insert(ctx, v))
	m.logger.LogInsert(ctx, v.ID, len(v.Values), err)

	return err
}

// Get returns a copy of the stored vector.
func (m *Mesh) Get(ctx context.Context, id string) (*vectorstore.Vector, error) {
	v, err := m.vectors.Get(ctx, id)

	return v, translateError(err)
}

// Update replaces the vector's values and metadata wholesale.
func (m *Mesh) Update(ctx context.Context, v *vectorstore.Vector) error {
	err := translateError(m.vectors.Update(ctx, v))
	m.logger.LogUpdate(ctx, v.ID, err)

	return err
}

// Delete removes the vector.
func (m *Mesh) Delete(ctx context.Context, id string) error {
	err := translateError(m.vectors.Delete(ctx, id))
	m.logger.LogDelete(ctx, id, err)

	return err
}

// CheckRebalancing plans splits for overfull shards and hands them to the
// background scheduler. Call it periodically, not per write.
func (m *Mesh) CheckRebalancing(ctx context.Context) error {
	plans, err := m.vectors.CheckRebalancing(ctx)
	m.logger.LogRebalance(ctx, len(plans), err)

	if err != nil {
		return translateError(err)
	}

	for _, plan := range plans {
		if err := m.scheduler.Enqueue(plan); err != nil {
			return translateError(err)
		}
	}

	return nil
}

// AddKnowledge creates or updates a knowledge entry in the agent's set,
// stamping an incremented version for the agent. An empty agent resolves
// to the ledger's current identity.
func (m *Mesh) AddKnowledge(ctx context.Context, k knowledge.Knowledge, agent string) error {
	agent = m.resolveAgent(agent)

	return translateError(m.agentSet(agent).Add(ctx, k, agent))
}

// DeleteKnowledge tombstones the entry in the agent's set. Unknown ids are
// a no-op.
func (m *Mesh) DeleteKnowledge(ctx context.Context, id, agent string) error {
	agent = m.resolveAgent(agent)

	return translateError(m.agentSet(agent).Delete(ctx, id, agent))
}

// GetKnowledge returns the live entry from the agent's set.
func (m *Mesh) GetKnowledge(ctx context.Context, id, agent string) (*knowledge.Entry, error) {
	e, err := m.agentSet(m.resolveAgent(agent)).Get(ctx, id)

	return e, translateError(err)
}

// SearchKnowledge queries the agent's set.
func (m *Mesh) SearchKnowledge(ctx context.Context, q knowledge.Query, agent string) []knowledge.SearchResult {
	return m.agentSet(m.resolveAgent(agent)).Search(ctx, q)
}

// LinkKnowledge records a tagged relation between two knowledge entries
// through the ledger. Relations are weak references: they never own the
// target, and linking does not require it to exist.
func (m *Mesh) LinkKnowledge(ctx context.Context, baseID, tag, targetID string) error {
	return translateError(m.ledger.Link(ctx, baseID, tag, targetID))
}

// RelatedKnowledge resolves the entries linked from id under tag in the
// agent's set. Links whose target is tombstoned or pruned are skipped.
func (m *Mesh) RelatedKnowledge(ctx context.Context, id, tag, agent string) ([]*knowledge.Entry, error) {
	targets, err := m.ledger.GetLinks(ctx, id, tag)
	if err != nil {
		return nil, translateError(err)
	}

	set := m.agentSet(m.resolveAgent(agent))

	entries := make([]*knowledge.Entry, 0, len(targets))
	for _, target := range targets {
		e, err := set.Get(ctx, target)
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// MergeKnowledge folds the source agent's set into the target agent's.
// The merge is conflict-free: concurrent updates converge regardless of
// merge order.
func (m *Mesh) MergeKnowledge(ctx context.Context, sourceAgent, targetAgent string) error {
	sourceAgent = m.resolveAgent(sourceAgent)
	targetAgent = m.resolveAgent(targetAgent)

	err := translateError(m.agentSet(targetAgent).Merge(ctx, m.agentSet(sourceAgent)))
	m.logger.LogMerge(ctx, sourceAgent, targetAgent, err)

	return err
}

// PruneTombstones hard-removes tombstones older than maxAge from every
// agent's set and returns how many were dropped.
func (m *Mesh) PruneTombstones(ctx context.Context, maxAge time.Duration) int {
	m.knowledgeMu.RLock()
	sets := make([]*knowledge.Set, 0, len(m.agents))
	for _, s := range m.agents {
		sets = append(sets, s)
	}
	m.knowledgeMu.RUnlock()

	pruned := 0
	for _, s := range sets {
		pruned += s.PruneTombstones(ctx, maxAge)
	}

	return pruned
}

// AddNode registers a remote node the router may fan queries out to.
func (m *Mesh) AddNode(nodeID string, exec router.Executor) {
	m.router.AddNode(nodeID, exec)
}

// RemoveNode drops a remote node from the fan-out set.
func (m *Mesh) RemoveNode(nodeID string) {
	m.router.RemoveNode(nodeID)
}

// UpdateNodeHealth records a node's latest resource report.
func (m *Mesh) UpdateNodeHealth(nodeID string, h router.NodeHealth) {
	m.router.UpdateNodeHealth(nodeID, h)
}

// AllNodeHealth returns the latest report per node.
func (m *Mesh) AllNodeHealth() map[string]router.NodeHealth {
	return m.router.AllNodeHealth()
}

// MigrationStatus returns a snapshot of every registered migration.
func (m *Mesh) MigrationStatus() []shard.Status {
	return m.shards.MigrationStatus()
}

// Stats is a point-in-time operational summary.
type Stats struct {
	Vectors        int              `json:"vectors"`
	MemoryBytes    int64            `json:"memoryBytes"`
	ShardSizes     map[string]int   `json:"shardSizes"`
	KnowledgeSizes map[string]int   `json:"knowledgeSizes"`
	Migrations     []shard.Status   `json:"migrations"`
	Metrics        metrics.Snapshot `json:"metrics"`
}

// Stats returns counts per shard and agent plus the metrics snapshot.
func (m *Mesh) Stats() Stats {
	m.knowledgeMu.RLock()
	ks := make(map[string]int, len(m.agents))
	for agent, s := range m.agents {
		ks[agent] = s.Len()
	}
	m.knowledgeMu.RUnlock()

	return Stats{
		Vectors:        m.vectors.Len(),
		MemoryBytes:    m.resources.MemoryUsage(),
		ShardSizes:     m.shards.ShardSizes(),
		KnowledgeSizes: ks,
		Migrations:     m.shards.MigrationStatus(),
		Metrics:        m.metrics.Snapshot(),
	}
}

// resolveAgent substitutes the ledger identity for an empty agent.
func (m *Mesh) resolveAgent(agent string) string {
	if agent == "" {
		return m.ledger.CurrentAgent()
	}

	return agent
}

// agentSet returns the agent's knowledge set, creating it on first use.
func (m *Mesh) agentSet(agent string) *knowledge.Set {
	m.knowledgeMu.RLock()
	s, ok := m.agents[agent]
	m.knowledgeMu.RUnlock()

	if ok {
		return s
	}

	m.knowledgeMu.Lock()
	defer m.knowledgeMu.Unlock()

	if s, ok := m.agents[agent]; ok {
		return s
	}

	s = knowledge.NewSet(m.opts.knowledgeLimit,
		knowledge.WithMetrics(m.metrics),
		knowledge.WithLogger(m.logger.Logger),
	)
	m.agents[agent] = s

	return s
}
