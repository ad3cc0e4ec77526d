package router

import (
	"maps"
	"sync"
	"time"
)

// NodeHealth is a node's latest resource report. Reports are ephemeral;
// each new one overwrites the previous.
type NodeHealth struct {
	CPUUsage    float64       `json:"cpuUsage"`
	MemoryUsage float64       `json:"memoryUsage"`
	AvgLatency  time.Duration `json:"avgLatency"`
	ErrorRate   float64       `json:"errorRate"`
	LastUpdate  time.Time     `json:"lastUpdate"`
}

// Score weighs CPU headroom and memory headroom at 30% each, inverse
// latency and inverse error rate at 20% each.
func (h NodeHealth) Score() float64 {
	invLatency := 1.0 / (1.0 + h.AvgLatency.Seconds())

	return 0.3*(1.0-h.CPUUsage) +
		0.3*(1.0-h.MemoryUsage) +
		0.2*invLatency +
		0.2*(1.0-h.ErrorRate)
}

// healthTable guards the node-health map separately from the cache and
// executor registry so health reports never block queries.
type healthTable struct {
	mu     sync.RWMutex
	health map[string]NodeHealth
}

func newHealthTable() *healthTable {
	return &healthTable{health: make(map[string]NodeHealth)}
}

func (t *healthTable) update(nodeID string, h NodeHealth) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.health[nodeID] = h
}

func (t *healthTable) get(nodeID string) (NodeHealth, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.health[nodeID]

	return h, ok
}

func (t *healthTable) all() map[string]NodeHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return maps.Clone(t.health)
}

// bumpErrorRate raises the node's error rate after a failed sub-query so
// the next routing pass deprioritizes it until a fresh report arrives.
func (t *healthTable) bumpErrorRate(nodeID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.health[nodeID]
	h.ErrorRate += 0.1
	if h.ErrorRate > 1 {
		h.ErrorRate = 1
	}
	h.LastUpdate = now

	t.health[nodeID] = h
}
