package ledger

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-memory Ledger implementation.
// It is the reference stand-in for tests and single-process deployments.
// Thread-safe for concurrent reads and writes.
type Memory struct {
	agent string

	mu      sync.RWMutex
	entries map[string][]byte
	links   map[string][]string
}

// NewMemory creates an in-memory ledger attributing writes to agent.
func NewMemory(agent string) *Memory {
	if agent == "" {
		agent = "local"
	}
	return &Memory{
		agent:   agent,
		entries: make(map[string][]byte),
		links:   make(map[string][]string),
	}
}

// PutEntry stores data under (kind, id).
func (m *Memory) PutEntry(_ context.Context, kind, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[kind+"/"+id] = slices.Clone(data)
	return nil
}

// GetEntry returns the data stored under (kind, id).
func (m *Memory) GetEntry(_ context.Context, kind, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.entries[kind+"/"+id]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

// DeleteEntry removes the entry under (kind, id).
func (m *Memory) DeleteEntry(_ context.Context, kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, kind+"/"+id)
	return nil
}

// Link records a tagged edge from base to target.
func (m *Memory) Link(_ context.Context, base, tag, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := base + "#" + tag
	if slices.Contains(m.links[key], target) {
		return nil
	}
	m.links[key] = append(m.links[key], target)
	return nil
}

// GetLinks returns the targets linked from base under tag.
func (m *Memory) GetLinks(_ context.Context, base, tag string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.links[base+"#"+tag]), nil
}

// CurrentAgent returns the identity writes are attributed to.
func (m *Memory) CurrentAgent() string { return m.agent }

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
