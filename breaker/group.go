package breaker

import "sync"

// Group manages one Breaker per named resource, created on demand with a
// shared configuration. Safe for concurrent use.
type Group struct {
	cfg    Config
	optFns []Option

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewGroup creates a Group whose breakers share cfg and options.
func NewGroup(cfg Config, optFns ...Option) *Group {
	return &Group{
		cfg:      cfg,
		optFns:   optFns,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for the named resource, creating it if needed.
func (g *Group) Get(name string) *Breaker {
	g.mu.RLock()
	b, ok := g.breakers[name]
	g.mu.RUnlock()
	if ok {
		return b
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok = g.breakers[name]; ok {
		return b
	}
	b = New(name, g.cfg, g.optFns...)
	g.breakers[name] = b
	return b
}

// Do runs fn under the named breaker: it fails fast with ErrOpen when the
// breaker rejects the call, and records the outcome otherwise.
func (g *Group) Do(name string, fn func() error) error {
	b := g.Get(name)
	if !b.Allow() {
		return ErrOpen
	}
	if err := fn(); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}
