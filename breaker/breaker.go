// Package breaker implements a per-resource circuit breaker: a state
// machine that halts calls to a failing dependency until it has had time
// to recover.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/vecmesh/metrics"
)

// ErrOpen is returned by callers that fail fast because the breaker
// rejected the operation.
var ErrOpen = errors.New("breaker: circuit open")

// State identifies the breaker state.
type State int

const (
	// StateClosed allows all operations.
	StateClosed State = iota
	// StateOpen rejects operations until the reset timeout elapses.
	StateOpen
	// StateHalfOpen allows probing operations to test recovery.
	StateHalfOpen
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds breaker tuning parameters.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips
	// Closed→Open. Defaults to 5.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive successes that moves
	// HalfOpen→Closed. Defaults to 3.
	SuccessThreshold int
	// ResetTimeout is how long the breaker stays Open before the next
	// Allow call probes HalfOpen. Defaults to 30s.
	ResetTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 3
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	return c
}

// Breaker is a circuit breaker guarding one resource.
// Safe for concurrent use.
type Breaker struct {
	cfg       Config
	name      string
	collector *metrics.Collector

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	since     time.Time

	// now is swappable for tests.
	now func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithMetrics attaches a metrics collector; state transitions are counted
// under "breaker_<name>_<state>".
func WithMetrics(c *metrics.Collector) Option {
	return func(b *Breaker) { b.collector = c }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New creates a Breaker named for the resource it guards.
func New(name string, cfg Config, optFns ...Option) *Breaker {
	b := &Breaker{
		cfg:   cfg.withDefaults(),
		name:  name,
		state: StateClosed,
		now:   time.Now,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(b)
		}
	}
	return b
}

// Allow reports whether an operation may proceed.
//
// In the Open state, once the reset timeout has elapsed the breaker moves
// to HalfOpen lazily and this call returns true as the probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.since) >= b.cfg.ResetTimeout {
			b.transition(StateHalfOpen)
			b.successes = 0
			return true
		}
		return false
	case StateHalfOpen:
		return true
	}
	return false
}

// RecordSuccess notes a successful operation.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
			b.failures = 0
		}
	case StateOpen:
		// A success while open means the caller raced a transition;
		// treat it as a successful probe.
		b.transition(StateHalfOpen)
		b.successes = 1
	}
}

// RecordFailure notes a failed operation.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.open()
		}
	case StateHalfOpen:
		// Any half-open failure reopens immediately.
		b.open()
	case StateOpen:
		b.since = b.now()
	}
}

// Reset forces the breaker back to Closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.transition(StateClosed)
	b.failures = 0
	b.successes = 0
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// open must be called with b.mu held.
func (b *Breaker) open() {
	b.transition(StateOpen)
	b.since = b.now()
	b.failures = 0
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	b.state = to
	b.collector.Inc("breaker_" + b.name + "_" + to.String())
}
