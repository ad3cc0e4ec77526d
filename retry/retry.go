// Package retry implements exponential backoff with full jitter for
// transient failures.
//
// Retries must only wrap idempotent operations (batch transfer, node RPC);
// non-idempotent writes go through at most once.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Strategy produces jittered, exponentially growing delays.
// A Strategy is single-use per operation sequence; call Reset to reuse.
// Not safe for concurrent use.
type Strategy struct {
	// Base is the first delay ceiling. Defaults to 100ms.
	Base time.Duration
	// Cap bounds the delay ceiling. Defaults to 10s.
	Cap time.Duration
	// MaxAttempts bounds the number of delays produced. Defaults to 3.
	MaxAttempts int

	attempts int
}

// Default returns the default strategy.
func Default() *Strategy {
	return &Strategy{}
}

// NextDelay returns the next backoff delay.
// The second return is false once MaxAttempts is exhausted.
func (s *Strategy) NextDelay() (time.Duration, bool) {
	base, cap, max := s.Base, s.Cap, s.MaxAttempts
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if cap <= 0 {
		cap = 10 * time.Second
	}
	if max <= 0 {
		max = 3
	}

	if s.attempts >= max {
		return 0, false
	}

	ceiling := base << s.attempts
	if ceiling > cap || ceiling <= 0 {
		ceiling = cap
	}
	s.attempts++

	// Full jitter: uniform in [0, ceiling].
	return time.Duration(rand.Int64N(int64(ceiling) + 1)), true
}

// Attempts returns the number of delays produced so far.
func (s *Strategy) Attempts() int { return s.attempts }

// Reset rewinds the strategy for reuse.
func (s *Strategy) Reset() { s.attempts = 0 }

// Do runs fn, retrying with s while retryable classifies the error as
// transient. The last error is returned once attempts are exhausted, the
// error is permanent, or ctx ends.
func Do(ctx context.Context, s *Strategy, retryable func(error) bool, fn func(ctx context.Context) error) error {
	if s == nil {
		s = Default()
	}

	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}

		delay, ok := s.NextDelay()
		if !ok {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
