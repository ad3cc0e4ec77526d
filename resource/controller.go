// Package resource provides a process-wide controller for the resources
// that background rebalancing competes over with foreground traffic:
// vector buffer memory, concurrent migrations, and transfer throughput.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes caps the managed vector buffer memory.
	// If 0, usage is tracked but not limited.
	MemoryLimitBytes int64

	// MaxConcurrentMigrations bounds migrations in flight.
	// If 0, defaults to 2.
	MaxConcurrentMigrations int64

	// TransferBytesPerSec throttles batch transfer throughput.
	// If 0, transfers are unthrottled.
	TransferBytesPerSec int64
}

// Controller arbitrates memory, migration slots, and transfer bandwidth.
// A nil *Controller is valid and enforces nothing.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	migSem *semaphore.Weighted

	transfer *rate.Limiter
}

// NewController creates a Controller from cfg.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentMigrations <= 0 {
		cfg.MaxConcurrentMigrations = 2
	}

	c := &Controller{
		cfg:    cfg,
		migSem: semaphore.NewWeighted(cfg.MaxConcurrentMigrations),
	}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.TransferBytesPerSec > 0 {
		c.transfer = rate.NewLimiter(rate.Limit(cfg.TransferBytesPerSec), int(cfg.TransferBytesPerSec))
	}
	return c
}

// TryAcquireMemory reserves buffer memory without blocking.
// Returns false if the configured limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory returns previously reserved buffer memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage reports the reserved buffer memory in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireMigration blocks until a migration slot is free or ctx ends.
func (c *Controller) AcquireMigration(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.migSem.Acquire(ctx, 1)
}

// TryAcquireMigration reserves a migration slot without blocking.
func (c *Controller) TryAcquireMigration() bool {
	if c == nil {
		return true
	}
	return c.migSem.TryAcquire(1)
}

// ReleaseMigration frees a migration slot.
func (c *Controller) ReleaseMigration() {
	if c == nil {
		return
	}
	c.migSem.Release(1)
}

// WaitTransfer blocks until the transfer budget allows bytes, or ctx ends.
// Payloads larger than the bucket are waited for in burst-sized chunks so
// they drain over time instead of failing outright.
func (c *Controller) WaitTransfer(ctx context.Context, bytes int) error {
	if c == nil || c.transfer == nil || bytes <= 0 {
		return nil
	}

	burst := c.transfer.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.transfer.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
