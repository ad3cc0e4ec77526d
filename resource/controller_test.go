package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerMemory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.True(t, c.TryAcquireMemory(50))
	assert.Equal(t, int64(50), c.MemoryUsage())

	require.True(t, c.TryAcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	assert.False(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	assert.True(t, c.TryAcquireMemory(20))
}

func TestControllerMemoryUnlimitedTracksOnly(t *testing.T) {
	c := NewController(Config{})

	require.True(t, c.TryAcquireMemory(1<<40))
	assert.Equal(t, int64(1<<40), c.MemoryUsage())

	c.ReleaseMemory(1 << 40)
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestControllerMigrationSlots(t *testing.T) {
	c := NewController(Config{MaxConcurrentMigrations: 1})

	require.NoError(t, c.AcquireMigration(context.Background()))
	assert.False(t, c.TryAcquireMigration())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireMigration(ctx), context.DeadlineExceeded)

	c.ReleaseMigration()
	assert.True(t, c.TryAcquireMigration())
}

func TestControllerTransferThrottle(t *testing.T) {
	c := NewController(Config{TransferBytesPerSec: 1024})

	// The first burst fits the bucket; the second must wait for a refill.
	require.NoError(t, c.WaitTransfer(context.Background(), 1024))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.WaitTransfer(ctx, 1024))
}

func TestControllerTransferLargerThanBurst(t *testing.T) {
	c := NewController(Config{TransferBytesPerSec: 1 << 20})

	// A payload bigger than one second's budget drains in burst-sized
	// chunks instead of failing outright.
	require.NoError(t, c.WaitTransfer(context.Background(), 1<<20+1024))
}

func TestControllerNilIsNoop(t *testing.T) {
	var c *Controller

	assert.True(t, c.TryAcquireMemory(100))
	c.ReleaseMemory(100)
	assert.Equal(t, int64(0), c.MemoryUsage())

	require.NoError(t, c.AcquireMigration(context.Background()))
	assert.True(t, c.TryAcquireMigration())
	c.ReleaseMigration()

	require.NoError(t, c.WaitTransfer(context.Background(), 1<<20))
}
