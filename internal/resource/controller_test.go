package resource

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Workers(t *testing.T) {
	c := NewController(Config{MaxDecodeWorkers: 2})

	require.NoError(t, c.AcquireWorker(t.Context()))
	require.NoError(t, c.AcquireWorker(t.Context()))
	assert.Equal(t, int64(2), c.InFlight())

	assert.False(t, c.TryAcquireWorker())

	c.ReleaseWorker()
	assert.True(t, c.TryAcquireWorker())
	assert.Equal(t, int64(2), c.InFlight())
}

func TestController_AcquireWorkerCanceled(t *testing.T) {
	c := NewController(Config{MaxDecodeWorkers: 1})
	require.NoError(t, c.AcquireWorker(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireWorker(ctx), context.DeadlineExceeded)
	assert.Equal(t, int64(1), c.InFlight())
}

func TestController_UnboundedWorkersHonorCancel(t *testing.T) {
	c := NewController(Config{})
	for range 100 {
		require.True(t, c.TryAcquireWorker())
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.ErrorIs(t, c.AcquireWorker(ctx), context.Canceled)
}

func TestController_Memory(t *testing.T) {
	c := NewController(Config{DecodeMemoryBytes: 100})

	got, err := c.AcquireMemory(t.Context(), 60)
	require.NoError(t, err)
	assert.Equal(t, int64(60), got)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = c.AcquireMemory(ctx, 50)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(60), c.MemoryUsage())

	c.ReleaseMemory(got)
	assert.Equal(t, int64(0), c.MemoryUsage())

	// Oversized requests are clamped to the whole budget.
	got, err = c.AcquireMemory(t.Context(), 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got)
	c.ReleaseMemory(got)
}

func TestController_UnlimitedMemoryTracksUsage(t *testing.T) {
	c := NewController(Config{})
	got, err := c.AcquireMemory(t.Context(), 1<<30)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<30), got)
	assert.Equal(t, int64(1<<30), c.MemoryUsage())
	c.ReleaseMemory(got)
	assert.Zero(t, c.MemoryUsage())
}

func TestController_NilSafe(t *testing.T) {
	var c *Controller
	require.NoError(t, c.AcquireWorker(t.Context()))
	assert.True(t, c.TryAcquireWorker())
	c.ReleaseWorker()
	got, err := c.AcquireMemory(t.Context(), 10)
	require.NoError(t, err)
	assert.Zero(t, got)
	c.ReleaseMemory(10)
	require.NoError(t, c.AcquireIO(t.Context(), 1<<20))
	assert.True(t, c.TryAcquireIO(1))
	assert.Zero(t, c.InFlight())
}

func TestController_IOLimit(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1000})

	// The bucket starts full.
	assert.True(t, c.TryAcquireIO(1000))
	assert.False(t, c.TryAcquireIO(1000))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireIO(ctx, 1000))
}

func TestRateLimitedReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	data := bytes.Repeat([]byte("x"), 4096)

	r := NewRateLimitedReader(t.Context(), bytes.NewReader(data), c)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}
