package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/guardianmail/guardianmail/internal/core"
)

func newTestMemoryCache(t *testing.T) *MemoryCache {
	t.Helper()
	c := NewMemoryCache(zap.NewNop(), time.Hour)
	t.Cleanup(c.Stop)
	return c
}

func entry(emailID string, epoch int64, ttl time.Duration) *core.RiskEntry {
	return &core.RiskEntry{
		EmailID:       emailID,
		Epoch:         epoch,
		Level:         core.RiskHigh,
		Score:         0.9,
		Justification: "spoofed sender",
		AnalyzedAt:    time.Now(),
		ExpiresAt:     time.Now().Add(ttl),
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, entry("e1", 1, time.Hour)))

	got, err := c.Get(ctx, "e1", 1)
	require.NoError(t, err)
	assert.Equal(t, core.RiskHigh, got.Level)
	assert.Equal(t, 0.9, got.Score)

	// The returned entry is a copy; mutating it must not poison the cache.
	got.Level = core.RiskLow
	again, err := c.Get(ctx, "e1", 1)
	require.NoError(t, err)
	assert.Equal(t, core.RiskHigh, again.Level)
}

func TestMemoryCacheEpochMismatch(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, entry("e1", 1, time.Hour)))

	_, err := c.Get(ctx, "e1", 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, entry("e1", 1, -time.Minute)))

	_, err := c.Get(ctx, "e1", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCacheInvalidate(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, entry("e1", 1, time.Hour)))
	require.NoError(t, c.Set(ctx, entry("e2", 1, time.Hour)))

	require.NoError(t, c.Invalidate(ctx, "e1"))
	_, err := c.Get(ctx, "e1", 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Get(ctx, "e2", 1)
	assert.NoError(t, err)

	require.NoError(t, c.InvalidateAll(ctx))
	_, err = c.Get(ctx, "e2", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCacheCleanup(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, entry("expired", 1, -time.Minute)))
	require.NoError(t, c.Set(ctx, entry("fresh", 1, time.Hour)))

	require.NoError(t, c.Cleanup(ctx))

	c.mu.RLock()
	_, expiredKept := c.entries["expired"]
	_, freshKept := c.entries["fresh"]
	c.mu.RUnlock()
	assert.False(t, expiredKept)
	assert.True(t, freshKept)
}
