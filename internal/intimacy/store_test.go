package intimacy

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, time.Hour), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Missing key yields a neutral window, not an error.
	state, err := store.Get(ctx, "subj", now)
	require.NoError(t, err)
	assert.Equal(t, 0.5, state.RecentQuality)

	vulnAt := now.Add(-5 * time.Minute)
	state.LowEffortStreak = 3
	state.RecentToneModifier = -0.2
	state.VulnerabilityExchangeActive = true
	state.LastVulnerabilityAt = &vulnAt
	state.UpdatedAt = now
	require.NoError(t, store.Save(ctx, state))

	got, err := store.Get(ctx, "subj", now)
	require.NoError(t, err)
	assert.Equal(t, 3, got.LowEffortStreak)
	assert.Equal(t, -0.2, got.RecentToneModifier)
	require.NotNil(t, got.LastVulnerabilityAt)
	assert.True(t, got.LastVulnerabilityAt.Equal(vulnAt))
}

func TestRedisStoreTTL(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	state := NewState("subj", now)
	require.NoError(t, store.Save(ctx, state))

	mr.FastForward(2 * time.Hour)

	got, err := store.Get(ctx, "subj", now)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.RecentQuality, "expired window starts over neutral")
	assert.Equal(t, 0, got.LowEffortStreak)
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	state := NewState("subj", now)
	state.LowEffortStreak = 5
	require.NoError(t, store.Save(ctx, state))
	require.NoError(t, store.Delete(ctx, "subj"))

	got, err := store.Get(ctx, "subj", now)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LowEffortStreak)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	state, err := store.Get(ctx, "subj", now)
	require.NoError(t, err)
	state.LowEffortStreak = 2
	require.NoError(t, store.Save(ctx, state))

	got, err := store.Get(ctx, "subj", now)
	require.NoError(t, err)
	assert.Equal(t, 2, got.LowEffortStreak)

	require.NoError(t, store.Delete(ctx, "subj"))
	got, err = store.Get(ctx, "subj", now)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LowEffortStreak)
}
