package loops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trackerNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestTracker(t *testing.T) (*Tracker, *MemoryStore, *time.Time) {
	t.Helper()
	store := NewMemoryStore()
	now := trackerNow
	tracker := NewTracker(store, FuzzyMatcher{}, DefaultMinSurfaceGap, nil).
		WithClock(func() time.Time { return now })
	return tracker, store, &now
}

func TestCreateAppliesPolicyWindows(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	tests := []struct {
		loopType     LoopType
		surfaceDelay time.Duration
		expiry       time.Duration
		maxSurfaces  int
	}{
		{TypePendingEvent, 0, 7 * 24 * time.Hour, 2},
		{TypeEmotionalFollowup, 24 * time.Hour, 5 * 24 * time.Hour, 3},
		{TypeCommitmentCheck, 48 * time.Hour, 14 * 24 * time.Hour, 3},
		{TypeCuriosityThread, 4 * time.Hour, 3 * 24 * time.Hour, 3},
		{TypePatternObservation, 72 * time.Hour, 30 * 24 * time.Hour, 3},
	}
	for i, tt := range tests {
		loop, created, err := tracker.Create(ctx, "subj", tt.loopType, "topic "+string(tt.loopType)+string(rune('a'+i)), CreateOptions{})
		require.NoError(t, err)
		require.True(t, created)
		assert.Equal(t, StatusActive, loop.Status)
		assert.Equal(t, trackerNow.Add(tt.surfaceDelay), loop.ShouldSurfaceAfter, "%s surface delay", tt.loopType)
		assert.Equal(t, trackerNow.Add(tt.expiry), loop.ExpiresAt, "%s expiry", tt.loopType)
		assert.Equal(t, tt.maxSurfaces, loop.MaxSurfaces, "%s max surfaces", tt.loopType)
		assert.Equal(t, defaultSalience, loop.Salience)
	}
}

func TestCreateMergesFuzzyDuplicates(t *testing.T) {
	tracker, store, _ := newTestTracker(t)
	ctx := context.Background()

	first, created, err := tracker.Create(ctx, "subj", TypePendingEvent, "Holiday Parties", CreateOptions{Salience: 0.5})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := tracker.Create(ctx, "subj", TypePendingEvent, "holiday party", CreateOptions{
		Salience:       0.8,
		TriggerContext: "mentioned the party again",
	})
	require.NoError(t, err)
	assert.False(t, created, "equivalent topic must merge, not duplicate")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 0.8, second.Salience, "merge raises salience when the new mention is stronger")
	assert.Equal(t, "mentioned the party again", second.TriggerContext)

	// Lower-salience re-mention does not lower it back.
	third, created, err := tracker.Create(ctx, "subj", TypePendingEvent, "holiday parties", CreateOptions{Salience: 0.2})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 0.8, third.Salience)

	open, err := store.ListOpen(ctx, "subj")
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestCreateMergesByCalendarEventID(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	start := trackerNow.Add(48 * time.Hour)
	_, created, err := tracker.Create(ctx, "subj", TypePendingEvent, "Dentist", CreateOptions{
		EventDateTime: &start, SourceCalendarEventID: "cal-1",
	})
	require.NoError(t, err)
	require.True(t, created)

	// Retitled calendar entry, same source id: still the same loop.
	_, created, err = tracker.Create(ctx, "subj", TypePendingEvent, "Dr. Chen appointment", CreateOptions{
		EventDateTime: &start, SourceCalendarEventID: "cal-1",
	})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestBoostSalienceDiminishes(t *testing.T) {
	tracker, store, _ := newTestTracker(t)
	ctx := context.Background()

	loop, _, err := tracker.Create(ctx, "subj", TypeCuriosityThread, "pottery class", CreateOptions{Salience: 0.4})
	require.NoError(t, err)

	require.NoError(t, tracker.BoostSalience(ctx, "subj", "pottery classes", 1))
	got, err := store.Get(ctx, "subj", loop.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.Salience, 1e-9)

	// Two mentions at once: 0.1 + 0.05.
	require.NoError(t, tracker.BoostSalience(ctx, "subj", "pottery class", 2))
	got, err = store.Get(ctx, "subj", loop.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.65, got.Salience, 1e-9)

	// Capped at 1.0.
	require.NoError(t, tracker.BoostSalience(ctx, "subj", "pottery class", 50))
	got, err = store.Get(ctx, "subj", loop.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Salience)
}

func TestEligibleToSurfaceGates(t *testing.T) {
	tracker, _, now := newTestTracker(t)
	ctx := context.Background()

	// Curiosity threads wait four hours.
	loop, _, err := tracker.Create(ctx, "subj", TypeCuriosityThread, "pottery class", CreateOptions{})
	require.NoError(t, err)

	eligible, err := tracker.EligibleToSurface(ctx, "subj")
	require.NoError(t, err)
	assert.Empty(t, eligible, "not eligible before the surface delay")

	*now = trackerNow.Add(5 * time.Hour)
	eligible, err = tracker.EligibleToSurface(ctx, "subj")
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, loop.ID, eligible[0].ID)

	// Surfacing starts the min-gap clock.
	_, err = tracker.MarkSurfaced(ctx, "subj", loop.ID)
	require.NoError(t, err)
	eligible, err = tracker.EligibleToSurface(ctx, "subj")
	require.NoError(t, err)
	assert.Empty(t, eligible, "within min surface gap")

	*now = now.Add(DefaultMinSurfaceGap + time.Minute)
	eligible, err = tracker.EligibleToSurface(ctx, "subj")
	require.NoError(t, err)
	assert.Len(t, eligible, 1, "eligible again after the gap")
}

func TestEligibleToSurfacePendingEventWaitsForEvent(t *testing.T) {
	tracker, _, now := newTestTracker(t)
	ctx := context.Background()

	eventAt := trackerNow.Add(24 * time.Hour)
	_, _, err := tracker.Create(ctx, "subj", TypePendingEvent, "job interview", CreateOptions{EventDateTime: &eventAt})
	require.NoError(t, err)

	// Surfaces immediately by policy, but the event is still in the future.
	eligible, err := tracker.EligibleToSurface(ctx, "subj")
	require.NoError(t, err)
	assert.Empty(t, eligible, "never ask how it went before it happened")

	// Just after the event is still inside the grace period.
	*now = eventAt.Add(10 * time.Minute)
	eligible, err = tracker.EligibleToSurface(ctx, "subj")
	require.NoError(t, err)
	assert.Empty(t, eligible)

	*now = eventAt.Add(31 * time.Minute)
	eligible, err = tracker.EligibleToSurface(ctx, "subj")
	require.NoError(t, err)
	assert.Len(t, eligible, 1)
}

func TestEligibleToSurfaceOrderAndCap(t *testing.T) {
	tracker, _, now := newTestTracker(t)
	ctx := context.Background()

	topics := []struct {
		topic    string
		salience float64
	}{
		{"guitar practice", 0.3},
		{"mom's surgery", 0.9},
		{"new apartment", 0.6},
		{"sourdough starter", 0.5},
	}
	for _, tt := range topics {
		_, _, err := tracker.Create(ctx, "subj", TypeCuriosityThread, tt.topic, CreateOptions{Salience: tt.salience})
		require.NoError(t, err)
	}

	*now = trackerNow.Add(5 * time.Hour)
	eligible, err := tracker.EligibleToSurface(ctx, "subj")
	require.NoError(t, err)
	require.Len(t, eligible, 3, "result set capped at three")
	assert.Equal(t, "mom's surgery", eligible[0].Topic, "highest salience first")
	assert.Equal(t, "new apartment", eligible[1].Topic)
}

func TestMarkSurfacedLifecycle(t *testing.T) {
	tracker, _, now := newTestTracker(t)
	ctx := context.Background()

	loop, _, err := tracker.Create(ctx, "subj", TypePendingEvent, "holiday party", CreateOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, loop.MaxSurfaces)

	got, err := tracker.MarkSurfaced(ctx, "subj", loop.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSurfaced, got.Status)
	assert.Equal(t, 1, got.SurfaceCount)
	require.NotNil(t, got.LastSurfacedAt)

	*now = now.Add(DefaultMinSurfaceGap + time.Minute)
	got, err = tracker.MarkSurfaced(ctx, "subj", loop.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status, "hitting the cap terminates the loop")
	assert.Equal(t, 2, got.SurfaceCount)

	// Terminal loops are inert.
	got, err = tracker.MarkSurfaced(ctx, "subj", loop.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SurfaceCount)
}

func TestResolveAndDismissByTopic(t *testing.T) {
	tracker, store, _ := newTestTracker(t)
	ctx := context.Background()

	a, _, err := tracker.Create(ctx, "subj", TypeCuriosityThread, "pottery class", CreateOptions{})
	require.NoError(t, err)
	b, _, err := tracker.Create(ctx, "subj", TypeCommitmentCheck, "call grandma", CreateOptions{})
	require.NoError(t, err)

	n, err := tracker.ResolveByTopic(ctx, "subj", "the pottery class I mentioned")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err := store.Get(ctx, "subj", a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, got.Status)

	n, err = tracker.DismissByTopic(ctx, "subj", "calling grandma")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err = store.Get(ctx, "subj", b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDismissed, got.Status)
}

func TestCloseByID(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	loop, _, err := tracker.Create(ctx, "subj", TypeEmotionalFollowup, "work stress", CreateOptions{})
	require.NoError(t, err)

	got, err := tracker.Close(ctx, "subj", loop.ID, StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, got.Status)

	_, err = tracker.Close(ctx, "subj", loop.ID, StatusActive)
	assert.Error(t, err, "active is not a closing status")

	_, err = tracker.Close(ctx, "subj", "missing", StatusResolved)
	assert.ErrorIs(t, err, ErrLoopNotFound)
}

func TestSweepExpiredIdempotent(t *testing.T) {
	tracker, store, now := newTestTracker(t)
	ctx := context.Background()

	loop, _, err := tracker.Create(ctx, "subj", TypeCuriosityThread, "pottery class", CreateOptions{})
	require.NoError(t, err)

	*now = trackerNow.Add(4 * 24 * time.Hour) // past the 3-day expiry

	require.NoError(t, tracker.SweepExpired(ctx, "subj"))
	got, err := store.Get(ctx, "subj", loop.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)

	// Running again changes nothing.
	require.NoError(t, tracker.SweepExpired(ctx, "subj"))
	got2, err := store.Get(ctx, "subj", loop.ID)
	require.NoError(t, err)
	assert.Equal(t, got.UpdatedAt, got2.UpdatedAt)
}
