package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapportlabs/rapport/internal/classifier"
	"github.com/rapportlabs/rapport/internal/loops"
	"github.com/rapportlabs/rapport/internal/relationship"
)

func newTestWorker(t *testing.T) (*Worker, *relationship.MemoryStore, *loops.MemoryStore) {
	t.Helper()
	relStore := relationship.NewMemoryStore()
	ledger := relationship.NewLedger(relStore, relationship.DefaultTierThresholds(), classifier.DefaultDeltaWeights(), nil)
	loopStore := loops.NewMemoryStore()
	tracker := loops.NewTracker(loopStore, loops.FuzzyMatcher{}, loops.DefaultMinSurfaceGap, nil)
	worker := NewWorker(NewMemoryQueue(8), ledger, tracker, nil, nil)
	return worker, relStore, loopStore
}

func appendEvents(t *testing.T, store *relationship.MemoryStore, subjectID string, types ...relationship.EventType) {
	t.Helper()
	ctx := context.Background()
	for i, eventType := range types {
		require.NoError(t, store.AppendEvent(ctx, relationship.Event{
			ID:        string(rune('a' + i)),
			SubjectID: subjectID,
			EventType: eventType,
			CreatedAt: time.Now(),
		}))
	}
}

func scanJob(t *testing.T, subjectID string) string {
	t.Helper()
	body, err := json.Marshal(sideJob{ID: "job-1", Kind: jobPatternScan, SubjectID: subjectID})
	require.NoError(t, err)
	return string(body)
}

func TestWorkerPatternScanNegativeRun(t *testing.T) {
	worker, relStore, loopStore := newTestWorker(t)
	ctx := context.Background()

	appendEvents(t, relStore, "subj",
		relationship.EventNegative, relationship.EventNegative,
		relationship.EventRupture, relationship.EventNegative,
		relationship.EventNeutral)

	require.NoError(t, worker.handle(ctx, scanJob(t, "subj")))

	open, err := loopStore.ListOpen(ctx, "subj")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, loops.TypePatternObservation, open[0].LoopType)
	assert.Equal(t, "a rough stretch lately", open[0].Topic)

	// A second scan merges instead of duplicating.
	require.NoError(t, worker.handle(ctx, scanJob(t, "subj")))
	open, err = loopStore.ListOpen(ctx, "subj")
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestWorkerPatternScanPositiveRun(t *testing.T) {
	worker, relStore, loopStore := newTestWorker(t)
	ctx := context.Background()

	appendEvents(t, relStore, "subj",
		relationship.EventPositive, relationship.EventPositive,
		relationship.EventMilestone, relationship.EventPositive,
		relationship.EventPositive)

	require.NoError(t, worker.handle(ctx, scanJob(t, "subj")))

	open, err := loopStore.ListOpen(ctx, "subj")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "a good run lately", open[0].Topic)
}

func TestWorkerPatternScanMixedHistoryIsQuiet(t *testing.T) {
	worker, relStore, loopStore := newTestWorker(t)
	ctx := context.Background()

	appendEvents(t, relStore, "subj",
		relationship.EventPositive, relationship.EventNegative,
		relationship.EventNeutral, relationship.EventPositive,
		relationship.EventNegative)

	require.NoError(t, worker.handle(ctx, scanJob(t, "subj")))

	open, err := loopStore.ListOpen(ctx, "subj")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestWorkerPatternScanNeedsFullWindow(t *testing.T) {
	worker, relStore, loopStore := newTestWorker(t)
	ctx := context.Background()

	appendEvents(t, relStore, "subj", relationship.EventNegative, relationship.EventNegative)

	require.NoError(t, worker.handle(ctx, scanJob(t, "subj")))

	open, err := loopStore.ListOpen(ctx, "subj")
	require.NoError(t, err)
	assert.Empty(t, open, "two events are not a pattern")
}

func TestWorkerRejectsMalformedJobs(t *testing.T) {
	worker, _, _ := newTestWorker(t)
	ctx := context.Background()

	assert.Error(t, worker.handle(ctx, "not json"))
	assert.Error(t, worker.handle(ctx, `{"id":"x","kind":"pattern_scan.v1"}`), "missing subject")
	assert.Error(t, worker.handle(ctx, `{"id":"x","kind":"mystery.v1","subjectId":"subj"}`))
}

func TestWorkerRunDrainsQueue(t *testing.T) {
	relStore := relationship.NewMemoryStore()
	ledger := relationship.NewLedger(relStore, relationship.DefaultTierThresholds(), classifier.DefaultDeltaWeights(), nil)
	loopStore := loops.NewMemoryStore()
	tracker := loops.NewTracker(loopStore, loops.FuzzyMatcher{}, loops.DefaultMinSurfaceGap, nil)
	queue := NewMemoryQueue(8)
	worker := NewWorker(queue, ledger, tracker, nil, nil)

	appendEvents(t, relStore, "subj",
		relationship.EventNegative, relationship.EventNegative,
		relationship.EventNegative, relationship.EventNegative,
		relationship.EventNegative)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, queue.Send(ctx, scanJob(t, "subj")))

	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		open, err := loopStore.ListOpen(context.Background(), "subj")
		return err == nil && len(open) == 1
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
