package relationship

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapportlabs/rapport/internal/classifier"
)

func TestPostgresStore_GetOrCreateMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM relationships").
		WithArgs("subj-1").
		WillReturnRows(sqlmock.NewRows(nil))

	state, err := store.GetOrCreate(context.Background(), "subj-1", now)
	require.NoError(t, err)
	assert.Equal(t, "subj-1", state.SubjectID)
	assert.Equal(t, TierAcquaintance, state.Tier)
	assert.Equal(t, 0, state.TotalInteractions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetOrCreateExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	now := time.Now()
	rupturedAt := now.Add(-48 * time.Hour)

	rows := sqlmock.NewRows([]string{
		"subject_id", "score", "warmth", "trust", "playfulness", "stability",
		"tier", "familiarity_stage", "total_interactions", "positive_interactions",
		"negative_interactions", "first_interaction_at", "last_interaction_at",
		"is_ruptured", "last_rupture_at", "rupture_count", "updated_at",
	}).AddRow(
		"subj-1", 22.5, 8.0, 4.5, 2.0, 3.0,
		TierFriend, StageDeveloping, 30, 24,
		6, now.Add(-30*24*time.Hour), now.Add(-time.Hour),
		true, rupturedAt, 2, now.Add(-time.Hour),
	)

	mock.ExpectQuery("SELECT (.+) FROM relationships").
		WithArgs("subj-1").
		WillReturnRows(rows)

	state, err := store.GetOrCreate(context.Background(), "subj-1", now)
	require.NoError(t, err)
	assert.Equal(t, 22.5, state.Score)
	assert.Equal(t, TierFriend, state.Tier)
	assert.True(t, state.IsRuptured)
	require.NotNil(t, state.LastRuptureAt)
	assert.Equal(t, rupturedAt, *state.LastRuptureAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	state := NewState("subj-1", time.Now())
	state.Score = 12.3
	state.Tier = TierFriend
	state.TotalInteractions = 14

	mock.ExpectExec("INSERT INTO relationships").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), state))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendAndListEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	now := time.Now()

	event := Event{
		ID:            uuid.NewString(),
		SubjectID:     "subj-1",
		EventType:     EventPositive,
		Source:        "conversation",
		Sentiment:     string(classifier.SentimentPositive),
		Intensity:     7,
		Deltas:        classifier.Deltas{Score: 0.8, Warmth: 0.3},
		PreviousScore: 4.0,
		NewScore:      4.8,
		PreviousTier:  TierAcquaintance,
		NewTier:       TierAcquaintance,
		CreatedAt:     now,
	}

	mock.ExpectExec("INSERT INTO relationship_events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.AppendEvent(context.Background(), event))

	rows := sqlmock.NewRows([]string{
		"id", "subject_id", "event_type", "source", "sentiment", "intensity", "mood",
		"score_delta", "warmth_delta", "trust_delta", "playfulness_delta", "stability_delta",
		"previous_score", "new_score", "previous_tier", "new_tier", "user_message", "notes", "created_at",
	}).AddRow(
		event.ID, "subj-1", EventPositive, "conversation", "positive", 7, "",
		0.8, 0.3, 0.0, 0.0, 0.0,
		4.0, 4.8, TierAcquaintance, TierAcquaintance, "", "", now,
	)
	mock.ExpectQuery("SELECT (.+) FROM relationship_events").
		WithArgs("subj-1", 10).
		WillReturnRows(rows)

	events, err := store.ListEvents(context.Background(), "subj-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventPositive, events[0].EventType)
	assert.Equal(t, 0.8, events[0].Deltas.Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Reset(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectExec("DELETE FROM relationships").
		WithArgs("subj-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Reset(context.Background(), "subj-1", time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	state, err := store.GetOrCreate(ctx, "subj", now)
	require.NoError(t, err)
	state.Score = 5
	state.TotalInteractions = 3
	require.NoError(t, store.Save(ctx, state))

	got, err := store.GetOrCreate(ctx, "subj", now)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.Score)
	assert.Equal(t, 3, got.TotalInteractions)

	require.NoError(t, store.Reset(ctx, "subj", now))
	got, err = store.GetOrCreate(ctx, "subj", now)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Score)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendEvent(ctx, Event{ID: uuid.NewString(), SubjectID: "subj"}))
	}
	events, err := store.ListEvents(ctx, "subj", 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}
