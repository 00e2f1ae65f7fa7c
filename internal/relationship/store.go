package relationship

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// Store persists relationship state and the event history.
type Store interface {
	GetOrCreate(ctx context.Context, subjectID string, now time.Time) (State, error)
	Save(ctx context.Context, state State) error
	Reset(ctx context.Context, subjectID string, now time.Time) error
	AppendEvent(ctx context.Context, event Event) error
	ListEvents(ctx context.Context, subjectID string, limit int) ([]Event, error)
}

// PostgresStore persists state in the relationships table and history in
// relationship_events.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	if db == nil {
		panic("relationship: db cannot be nil")
	}
	return &PostgresStore{db: db}
}

const stateColumns = `subject_id, score, warmth, trust, playfulness, stability,
	tier, familiarity_stage, total_interactions, positive_interactions,
	negative_interactions, first_interaction_at, last_interaction_at,
	is_ruptured, last_rupture_at, rupture_count, updated_at`

func (s *PostgresStore) GetOrCreate(ctx context.Context, subjectID string, now time.Time) (State, error) {
	var st State
	var lastRupture sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT `+stateColumns+`
		FROM relationships WHERE subject_id = $1`, subjectID).Scan(
		&st.SubjectID, &st.Score, &st.Warmth, &st.Trust, &st.Playfulness, &st.Stability,
		&st.Tier, &st.FamiliarityStage, &st.TotalInteractions, &st.PositiveInteractions,
		&st.NegativeInteractions, &st.FirstInteractionAt, &st.LastInteractionAt,
		&st.IsRuptured, &lastRupture, &st.RuptureCount, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return NewState(subjectID, now), nil
	}
	if err != nil {
		return State{}, err
	}
	if lastRupture.Valid {
		t := lastRupture.Time
		st.LastRuptureAt = &t
	}
	return st, nil
}

func (s *PostgresStore) Save(ctx context.Context, st State) error {
	var lastRupture sql.NullTime
	if st.LastRuptureAt != nil {
		lastRupture = sql.NullTime{Time: *st.LastRuptureAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relationships (`+stateColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (subject_id) DO UPDATE SET
		    score=EXCLUDED.score, warmth=EXCLUDED.warmth, trust=EXCLUDED.trust,
		    playfulness=EXCLUDED.playfulness, stability=EXCLUDED.stability,
		    tier=EXCLUDED.tier, familiarity_stage=EXCLUDED.familiarity_stage,
		    total_interactions=EXCLUDED.total_interactions,
		    positive_interactions=EXCLUDED.positive_interactions,
		    negative_interactions=EXCLUDED.negative_interactions,
		    first_interaction_at=EXCLUDED.first_interaction_at,
		    last_interaction_at=EXCLUDED.last_interaction_at,
		    is_ruptured=EXCLUDED.is_ruptured, last_rupture_at=EXCLUDED.last_rupture_at,
		    rupture_count=EXCLUDED.rupture_count, updated_at=EXCLUDED.updated_at`,
		st.SubjectID, st.Score, st.Warmth, st.Trust, st.Playfulness, st.Stability,
		st.Tier, st.FamiliarityStage, st.TotalInteractions, st.PositiveInteractions,
		st.NegativeInteractions, st.FirstInteractionAt, st.LastInteractionAt,
		st.IsRuptured, lastRupture, st.RuptureCount, st.UpdatedAt)
	return err
}

func (s *PostgresStore) Reset(ctx context.Context, subjectID string, now time.Time) error {
	// History rows stay: resets are themselves part of the audit trail.
	_, err := s.db.ExecContext(ctx, `DELETE FROM relationships WHERE subject_id = $1`, subjectID)
	return err
}

func (s *PostgresStore) AppendEvent(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relationship_events (id, subject_id, event_type, source, sentiment,
		    intensity, mood, score_delta, warmth_delta, trust_delta, playfulness_delta,
		    stability_delta, previous_score, new_score, previous_tier, new_tier,
		    user_message, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		e.ID, e.SubjectID, e.EventType, e.Source, e.Sentiment,
		e.Intensity, e.Mood, e.Deltas.Score, e.Deltas.Warmth, e.Deltas.Trust,
		e.Deltas.Playfulness, e.Deltas.Stability, e.PreviousScore, e.NewScore,
		e.PreviousTier, e.NewTier, e.UserMessage, e.Notes, e.CreatedAt)
	return err
}

func (s *PostgresStore) ListEvents(ctx context.Context, subjectID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, event_type, source, sentiment, intensity, mood,
		       score_delta, warmth_delta, trust_delta, playfulness_delta, stability_delta,
		       previous_score, new_score, previous_tier, new_tier, user_message, notes, created_at
		FROM relationship_events WHERE subject_id = $1
		ORDER BY created_at DESC LIMIT $2`, subjectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.EventType, &e.Source, &e.Sentiment,
			&e.Intensity, &e.Mood, &e.Deltas.Score, &e.Deltas.Warmth, &e.Deltas.Trust,
			&e.Deltas.Playfulness, &e.Deltas.Stability, &e.PreviousScore, &e.NewScore,
			&e.PreviousTier, &e.NewTier, &e.UserMessage, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if out == nil {
		out = []Event{}
	}
	return out, rows.Err()
}

// MemoryStore is the in-process Store used in development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
	events map[string][]Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]State),
		events: make(map[string][]Event),
	}
}

func (s *MemoryStore) GetOrCreate(_ context.Context, subjectID string, now time.Time) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.states[subjectID]; ok {
		return st, nil
	}
	return NewState(subjectID, now), nil
}

func (s *MemoryStore) Save(_ context.Context, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.SubjectID] = st
	return nil
}

func (s *MemoryStore) Reset(_ context.Context, subjectID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, subjectID)
	return nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.SubjectID] = append(s.events[e.SubjectID], e)
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, subjectID string, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.events[subjectID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]Event, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
