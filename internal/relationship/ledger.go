package relationship

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rapportlabs/rapport/internal/classifier"
	"github.com/rapportlabs/rapport/pkg/logging"
)

// Rupture triggers independent of the delta math.
const (
	ruptureIntensityFloor   = 7
	ruptureScoreChangeFloor = -10.0
	ruptureScoreDropFloor   = 15.0
)

// hostilePhrases is the fixed phrase list that always ruptures, whatever the
// classifier thought of the message.
var hostilePhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bi hate you\b`),
	regexp.MustCompile(`(?i)\bi never want to (talk|speak) to you\b`),
	regexp.MustCompile(`(?i)\byou('?re| are) (worthless|nothing|dead) to me\b`),
	regexp.MustCompile(`(?i)\bleave me alone forever\b`),
	regexp.MustCompile(`(?i)\bi('?m| am) done with you\b`),
	regexp.MustCompile(`(?i)\bgo (to hell|away and never come back)\b`),
}

// Ledger owns the relational scalars and the append-only event history.
type Ledger struct {
	store   Store
	cfg     TierThresholds
	weights classifier.DeltaWeights
	logger  *logging.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewLedger builds a Ledger over the given store.
func NewLedger(store Store, cfg TierThresholds, weights classifier.DeltaWeights, logger *logging.Logger) *Ledger {
	if store == nil {
		panic("relationship: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Ledger{
		store:   store,
		cfg:     cfg,
		weights: weights,
		logger:  logger,
		tracer:  otel.Tracer("rapport.internal.relationship"),
		now:     time.Now,
	}
}

// WithClock overrides the ledger clock, for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Apply classifies deltas for the event, applies them to the subject's
// state, persists it, and appends a history row. The history append is
// best-effort and never fails the scalar update. If the store read fails the
// update is abandoned: the caller gets no partial state.
func (l *Ledger) Apply(ctx context.Context, subjectID string, ev classifier.ClassifiedEvent, message string) (State, Event, error) {
	ctx, span := l.tracer.Start(ctx, "relationship.apply")
	defer span.End()

	state, err := l.store.GetOrCreate(ctx, subjectID, l.now())
	if err != nil {
		span.RecordError(err)
		return State{}, Event{}, fmt.Errorf("relationship: load state: %w", err)
	}

	deltas := classifier.ComputeDeltas(l.weights, ev, message)
	newState, event := ApplyEvent(state, ev, deltas, message, l.cfg, l.now())

	if err := l.store.Save(ctx, newState); err != nil {
		span.RecordError(err)
		return State{}, Event{}, fmt.Errorf("relationship: save state: %w", err)
	}

	span.SetAttributes(
		attribute.String("relationship.event_type", string(event.EventType)),
		attribute.Float64("relationship.new_score", newState.Score),
		attribute.String("relationship.tier", string(newState.Tier)),
	)

	// History is audit-only; log failures, never roll back.
	go func() {
		appendCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.store.AppendEvent(appendCtx, event); err != nil {
			l.logger.Warn("relationship event append failed",
				"subject_id", subjectID, "event_id", event.ID, "error", err)
		}
	}()

	return newState, event, nil
}

// Get returns the current state, or a zeroed record if none exists yet.
func (l *Ledger) Get(ctx context.Context, subjectID string) (State, error) {
	return l.store.GetOrCreate(ctx, subjectID, l.now())
}

// Reset is the explicit administrative wipe; states are never deleted
// implicitly.
func (l *Ledger) Reset(ctx context.Context, subjectID string) error {
	return l.store.Reset(ctx, subjectID, l.now())
}

// Repair clears the rupture flag out of band, for operator intervention when
// the conversational repair path is not available. No scalars move; a repair
// history row records who asked and why.
func (l *Ledger) Repair(ctx context.Context, subjectID, note string) (State, error) {
	ctx, span := l.tracer.Start(ctx, "relationship.repair")
	defer span.End()

	state, err := l.store.GetOrCreate(ctx, subjectID, l.now())
	if err != nil {
		span.RecordError(err)
		return State{}, fmt.Errorf("relationship: load state: %w", err)
	}
	if !state.IsRuptured {
		return state, nil
	}

	now := l.now()
	state.IsRuptured = false
	state.UpdatedAt = now
	if err := l.store.Save(ctx, state); err != nil {
		span.RecordError(err)
		return State{}, fmt.Errorf("relationship: save state: %w", err)
	}

	event := Event{
		ID:            uuid.NewString(),
		SubjectID:     subjectID,
		EventType:     EventRepair,
		Source:        "admin",
		PreviousScore: state.Score,
		NewScore:      state.Score,
		PreviousTier:  state.Tier,
		NewTier:       state.Tier,
		Notes:         note,
		CreatedAt:     now,
	}
	if err := l.store.AppendEvent(ctx, event); err != nil {
		l.logger.Warn("repair event append failed", "subject_id", subjectID, "error", err)
	}
	l.logger.Info("rupture cleared by operator", "subject_id", subjectID)
	return state, nil
}

// History returns the most recent history rows for audit surfaces.
func (l *Ledger) History(ctx context.Context, subjectID string, limit int) ([]Event, error) {
	return l.store.ListEvents(ctx, subjectID, limit)
}

// ApplyEvent is the pure state transition: clamp scalars, bump counters,
// re-derive stage and tier, run rupture detection, and produce the history
// row. Persistence is the caller's concern.
func ApplyEvent(state State, ev classifier.ClassifiedEvent, deltas classifier.Deltas, message string, cfg TierThresholds, now time.Time) (State, Event) {
	prev := state

	next := state
	next.Score = clamp(state.Score+deltas.Score, ScoreMin, ScoreMax)
	next.Warmth = clamp(state.Warmth+deltas.Warmth, AxisMin, AxisMax)
	next.Trust = clamp(state.Trust+deltas.Trust, AxisMin, AxisMax)
	next.Playfulness = clamp(state.Playfulness+deltas.Playfulness, AxisMin, AxisMax)
	next.Stability = clamp(state.Stability+deltas.Stability, AxisMin, AxisMax)

	next.TotalInteractions++
	switch ev.Sentiment {
	case classifier.SentimentPositive:
		next.PositiveInteractions++
	case classifier.SentimentNegative:
		next.NegativeInteractions++
	}

	if next.TotalInteractions == 1 {
		next.FirstInteractionAt = now
	}
	next.LastInteractionAt = now
	next.UpdatedAt = now

	next.FamiliarityStage = StageFor(next.TotalInteractions, next.FirstInteractionAt, now)

	eventType := eventTypeFor(ev)
	ruptured := DetectRupture(ev, prev.Score, next.Score, message)
	repaired := prev.IsRuptured && ev.Sentiment == classifier.SentimentPositive && classifier.IsApology(message)

	switch {
	case ruptured:
		eventType = EventRupture
		next.IsRuptured = true
		next.RuptureCount++
		t := now
		next.LastRuptureAt = &t
	case repaired:
		eventType = EventRepair
		next.IsRuptured = false
	}

	next.Tier = cfg.TierFor(next.Score)
	if eventType != EventRupture && eventType != EventRepair && next.Tier != prev.Tier && tierRank(next.Tier) > tierRank(prev.Tier) {
		eventType = EventMilestone
	}

	event := Event{
		ID:            uuid.NewString(),
		SubjectID:     state.SubjectID,
		EventType:     eventType,
		Source:        "conversation",
		Sentiment:     string(ev.Sentiment),
		Intensity:     ev.Intensity,
		Mood:          ev.Mood,
		Deltas:        deltas,
		PreviousScore: prev.Score,
		NewScore:      next.Score,
		PreviousTier:  prev.Tier,
		NewTier:       next.Tier,
		UserMessage:   message,
		Notes:         ev.Reasoning,
		CreatedAt:     now,
	}

	return next, event
}

// DetectRupture reports whether this event severs the relationship: a hard
// negative hit, a steep score drop, or a phrase from the hostile list. An
// explicit hostility signal from the classifier short-circuits to true.
func DetectRupture(ev classifier.ClassifiedEvent, previousScore, newScore float64, message string) bool {
	if ev.Hostile {
		return true
	}
	scoreChange := newScore - previousScore
	if ev.Sentiment == classifier.SentimentNegative &&
		ev.Intensity >= ruptureIntensityFloor &&
		scoreChange <= ruptureScoreChangeFloor {
		return true
	}
	if previousScore-newScore >= ruptureScoreDropFloor {
		return true
	}
	for _, p := range hostilePhrases {
		if p.MatchString(message) {
			return true
		}
	}
	return false
}

func eventTypeFor(ev classifier.ClassifiedEvent) EventType {
	switch ev.Sentiment {
	case classifier.SentimentPositive:
		return EventPositive
	case classifier.SentimentNegative:
		return EventNegative
	default:
		return EventNeutral
	}
}

func tierRank(t Tier) int {
	switch t {
	case TierAdversarial:
		return 0
	case TierNeutralNegative:
		return 1
	case TierAcquaintance:
		return 2
	case TierFriend:
		return 3
	case TierCloseFriend:
		return 4
	case TierDeeplyLoving:
		return 5
	default:
		return 2
	}
}
