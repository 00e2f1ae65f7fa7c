package loops

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rapportlabs/rapport/pkg/logging"
)

const (
	// Never re-ask about anything within this window, whatever the loop.
	DefaultMinSurfaceGap = 4 * time.Hour

	// Grace period after a scheduled event before "how did it go" is fair.
	eventGracePeriod = 30 * time.Minute

	defaultSalience = 0.5
	maxSurfaceBatch = 3
)

// CreateOptions carries the optional fields of a new loop.
type CreateOptions struct {
	TriggerContext        string
	SuggestedFollowup     string
	Salience              float64
	EventDateTime         *time.Time
	SourceCalendarEventID string
	SourceMessageID       string
}

// Tracker owns loop creation, dedup, salience, surfacing eligibility, and
// lifecycle transitions.
type Tracker struct {
	store         Store
	matcher       TopicMatcher
	minSurfaceGap time.Duration
	logger        *logging.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewTracker builds a Tracker over the given store.
func NewTracker(store Store, matcher TopicMatcher, minSurfaceGap time.Duration, logger *logging.Logger) *Tracker {
	if store == nil {
		panic("loops: store cannot be nil")
	}
	if matcher == nil {
		matcher = FuzzyMatcher{}
	}
	if minSurfaceGap <= 0 {
		minSurfaceGap = DefaultMinSurfaceGap
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Tracker{
		store:         store,
		matcher:       matcher,
		minSurfaceGap: minSurfaceGap,
		logger:        logger,
		tracer:        otel.Tracer("rapport.internal.loops"),
		now:           time.Now,
	}
}

// WithClock overrides the tracker clock, for tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Create opens a loop for the topic, or merges into an existing non-terminal
// loop whose topic is fuzzy-equivalent. The bool reports whether a new loop
// was created.
func (t *Tracker) Create(ctx context.Context, subjectID string, loopType LoopType, topic string, opts CreateOptions) (Loop, bool, error) {
	ctx, span := t.tracer.Start(ctx, "loops.create")
	defer span.End()
	span.SetAttributes(attribute.String("loop.type", string(loopType)))

	open, err := t.store.ListOpen(ctx, subjectID)
	if err != nil {
		span.RecordError(err)
		return Loop{}, false, fmt.Errorf("loops: list for dedup: %w", err)
	}

	now := t.now()
	salience := opts.Salience
	if salience <= 0 {
		salience = defaultSalience
	}
	salience = math.Min(salience, 1.0)

	for _, existing := range open {
		same := t.matcher.Equivalent(existing.Topic, topic)
		if !same && opts.SourceCalendarEventID != "" {
			same = existing.SourceCalendarEventID == opts.SourceCalendarEventID
		}
		if !same {
			continue
		}
		if salience > existing.Salience {
			existing.Salience = salience
		}
		if opts.TriggerContext != "" {
			existing.TriggerContext = opts.TriggerContext
		}
		existing.UpdatedAt = now
		if err := t.store.Put(ctx, existing); err != nil {
			span.RecordError(err)
			return Loop{}, false, fmt.Errorf("loops: merge into %s: %w", existing.ID, err)
		}
		return existing, false, nil
	}

	policy := policyFor(loopType)
	loop := Loop{
		ID:                    uuid.NewString(),
		SubjectID:             subjectID,
		LoopType:              loopType,
		Topic:                 topic,
		TriggerContext:        opts.TriggerContext,
		SuggestedFollowup:     opts.SuggestedFollowup,
		Status:                StatusActive,
		Salience:              salience,
		MaxSurfaces:           policy.maxSurfaces,
		CreatedAt:             now,
		ShouldSurfaceAfter:    now.Add(policy.surfaceDelay),
		ExpiresAt:             now.Add(policy.expiry),
		EventDateTime:         opts.EventDateTime,
		SourceCalendarEventID: opts.SourceCalendarEventID,
		SourceMessageID:       opts.SourceMessageID,
		UpdatedAt:             now,
	}
	if err := t.store.Put(ctx, loop); err != nil {
		span.RecordError(err)
		return Loop{}, false, fmt.Errorf("loops: create loop: %w", err)
	}
	return loop, true, nil
}

// BoostSalience raises every fuzzy-matching open loop by a diminishing sum:
// the first mention is worth 0.1, each further mention half the previous.
func (t *Tracker) BoostSalience(ctx context.Context, subjectID, topic string, matchCount int) error {
	if matchCount <= 0 {
		return nil
	}
	open, err := t.store.ListOpen(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("loops: list for boost: %w", err)
	}

	var delta float64
	for i := 0; i < matchCount; i++ {
		delta += 0.1 / math.Pow(2, float64(i))
	}

	now := t.now()
	for _, loop := range open {
		if !t.matcher.Equivalent(loop.Topic, topic) {
			continue
		}
		loop.Salience = math.Min(loop.Salience+delta, 1.0)
		loop.UpdatedAt = now
		if err := t.store.Put(ctx, loop); err != nil {
			return fmt.Errorf("loops: boost %s: %w", loop.ID, err)
		}
	}
	return nil
}

// EligibleToSurface returns up to three surfacing candidates ordered by
// salience, highest first. The first entry is the one to ask about; the rest
// are auxiliary display. An expiry sweep runs first, best-effort.
func (t *Tracker) EligibleToSurface(ctx context.Context, subjectID string) ([]Loop, error) {
	ctx, span := t.tracer.Start(ctx, "loops.eligible")
	defer span.End()

	if err := t.SweepExpired(ctx, subjectID); err != nil {
		t.logger.Warn("loop expiry sweep failed", "subject_id", subjectID, "error", err)
	}

	open, err := t.store.ListOpen(ctx, subjectID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("loops: list open: %w", err)
	}

	now := t.now()
	var eligible []Loop
	for _, loop := range open {
		if now.Before(loop.ShouldSurfaceAfter) {
			continue
		}
		if !loop.ExpiresAt.IsZero() && !now.Before(loop.ExpiresAt) {
			continue
		}
		if loop.SurfaceCount >= loop.MaxSurfaces {
			continue
		}
		if loop.LastSurfacedAt != nil && now.Sub(*loop.LastSurfacedAt) < t.minSurfaceGap {
			continue
		}
		if loop.LoopType == TypePendingEvent && loop.EventDateTime != nil &&
			!now.After(loop.EventDateTime.Add(eventGracePeriod)) {
			continue
		}
		eligible = append(eligible, loop)
	}

	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Salience > eligible[j].Salience })
	if len(eligible) > maxSurfaceBatch {
		eligible = eligible[:maxSurfaceBatch]
	}
	span.SetAttributes(attribute.Int("loop.eligible_count", len(eligible)))
	return eligible, nil
}

// MarkSurfaced records one ask against the loop. Reaching the surface cap
// terminates it as expired.
func (t *Tracker) MarkSurfaced(ctx context.Context, subjectID, loopID string) (Loop, error) {
	loop, err := t.store.Get(ctx, subjectID, loopID)
	if err != nil {
		return Loop{}, err
	}
	if loop.Status.Terminal() {
		return loop, nil
	}

	now := t.now()
	loop.SurfaceCount++
	loop.LastSurfacedAt = &now
	if loop.SurfaceCount >= loop.MaxSurfaces {
		loop.Status = StatusExpired
	} else {
		loop.Status = StatusSurfaced
	}
	loop.UpdatedAt = now

	if err := t.store.Put(ctx, loop); err != nil {
		return Loop{}, fmt.Errorf("loops: mark surfaced %s: %w", loopID, err)
	}
	return loop, nil
}

// ResolveByTopic closes every non-terminal loop whose topic fuzzy-matches,
// because the user addressed it directly.
func (t *Tracker) ResolveByTopic(ctx context.Context, subjectID, topic string) (int, error) {
	return t.closeByTopic(ctx, subjectID, topic, StatusResolved)
}

// DismissByTopic closes every non-terminal loop whose topic fuzzy-matches,
// because the user shut it down.
func (t *Tracker) DismissByTopic(ctx context.Context, subjectID, topic string) (int, error) {
	return t.closeByTopic(ctx, subjectID, topic, StatusDismissed)
}

func (t *Tracker) closeByTopic(ctx context.Context, subjectID, topic string, status LoopStatus) (int, error) {
	open, err := t.store.ListOpen(ctx, subjectID)
	if err != nil {
		return 0, fmt.Errorf("loops: list for close: %w", err)
	}
	now := t.now()
	closed := 0
	for _, loop := range open {
		if !t.matcher.Equivalent(loop.Topic, topic) {
			continue
		}
		loop.Status = status
		loop.UpdatedAt = now
		if err := t.store.Put(ctx, loop); err != nil {
			return closed, fmt.Errorf("loops: close %s: %w", loop.ID, err)
		}
		closed++
	}
	return closed, nil
}

// Close transitions one loop by id to resolved or dismissed.
func (t *Tracker) Close(ctx context.Context, subjectID, loopID string, status LoopStatus) (Loop, error) {
	if status != StatusResolved && status != StatusDismissed {
		return Loop{}, fmt.Errorf("loops: %q is not a closing status", status)
	}
	loop, err := t.store.Get(ctx, subjectID, loopID)
	if err != nil {
		return Loop{}, err
	}
	if loop.Status.Terminal() {
		return loop, nil
	}
	loop.Status = status
	loop.UpdatedAt = t.now()
	if err := t.store.Put(ctx, loop); err != nil {
		return Loop{}, fmt.Errorf("loops: close %s: %w", loopID, err)
	}
	return loop, nil
}

// SweepExpired moves every open loop past its expiry to expired. Idempotent;
// safe to run on every read.
func (t *Tracker) SweepExpired(ctx context.Context, subjectID string) error {
	open, err := t.store.ListOpen(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("loops: list for sweep: %w", err)
	}
	now := t.now()
	for _, loop := range open {
		if loop.ExpiresAt.IsZero() || now.Before(loop.ExpiresAt) {
			continue
		}
		loop.Status = StatusExpired
		loop.UpdatedAt = now
		if err := t.store.Put(ctx, loop); err != nil {
			return fmt.Errorf("loops: expire %s: %w", loop.ID, err)
		}
	}
	return nil
}
