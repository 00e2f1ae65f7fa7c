package engine

import (
	"context"

	"github.com/rapportlabs/rapport/internal/intimacy"
	"github.com/rapportlabs/rapport/internal/loops"
	"github.com/rapportlabs/rapport/internal/relationship"
)

// Snapshot is the read-only view of a subject: current ledger state, the
// surfacing candidates (not yet asked), and the openness band. Consumers
// phrase copy off this; nothing here mutates state except the opportunistic
// expiry sweep inside the eligibility read.
type Snapshot struct {
	Relationship relationship.State `json:"relationship"`
	Intimacy     struct {
		Probability float64 `json:"probability"`
		Band        string  `json:"band"`
	} `json:"intimacy"`
	EligibleLoops []loops.Loop `json:"eligibleLoops,omitempty"`
}

// Snapshot assembles the current view without recording an interaction.
func (e *Engine) Snapshot(ctx context.Context, subjectID string) (Snapshot, error) {
	ctx, span := e.tracer.Start(ctx, "engine.snapshot")
	defer span.End()

	state, err := e.ledger.Get(ctx, subjectID)
	if err != nil {
		span.RecordError(err)
		return Snapshot{}, err
	}

	now := e.now()
	window, err := e.intimacyStore.Get(ctx, subjectID, now)
	if err != nil {
		e.logger.Warn("intimacy window read failed for snapshot",
			"subject_id", subjectID, "error", err)
		window = intimacy.NewState(subjectID, now)
	}

	eligible, err := e.tracker.EligibleToSurface(ctx, subjectID)
	if err != nil {
		e.logger.Warn("loop eligibility check failed for snapshot",
			"subject_id", subjectID, "error", err)
		eligible = nil
	}

	p := intimacy.Probability(state, window, 1.0, now)

	snap := Snapshot{
		Relationship:  state,
		EligibleLoops: eligible,
	}
	snap.Intimacy.Probability = p
	snap.Intimacy.Band = intimacy.Band(p)
	return snap, nil
}
