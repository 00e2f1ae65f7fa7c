package engine

import (
	"github.com/rapportlabs/rapport/internal/loops"
	"github.com/rapportlabs/rapport/internal/relationship"
	"github.com/rapportlabs/rapport/pkg/logging"
)

// EventLogger emits one structured record per pipeline decision so a grep
// over the logs can reconstruct why the persona behaved the way it did.
type EventLogger struct {
	logger *logging.Logger
}

func NewEventLogger(logger *logging.Logger) *EventLogger {
	if logger == nil {
		logger = logging.Default()
	}
	return &EventLogger{logger: logger.With("component", "engine")}
}

func (l *EventLogger) EventApplied(subjectID string, event relationship.Event, fallback bool) {
	l.logger.Info("relationship event applied",
		"subject_id", subjectID,
		"event_id", event.ID,
		"event_type", string(event.EventType),
		"sentiment", event.Sentiment,
		"intensity", event.Intensity,
		"score_delta", event.Deltas.Score,
		"new_score", event.NewScore,
		"tier", string(event.NewTier),
		"classifier_fallback", fallback,
	)
}

func (l *EventLogger) RuptureDetected(subjectID string, event relationship.Event) {
	l.logger.Warn("relationship rupture",
		"subject_id", subjectID,
		"event_id", event.ID,
		"previous_score", event.PreviousScore,
		"new_score", event.NewScore,
	)
}

func (l *EventLogger) LoopSurfaced(subjectID string, loop loops.Loop) {
	l.logger.Info("loop surfaced",
		"subject_id", subjectID,
		"loop_id", loop.ID,
		"loop_type", string(loop.LoopType),
		"topic", loop.Topic,
		"salience", loop.Salience,
		"surface_count", loop.SurfaceCount,
	)
}

func (l *EventLogger) GateDecision(subjectID string, probability float64, bid string, triggered bool) {
	l.logger.Info("intimacy gate decision",
		"subject_id", subjectID,
		"probability", probability,
		"bid_type", bid,
		"triggered", triggered,
	)
}

func (l *EventLogger) SideWriteFailed(subjectID, kind string, err error) {
	l.logger.Warn("side write failed",
		"subject_id", subjectID,
		"kind", kind,
		"error", err,
	)
}
