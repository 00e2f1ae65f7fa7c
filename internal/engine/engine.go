// Package engine orchestrates the turn pipeline: classify the message,
// apply it to the relationship ledger, refresh the intimacy window, update
// open loops, and emit a structured decision for the rendering layer.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rapportlabs/rapport/internal/classifier"
	"github.com/rapportlabs/rapport/internal/intimacy"
	"github.com/rapportlabs/rapport/internal/loops"
	"github.com/rapportlabs/rapport/internal/observability/metrics"
	"github.com/rapportlabs/rapport/internal/persona"
	"github.com/rapportlabs/rapport/internal/relationship"
	"github.com/rapportlabs/rapport/pkg/logging"
)

type turnClassifier interface {
	Classify(ctx context.Context, message string, history []classifier.ChatMessage) classifier.ClassifiedEvent
}

type loopDetector interface {
	Detect(ctx context.Context, message string) []loops.Detection
}

// TurnRequest is one inbound user turn.
type TurnRequest struct {
	SubjectID     string                   `json:"subjectId"`
	Message       string                   `json:"message"`
	RecentHistory []classifier.ChatMessage `json:"recentHistory,omitempty"`

	// BidType is the behavioral register the caller wants to open this turn.
	BidType intimacy.BidType `json:"bidType,omitempty"`
	// ExternalMoodThreshold scales the relational openness base; zero means
	// neutral (1.0).
	ExternalMoodThreshold float64 `json:"externalMoodThreshold,omitempty"`
}

// IntimacyDecision is the gate's output for one turn.
type IntimacyDecision struct {
	Probability float64          `json:"probability"`
	Band        string           `json:"band"`
	BidType     intimacy.BidType `json:"bidType"`
	Triggered   bool             `json:"triggered"`
}

// TurnResult is everything the rendering collaborator needs: structured
// state, one loop to ask about (or none), and the gate decision. No natural
// language is produced here.
type TurnResult struct {
	Relationship relationship.State `json:"relationship"`
	Event        relationship.Event `json:"event"`
	Intimacy     IntimacyDecision   `json:"intimacy"`

	SurfacedLoop   *loops.Loop  `json:"surfacedLoop,omitempty"`
	AuxiliaryLoops []loops.Loop `json:"auxiliaryLoops,omitempty"`

	// PersonaStance is set when the turn touched a topic the persona holds
	// an opinion on, so the renderer can volunteer it.
	PersonaStance *persona.Opinion `json:"personaStance,omitempty"`

	ClassifierFallback bool `json:"classifierFallback"`
}

// Engine wires the pipeline together.
type Engine struct {
	classifier    turnClassifier
	ledger        *relationship.Ledger
	tracker       *loops.Tracker
	detector      loopDetector
	intimacyStore intimacy.Store
	opinions      *persona.Library
	queue         queueClient
	metrics       *metrics.EngineMetrics
	events        *EventLogger
	rng           intimacy.Rand
	logger        *logging.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// Config carries the Engine's collaborators. Classifier, Ledger, Tracker,
// and IntimacyStore are hard dependencies; the rest degrade gracefully.
type Config struct {
	Classifier    turnClassifier
	Ledger        *relationship.Ledger
	Tracker       *loops.Tracker
	Detector      loopDetector
	IntimacyStore intimacy.Store
	Opinions      *persona.Library
	Queue         queueClient
	Metrics       *metrics.EngineMetrics
	Rand          intimacy.Rand
	Logger        *logging.Logger
}

func New(cfg Config) *Engine {
	if cfg.Classifier == nil {
		panic("engine: classifier cannot be nil")
	}
	if cfg.Ledger == nil {
		panic("engine: ledger cannot be nil")
	}
	if cfg.Tracker == nil {
		panic("engine: tracker cannot be nil")
	}
	if cfg.IntimacyStore == nil {
		panic("engine: intimacy store cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		classifier:    cfg.Classifier,
		ledger:        cfg.Ledger,
		tracker:       cfg.Tracker,
		detector:      cfg.Detector,
		intimacyStore: cfg.IntimacyStore,
		opinions:      cfg.Opinions,
		queue:         cfg.Queue,
		metrics:       cfg.Metrics,
		events:        NewEventLogger(logger),
		rng:           cfg.Rand,
		logger:        logger,
		tracer:        otel.Tracer("rapport.internal.engine"),
		now:           time.Now,
	}
}

// WithClock overrides the engine clock, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ProcessTurn runs the full pipeline for one inbound turn. A ledger failure
// fails the turn; everything downstream of the ledger degrades instead.
func (e *Engine) ProcessTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.process_turn")
	defer span.End()
	started := e.now()

	if req.SubjectID == "" {
		return TurnResult{}, fmt.Errorf("engine: subjectId required")
	}
	if req.Message == "" {
		return TurnResult{}, fmt.Errorf("engine: message required")
	}
	if req.BidType == "" {
		req.BidType = intimacy.BidNeutral
	}
	if req.ExternalMoodThreshold <= 0 {
		req.ExternalMoodThreshold = 1.0
	}

	ev := e.classifier.Classify(ctx, req.Message, req.RecentHistory)
	span.SetAttributes(
		attribute.String("turn.sentiment", string(ev.Sentiment)),
		attribute.Bool("turn.classifier_fallback", ev.Fallback),
	)

	state, event, err := e.ledger.Apply(ctx, req.SubjectID, ev, req.Message)
	if err != nil {
		span.RecordError(err)
		e.metrics.ObserveTurnLatency("error", e.now().Sub(started).Seconds())
		return TurnResult{}, err
	}
	e.metrics.ObserveEvent(string(ev.Sentiment), ev.Fallback)
	e.events.EventApplied(req.SubjectID, event, ev.Fallback)
	switch event.EventType {
	case relationship.EventRupture:
		e.metrics.ObserveRupture()
		e.events.RuptureDetected(req.SubjectID, event)
	case relationship.EventRepair:
		e.metrics.ObserveRepair()
	}

	now := e.now()
	window, err := e.intimacyStore.Get(ctx, req.SubjectID, now)
	if err != nil {
		// A fresh neutral window is the safe default read.
		e.logger.Warn("intimacy window read failed, using neutral window",
			"subject_id", req.SubjectID, "error", err)
		window = intimacy.NewState(req.SubjectID, now)
	}
	window, _ = intimacy.RecordMessage(window, req.Message, now)
	if err := e.intimacyStore.Save(ctx, window); err != nil {
		e.logger.Warn("intimacy window save failed",
			"subject_id", req.SubjectID, "error", err)
	}

	stance := e.updateLoops(ctx, req.SubjectID, req.Message)
	surfaced, auxiliary := e.surfaceLoop(ctx, req.SubjectID)

	p := intimacy.Probability(state, window, req.ExternalMoodThreshold, now)
	triggered := intimacy.ShouldTrigger(p, req.BidType, e.rng)
	e.metrics.ObserveGate(string(req.BidType), triggered)
	e.events.GateDecision(req.SubjectID, p, string(req.BidType), triggered)

	e.enqueueSideJobs(req.SubjectID, event)

	e.metrics.ObserveTurnLatency("ok", e.now().Sub(started).Seconds())
	return TurnResult{
		Relationship: state,
		Event:        event,
		Intimacy: IntimacyDecision{
			Probability: p,
			Band:        intimacy.Band(p),
			BidType:     req.BidType,
			Triggered:   triggered,
		},
		SurfacedLoop:       surfaced,
		AuxiliaryLoops:     auxiliary,
		PersonaStance:      stance,
		ClassifierFallback: ev.Fallback,
	}, nil
}

// updateLoops feeds this turn's detections into the tracker and checks the
// detected topics against the persona's opinion list. Loop upkeep never
// fails the turn.
func (e *Engine) updateLoops(ctx context.Context, subjectID, message string) *persona.Opinion {
	if e.detector == nil {
		return nil
	}
	var stance *persona.Opinion
	for _, det := range e.detector.Detect(ctx, message) {
		if stance == nil && e.opinions.Enabled() {
			if op, ok := e.opinions.Lookup(det.Topic); ok {
				stance = &op
			}
		}
		loop, created, err := e.tracker.Create(ctx, subjectID, det.LoopType, det.Topic, loops.CreateOptions{
			TriggerContext:    det.TriggerContext,
			SuggestedFollowup: det.SuggestedFollowup,
			Salience:          det.Salience,
		})
		if err != nil {
			e.logger.Warn("loop create failed", "subject_id", subjectID, "topic", det.Topic, "error", err)
			continue
		}
		action := "merged"
		if created {
			action = "created"
		} else {
			// A re-mention of an open thread makes it worth asking about sooner.
			if err := e.tracker.BoostSalience(ctx, subjectID, det.Topic, 1); err != nil {
				e.logger.Warn("loop salience boost failed", "subject_id", subjectID, "topic", det.Topic, "error", err)
			}
		}
		e.metrics.ObserveLoop(string(loop.LoopType), action)
	}
	return stance
}

// surfaceLoop asks the tracker for the turn's follow-up candidates and
// commits the ask against the best one.
func (e *Engine) surfaceLoop(ctx context.Context, subjectID string) (*loops.Loop, []loops.Loop) {
	eligible, err := e.tracker.EligibleToSurface(ctx, subjectID)
	if err != nil {
		e.logger.Warn("loop eligibility check failed", "subject_id", subjectID, "error", err)
		return nil, nil
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	top, err := e.tracker.MarkSurfaced(ctx, subjectID, eligible[0].ID)
	if err != nil {
		e.logger.Warn("loop surface mark failed", "subject_id", subjectID, "loop_id", eligible[0].ID, "error", err)
		return nil, eligible[1:]
	}
	e.metrics.ObserveLoop(string(top.LoopType), "surfaced")
	e.events.LoopSurfaced(subjectID, top)
	return &top, eligible[1:]
}

// enqueueSideJobs spins off the fire-and-forget work: a pattern scan every
// turn and an archive batch whenever the relationship ruptures.
func (e *Engine) enqueueSideJobs(subjectID string, event relationship.Event) {
	if e.queue == nil {
		return
	}
	jobs := []sideJob{{Kind: jobPatternScan, SubjectID: subjectID}}
	if event.EventType == relationship.EventRupture {
		jobs = append(jobs, sideJob{Kind: jobArchiveEvents, SubjectID: subjectID})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, job := range jobs {
			body, err := encodeJob(job)
			if err != nil {
				e.events.SideWriteFailed(subjectID, string(job.Kind), err)
				continue
			}
			if err := e.queue.Send(ctx, body); err != nil {
				e.events.SideWriteFailed(subjectID, string(job.Kind), err)
			}
		}
	}()
}
