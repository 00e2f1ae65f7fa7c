package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rapportlabs/rapport/internal/archive"
	"github.com/rapportlabs/rapport/internal/loops"
	"github.com/rapportlabs/rapport/internal/relationship"
	"github.com/rapportlabs/rapport/pkg/logging"
)

const (
	workerBatchSize   = 5
	workerWaitSeconds = 10

	// How much recent history a pattern scan looks at, and how one-sided it
	// has to be before it is worth an observation loop.
	patternScanWindow = 5
	patternScanFloor  = 4
)

// Worker drains the side-write queue: pattern scans over recent history and
// event archival. Every job is best-effort; a failed job is logged and
// dropped rather than retried forever.
type Worker struct {
	queue   queueClient
	ledger  *relationship.Ledger
	tracker *loops.Tracker
	archive *archive.Store
	logger  *logging.Logger
}

func NewWorker(queue queueClient, ledger *relationship.Ledger, tracker *loops.Tracker, archiveStore *archive.Store, logger *logging.Logger) *Worker {
	if queue == nil {
		panic("engine: worker queue cannot be nil")
	}
	if ledger == nil {
		panic("engine: worker ledger cannot be nil")
	}
	if tracker == nil {
		panic("engine: worker tracker cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		queue:   queue,
		ledger:  ledger,
		tracker: tracker,
		archive: archiveStore,
		logger:  logger,
	}
}

// Run processes jobs until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("side-write worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("side-write worker stopping")
			return ctx.Err()
		default:
		}

		messages, err := w.queue.Receive(ctx, workerBatchSize, workerWaitSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("queue receive failed", "error", err)
			continue
		}

		for _, msg := range messages {
			if err := w.handle(ctx, msg.Body); err != nil {
				w.logger.Warn("side-write job failed", "message_id", msg.ID, "error", err)
			}
			if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
				w.logger.Warn("queue delete failed", "message_id", msg.ID, "error", err)
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, body string) error {
	var job sideJob
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return fmt.Errorf("engine: decode job: %w", err)
	}
	if job.SubjectID == "" {
		return fmt.Errorf("engine: job %s has no subject", job.ID)
	}

	switch job.Kind {
	case jobPatternScan:
		return w.scanPatterns(ctx, job.SubjectID)
	case jobArchiveEvents:
		return w.archiveHistory(ctx, job.SubjectID)
	default:
		return fmt.Errorf("engine: unknown job kind %q", job.Kind)
	}
}

// scanPatterns looks for a one-sided run in the subject's recent history
// and upserts a pattern_observation loop the persona can bring up later.
func (w *Worker) scanPatterns(ctx context.Context, subjectID string) error {
	events, err := w.ledger.History(ctx, subjectID, patternScanWindow)
	if err != nil {
		return fmt.Errorf("engine: pattern scan history: %w", err)
	}
	if len(events) < patternScanWindow {
		return nil
	}

	var negatives, positives int
	for _, ev := range events {
		switch ev.EventType {
		case relationship.EventNegative, relationship.EventRupture:
			negatives++
		case relationship.EventPositive, relationship.EventMilestone:
			positives++
		}
	}

	var topic, followup string
	switch {
	case negatives >= patternScanFloor:
		topic = "a rough stretch lately"
		followup = "Gently acknowledge that things have felt tense recently."
	case positives >= patternScanFloor:
		topic = "a good run lately"
		followup = "Note that the recent conversations have felt really good."
	default:
		return nil
	}

	_, created, err := w.tracker.Create(ctx, subjectID, loops.TypePatternObservation, topic, loops.CreateOptions{
		TriggerContext:    fmt.Sprintf("%d of the last %d interactions leaned one way", max(negatives, positives), patternScanWindow),
		SuggestedFollowup: followup,
		Salience:          0.4,
	})
	if err != nil {
		return fmt.Errorf("engine: pattern observation upsert: %w", err)
	}
	if created {
		w.logger.Info("pattern observation created", "subject_id", subjectID, "topic", topic)
	}
	return nil
}

func (w *Worker) archiveHistory(ctx context.Context, subjectID string) error {
	if !w.archive.Enabled() {
		return nil
	}
	events, err := w.ledger.History(ctx, subjectID, 100)
	if err != nil {
		return fmt.Errorf("engine: archive history read: %w", err)
	}
	if err := w.archive.ArchiveEvents(ctx, subjectID, events); err != nil {
		return fmt.Errorf("engine: archive upload: %w", err)
	}
	return nil
}
