package loops

import (
	"context"
	"fmt"
	"time"

	"github.com/rapportlabs/rapport/pkg/logging"
)

// CalendarEntry is one upcoming item from an external calendar feed.
type CalendarEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"startTime"`
	IsFormal  bool      `json:"isFormal"`
}

// CalendarSource supplies upcoming entries for a subject. Implementations
// live outside this package; tests use a slice-backed fake.
type CalendarSource interface {
	Upcoming(ctx context.Context, subjectID string) ([]CalendarEntry, error)
}

// Seeder turns calendar entries into pending_event loops. Re-seeding the
// same entry merges by sourceCalendarEventId instead of duplicating.
type Seeder struct {
	tracker *Tracker
	source  CalendarSource
	logger  *logging.Logger
}

func NewSeeder(tracker *Tracker, source CalendarSource, logger *logging.Logger) *Seeder {
	if tracker == nil {
		panic("loops: tracker cannot be nil")
	}
	if source == nil {
		panic("loops: calendar source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Seeder{tracker: tracker, source: source, logger: logger}
}

// Seed creates one pending_event loop per upcoming calendar entry and
// reports how many were newly created.
func (s *Seeder) Seed(ctx context.Context, subjectID string) (int, error) {
	entries, err := s.source.Upcoming(ctx, subjectID)
	if err != nil {
		return 0, fmt.Errorf("loops: fetch calendar entries: %w", err)
	}

	created := 0
	for _, entry := range entries {
		if entry.Title == "" {
			continue
		}
		start := entry.StartTime
		salience := 0.5
		if entry.IsFormal {
			salience = 0.7
		}
		_, isNew, err := s.tracker.Create(ctx, subjectID, TypePendingEvent, entry.Title, CreateOptions{
			TriggerContext:        "calendar: " + entry.Title,
			SuggestedFollowup:     "Ask how " + entry.Title + " went.",
			Salience:              salience,
			EventDateTime:         &start,
			SourceCalendarEventID: entry.ID,
		})
		if err != nil {
			s.logger.Warn("calendar seed failed", "subject_id", subjectID, "entry_id", entry.ID, "error", err)
			continue
		}
		if isNew {
			created++
		}
	}
	return created, nil
}
