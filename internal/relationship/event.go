package relationship

import (
	"time"

	"github.com/rapportlabs/rapport/internal/classifier"
)

// EventType categorizes one applied relationship event.
type EventType string

const (
	EventPositive  EventType = "positive"
	EventNegative  EventType = "negative"
	EventNeutral   EventType = "neutral"
	EventMilestone EventType = "milestone"
	EventRupture   EventType = "rupture"
	EventRepair    EventType = "repair"
)

// Event is one append-only history row. It exists for audit and analytics
// and is never read back to reconstruct state.
type Event struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subjectId"`
	EventType EventType `json:"eventType"`
	Source    string    `json:"source"`

	Sentiment string `json:"sentiment"`
	Intensity int    `json:"intensity"`
	Mood      string `json:"mood,omitempty"`

	Deltas classifier.Deltas `json:"deltas"`

	PreviousScore float64 `json:"previousScore"`
	NewScore      float64 `json:"newScore"`
	PreviousTier  Tier    `json:"previousTier"`
	NewTier       Tier    `json:"newTier"`

	UserMessage string `json:"userMessage,omitempty"`
	Notes       string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
