package loops

import "time"

// LoopType categorizes what kind of follow-up a loop represents.
type LoopType string

const (
	TypePendingEvent       LoopType = "pending_event"
	TypeEmotionalFollowup  LoopType = "emotional_followup"
	TypeCommitmentCheck    LoopType = "commitment_check"
	TypeCuriosityThread    LoopType = "curiosity_thread"
	TypePatternObservation LoopType = "pattern_observation"
)

// LoopStatus is the lifecycle state. Resolved, expired, and dismissed are
// terminal.
type LoopStatus string

const (
	StatusActive    LoopStatus = "active"
	StatusSurfaced  LoopStatus = "surfaced"
	StatusResolved  LoopStatus = "resolved"
	StatusExpired   LoopStatus = "expired"
	StatusDismissed LoopStatus = "dismissed"
)

// Terminal reports whether the status allows no further transitions.
func (s LoopStatus) Terminal() bool {
	return s == StatusResolved || s == StatusExpired || s == StatusDismissed
}

// Loop is one thing worth following up on with the subject.
type Loop struct {
	ID        string   `json:"id" dynamodbav:"loopId"`
	SubjectID string   `json:"subjectId" dynamodbav:"subjectId"`
	LoopType  LoopType `json:"loopType" dynamodbav:"loopType"`

	Topic             string `json:"topic" dynamodbav:"topic"`
	TriggerContext    string `json:"triggerContext,omitempty" dynamodbav:"triggerContext,omitempty"`
	SuggestedFollowup string `json:"suggestedFollowup,omitempty" dynamodbav:"suggestedFollowup,omitempty"`

	Status       LoopStatus `json:"status" dynamodbav:"status"`
	Salience     float64    `json:"salience" dynamodbav:"salience"`
	SurfaceCount int        `json:"surfaceCount" dynamodbav:"surfaceCount"`
	MaxSurfaces  int        `json:"maxSurfaces" dynamodbav:"maxSurfaces"`

	CreatedAt          time.Time  `json:"createdAt" dynamodbav:"createdAt"`
	ShouldSurfaceAfter time.Time  `json:"shouldSurfaceAfter" dynamodbav:"shouldSurfaceAfter"`
	LastSurfacedAt     *time.Time `json:"lastSurfacedAt,omitempty" dynamodbav:"lastSurfacedAt,omitempty"`
	ExpiresAt          time.Time  `json:"expiresAt" dynamodbav:"expiresAt"`

	// EventDateTime is the real-world scheduled moment for pending_event
	// loops. Asking "how did it go" before this plus a grace period is
	// nonsense, so eligibility gates on it.
	EventDateTime         *time.Time `json:"eventDateTime,omitempty" dynamodbav:"eventDateTime,omitempty"`
	SourceCalendarEventID string     `json:"sourceCalendarEventId,omitempty" dynamodbav:"sourceCalendarEventId,omitempty"`
	SourceMessageID       string     `json:"sourceMessageId,omitempty" dynamodbav:"sourceMessageId,omitempty"`

	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// surfacingPolicy is the per-type default window: how long to wait before
// the loop may surface, how long until it expires, and how many asks it
// gets before it is spent.
type surfacingPolicy struct {
	surfaceDelay time.Duration
	expiry       time.Duration
	maxSurfaces  int
}

var policies = map[LoopType]surfacingPolicy{
	TypePendingEvent:       {surfaceDelay: 0, expiry: 7 * 24 * time.Hour, maxSurfaces: 2},
	TypeEmotionalFollowup:  {surfaceDelay: 24 * time.Hour, expiry: 5 * 24 * time.Hour, maxSurfaces: 3},
	TypeCommitmentCheck:    {surfaceDelay: 48 * time.Hour, expiry: 14 * 24 * time.Hour, maxSurfaces: 3},
	TypeCuriosityThread:    {surfaceDelay: 4 * time.Hour, expiry: 3 * 24 * time.Hour, maxSurfaces: 3},
	TypePatternObservation: {surfaceDelay: 72 * time.Hour, expiry: 30 * 24 * time.Hour, maxSurfaces: 3},
}

func policyFor(t LoopType) surfacingPolicy {
	if p, ok := policies[t]; ok {
		return p
	}
	return policies[TypeCuriosityThread]
}
