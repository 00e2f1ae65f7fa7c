package relationship

import (
	"time"
)

// Tier is the discrete closeness label derived from the numeric score.
type Tier string

const (
	TierAdversarial     Tier = "adversarial"
	TierNeutralNegative Tier = "neutral_negative"
	TierAcquaintance    Tier = "acquaintance"
	TierFriend          Tier = "friend"
	TierCloseFriend     Tier = "close_friend"
	TierDeeplyLoving    Tier = "deeply_loving"
)

// FamiliarityStage tracks how long-established the relationship is,
// independent of its emotional tone.
type FamiliarityStage string

const (
	StageEarly       FamiliarityStage = "early"
	StageDeveloping  FamiliarityStage = "developing"
	StageEstablished FamiliarityStage = "established"
)

// Scalar clamp ranges.
const (
	ScoreMin = -100.0
	ScoreMax = 100.0
	AxisMin  = -50.0
	AxisMax  = 50.0
)

// TierThresholds maps scores onto tiers. Deployments disagree on the
// close_friend ceiling (75 vs 100), so the whole table is configuration.
type TierThresholds struct {
	AdversarialMax     float64
	NeutralNegativeMax float64
	FriendMin          float64
	CloseFriendMin     float64
	DeeplyLovingMin    float64
}

// DefaultTierThresholds returns the canonical table.
func DefaultTierThresholds() TierThresholds {
	return TierThresholds{
		AdversarialMax:     -50,
		NeutralNegativeMax: -10,
		FriendMin:          10,
		CloseFriendMin:     50,
		DeeplyLovingMin:    75,
	}
}

// TierFor derives the tier for a score. Pure and deterministic.
func (t TierThresholds) TierFor(score float64) Tier {
	switch {
	case score <= t.AdversarialMax:
		return TierAdversarial
	case score <= t.NeutralNegativeMax:
		return TierNeutralNegative
	case score < t.FriendMin:
		return TierAcquaintance
	case score < t.CloseFriendMin:
		return TierFriend
	case score < t.DeeplyLovingMin:
		return TierCloseFriend
	default:
		return TierDeeplyLoving
	}
}

// State is the durable relational record for one subject.
type State struct {
	SubjectID string `json:"subjectId"`

	Score       float64 `json:"score"`       // -100..100
	Warmth      float64 `json:"warmth"`      // -50..50
	Trust       float64 `json:"trust"`       // -50..50
	Playfulness float64 `json:"playfulness"` // -50..50
	Stability   float64 `json:"stability"`   // -50..50

	Tier             Tier             `json:"tier"`
	FamiliarityStage FamiliarityStage `json:"familiarityStage"`

	TotalInteractions    int `json:"totalInteractions"`
	PositiveInteractions int `json:"positiveInteractions"`
	NegativeInteractions int `json:"negativeInteractions"`

	FirstInteractionAt time.Time `json:"firstInteractionAt"`
	LastInteractionAt  time.Time `json:"lastInteractionAt"`

	IsRuptured    bool       `json:"isRuptured"`
	LastRuptureAt *time.Time `json:"lastRuptureAt,omitempty"`
	RuptureCount  int        `json:"ruptureCount"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// NewState returns the zero-valued record a subject starts from.
func NewState(subjectID string, now time.Time) State {
	return State{
		SubjectID:          subjectID,
		Tier:               TierAcquaintance,
		FamiliarityStage:   StageEarly,
		FirstInteractionAt: now,
		LastInteractionAt:  now,
		UpdatedAt:          now,
	}
}

// StageFor derives the familiarity stage from interaction count and age.
func StageFor(totalInteractions int, firstInteractionAt, now time.Time) FamiliarityStage {
	days := now.Sub(firstInteractionAt).Hours() / 24
	switch {
	case totalInteractions < 5 || days < 2:
		return StageEarly
	case totalInteractions < 25 || days < 14:
		return StageDeveloping
	default:
		return StageEstablished
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
