package intimacy

import (
	"math/rand"
	"time"

	"github.com/rapportlabs/rapport/internal/relationship"
)

// BidType is the behavioral register the caller wants to open. Playful bids
// clear the gate more easily than escapist ones.
type BidType string

const (
	BidPlay       BidType = "play"
	BidAttention  BidType = "attention"
	BidValidation BidType = "validation"
	BidNeutral    BidType = "neutral"
	BidChallenge  BidType = "challenge"
	BidComfort    BidType = "comfort"
	BidEscape     BidType = "escape"
)

var bidMultipliers = map[BidType]float64{
	BidPlay:       1.5,
	BidAttention:  1.3,
	BidValidation: 1.2,
	BidNeutral:    1.0,
	BidChallenge:  0.8,
	BidComfort:    0.7,
	BidEscape:     0.5,
}

var tierBase = map[relationship.Tier]float64{
	relationship.TierAdversarial:     0.0,
	relationship.TierNeutralNegative: 0.05,
	relationship.TierAcquaintance:    0.1,
	relationship.TierFriend:          0.3,
	relationship.TierCloseFriend:     0.5,
	relationship.TierDeeplyLoving:    0.7,
}

// Probability computes how open the persona should be to emotionally
// exposed behavior on this turn, in [0,1]. externalMoodThreshold scales the
// relational base; values below 1 represent a guarded external mood.
func Probability(rel relationship.State, st State, externalMoodThreshold float64, now time.Time) float64 {
	p := tierBase[rel.Tier]
	p += (rel.Warmth / 50) * 0.15
	p += (rel.Playfulness / 50) * 0.10
	p *= externalMoodThreshold

	p += st.RecentToneModifier
	if st.vulnerabilityActive(now) {
		p += 0.15
	}
	p -= 0.1 * float64(st.LowEffortStreak)
	p += (st.RecentQuality - 0.5) * 0.2

	if rel.IsRuptured {
		p *= 0.3
	}

	if !rel.LastInteractionAt.IsZero() {
		days := now.Sub(rel.LastInteractionAt).Hours() / 24
		switch {
		case days > 7:
			p *= 0.5
		case days > 3:
			p *= 0.7
		}
	}

	return clamp(p, 0, 1)
}

// Rand is the single method the gate needs from a randomness source.
type Rand interface {
	Float64() float64
}

// ShouldTrigger draws once against the bid-scaled probability. rng must be
// injectable for deterministic tests; nil uses the global source.
func ShouldTrigger(p float64, bid BidType, rng Rand) bool {
	mult, ok := bidMultipliers[bid]
	if !ok {
		mult = 1.0
	}
	if rng == nil {
		rng = globalRand{}
	}
	return rng.Float64() < p*mult
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Band buckets a probability for downstream rendering; consumers phrase
// copy off the band, never the raw number.
func Band(p float64) string {
	switch {
	case p < 0.15:
		return "closed"
	case p < 0.4:
		return "guarded"
	case p < 0.7:
		return "open"
	default:
		return "unreserved"
	}
}
