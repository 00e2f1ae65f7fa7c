package classifier

import (
	"math"
	"regexp"
	"strings"
)

// DeltaWeights are the tuned coefficients of the score-delta formula.
// Two differently-tuned sets exist across deployments, so these are
// configuration rather than constants.
type DeltaWeights struct {
	PositiveScoreBase  float64
	PositiveScoreSlope float64
	NegativeScoreBase  float64
	NegativeScoreSlope float64
}

// DefaultDeltaWeights returns the canonical tuning. Negative magnitudes run
// 2-3x the positive ones: trust and warmth are easy to damage and slow to
// rebuild, and that asymmetry is load-bearing.
func DefaultDeltaWeights() DeltaWeights {
	return DeltaWeights{
		PositiveScoreBase:  0.3,
		PositiveScoreSlope: 0.7,
		NegativeScoreBase:  0.5,
		NegativeScoreSlope: 2.5,
	}
}

var (
	complimentRe = regexp.MustCompile(`(?i)\byou('?re| are)? (so |really |such a[n]? )?(smart|funny|kind|sweet|amazing|beautiful|wonderful|great|thoughtful|special)\b`)
	jokeRe       = regexp.MustCompile(`(?i)\b(haha|hahaha|lmao|lol|rofl|jk|just kidding|you('?re| are) ridiculous)\b|😂|🤣`)
	disclosureRe = regexp.MustCompile(`(?i)\b(i('?ve| have) never told|between (you and me|us)|can i tell you something|i trust you)\b`)
	dismissiveRe = regexp.MustCompile(`(?i)\b(whatever|don'?t care|who cares|forget it|nevermind|waste of time|you wouldn'?t (get|understand) it)\b`)
	insultRe     = regexp.MustCompile(`(?i)\b(stupid|idiot|pathetic|useless|worthless|dumb|shut up|loser)\b`)
)

// ComputeDeltas maps a classified event (plus the raw message, for feature
// bonuses) onto the five relational score changes, each rounded to one
// decimal.
func ComputeDeltas(w DeltaWeights, ev ClassifiedEvent, message string) Deltas {
	m := float64(ev.Intensity) / 10.0
	engagedQuestion := len(strings.TrimSpace(message)) > 20 && strings.Contains(message, "?")

	var d Deltas
	switch ev.Sentiment {
	case SentimentPositive:
		d = Deltas{
			Score:       w.PositiveScoreBase + w.PositiveScoreSlope*m,
			Warmth:      0.1 + 0.3*m,
			Trust:       0.1 * m,
			Playfulness: 0,
			Stability:   0.1 * m,
		}
		if complimentRe.MatchString(message) {
			d.Warmth += 0.3
			d.Trust += 0.2
		}
		if apologyRe.MatchString(message) {
			// Apologies rebuild trust and stability faster than warmth.
			d.Trust += 0.4
			d.Stability += 0.3
			d.Warmth += 0.1
		}
		if jokeRe.MatchString(message) {
			d.Playfulness += 0.4
			d.Warmth += 0.2
		}
		if disclosureRe.MatchString(message) {
			d.Trust += 0.3
			d.Warmth += 0.2
		}
		if engagedQuestion {
			d.Stability += 0.2
			d.Trust += 0.1
		}

	case SentimentNegative:
		d = Deltas{
			Score:       -(w.NegativeScoreBase + w.NegativeScoreSlope*m),
			Warmth:      -(0.2 + 0.5*m),
			Trust:       -(0.1 + 0.4*m),
			Playfulness: -0.2,
			Stability:   -(0.1 + 0.2*m),
		}
		if dismissiveRe.MatchString(message) {
			d.Warmth -= 0.2
			d.Trust -= 0.2
		}
		if insultRe.MatchString(message) {
			d.Warmth -= 0.4
			d.Trust -= 0.5
			d.Stability -= 0.2
		}

	default:
		// Neutral messages leave the ledger untouched unless they show
		// engagement; the nudge values are already exact.
		if engagedQuestion {
			return Deltas{Score: 0.1, Warmth: 0.05, Stability: 0.05}
		}
		return Deltas{}
	}

	d.Score = round1(d.Score)
	d.Warmth = round1(d.Warmth)
	d.Trust = round1(d.Trust)
	d.Playfulness = round1(d.Playfulness)
	d.Stability = round1(d.Stability)
	return d
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// IsApology reports whether the message carries apology framing. The ledger
// uses it to recognize repair attempts after a rupture.
func IsApology(message string) bool {
	return apologyRe.MatchString(message)
}
