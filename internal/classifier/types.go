package classifier

// Sentiment is the polarity of a classified message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ClassifiedEvent is the normalized judgment for one inbound message.
// Intensity is 1..10 regardless of which path produced it.
type ClassifiedEvent struct {
	Sentiment Sentiment `json:"sentiment"`
	Intensity int       `json:"intensity"`
	Mood      string    `json:"mood,omitempty"`
	Reasoning string    `json:"reasoning,omitempty"`

	// Hostile is a higher-confidence hostility signal. When set it
	// short-circuits rupture detection downstream.
	Hostile bool `json:"hostile,omitempty"`

	// Fallback records that the deterministic path produced this event.
	Fallback bool `json:"-"`
}

// Valid reports whether the event is well-formed enough to apply.
func (e ClassifiedEvent) Valid() bool {
	switch e.Sentiment {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
	default:
		return false
	}
	return e.Intensity >= 1 && e.Intensity <= 10
}

// Deltas holds the five score changes derived from a classified event,
// each rounded to one decimal.
type Deltas struct {
	Score       float64 `json:"scoreChange"`
	Warmth      float64 `json:"warmthChange"`
	Trust       float64 `json:"trustChange"`
	Playfulness float64 `json:"playfulnessChange"`
	Stability   float64 `json:"stabilityChange"`
}
