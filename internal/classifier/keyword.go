package classifier

import (
	"regexp"
	"strings"
)

// KeywordClassifier is the deterministic fallback path. It must never fail:
// it is the availability floor for the whole pipeline.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

var (
	loveRe    = regexp.MustCompile(`(?i)\b(i )?(love|adore) (you|u|this|talking to you)\b`)
	hateRe    = regexp.MustCompile(`(?i)\bi hate (you|u|this|talking to you)\b`)
	apologyRe = regexp.MustCompile(`(?i)\b(i('?m| am) sorry|my apologies|i apologize|forgive me|my bad)\b`)
)

// positiveLexicon maps affect-bearing words to weights. Weights accumulate
// into intensity, so a message stacking several warm words lands harder than
// a single "nice".
var positiveLexicon = map[string]int{
	"love": 4, "adore": 4, "amazing": 3, "wonderful": 3, "beautiful": 3,
	"happy": 2, "glad": 2, "excited": 2, "great": 2, "awesome": 3,
	"thank": 2, "thanks": 2, "appreciate": 3, "miss": 3, "sweet": 2,
	"fun": 2, "best": 2, "perfect": 3, "enjoy": 2, "cute": 2,
}

var negativeLexicon = map[string]int{
	"hate": 4, "awful": 3, "terrible": 3, "horrible": 3, "annoying": 3,
	"stupid": 4, "boring": 2, "ugly": 3, "worst": 3, "useless": 4,
	"angry": 3, "mad": 2, "upset": 2, "disappointed": 3, "pathetic": 4,
	"shut": 3, "leave": 2, "whatever": 2, "wrong": 1, "bad": 1,
}

var wordRe = regexp.MustCompile(`[a-z']+`)

// Classify produces a ClassifiedEvent from lexical signals alone.
func (c *KeywordClassifier) Classify(message string) ClassifiedEvent {
	trimmed := strings.TrimSpace(message)
	lower := strings.ToLower(trimmed)

	switch {
	case loveRe.MatchString(trimmed):
		return ClassifiedEvent{
			Sentiment: SentimentPositive,
			Intensity: 9,
			Mood:      "loving",
			Reasoning: "explicit affection phrase",
			Fallback:  true,
		}
	case hateRe.MatchString(trimmed):
		return ClassifiedEvent{
			Sentiment: SentimentNegative,
			Intensity: 9,
			Mood:      "hostile",
			Reasoning: "explicit hostility phrase",
			Hostile:   true,
			Fallback:  true,
		}
	case apologyRe.MatchString(trimmed):
		return ClassifiedEvent{
			Sentiment: SentimentPositive,
			Intensity: 6,
			Mood:      "apologetic",
			Reasoning: "apology phrase",
			Fallback:  true,
		}
	}

	var posScore, negScore int
	for _, w := range wordRe.FindAllString(lower, -1) {
		posScore += positiveLexicon[w]
		negScore += negativeLexicon[w]
	}

	if posScore > negScore {
		return ClassifiedEvent{
			Sentiment: SentimentPositive,
			Intensity: clampIntensity(2 + posScore),
			Reasoning: "positive lexicon match",
			Fallback:  true,
		}
	}
	if negScore > posScore {
		return ClassifiedEvent{
			Sentiment: SentimentNegative,
			Intensity: clampIntensity(2 + negScore),
			Reasoning: "negative lexicon match",
			Fallback:  true,
		}
	}

	// Neutral default, biased up slightly for engaged questions.
	intensity := 1
	if len(trimmed) > 20 && strings.Contains(trimmed, "?") {
		intensity = 3
	} else if len(trimmed) > 60 {
		intensity = 2
	}
	return ClassifiedEvent{
		Sentiment: SentimentNeutral,
		Intensity: intensity,
		Reasoning: "no lexical signal",
		Fallback:  true,
	}
}

func clampIntensity(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}
