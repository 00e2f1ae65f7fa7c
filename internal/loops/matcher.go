package loops

import (
	"regexp"
	"strings"
)

// TopicMatcher decides when two free-text topics mean the same thing. The
// strategy is pluggable so deployments can swap in embedding-based matching
// without touching the tracker.
type TopicMatcher interface {
	Normalize(topic string) string
	Equivalent(a, b string) bool
}

// FuzzyMatcher is the default matcher: normalize aggressively, then accept
// exact equality or containment of a reasonably long topic.
type FuzzyMatcher struct{}

var (
	punctRe = regexp.MustCompile(`[^\pL\pN\s]+`)
	spaceRe = regexp.MustCompile(`\s+`)
)

const minContainmentLen = 5

// Normalize lowercases, strips punctuation, collapses whitespace, and folds
// crude English plurals so "holiday parties" and "Holiday Party" agree.
func (FuzzyMatcher) Normalize(topic string) string {
	s := strings.ToLower(topic)
	s = strings.ReplaceAll(s, "'", "")
	s = punctRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")

	words := strings.Split(s, " ")
	for i, w := range words {
		switch {
		case strings.HasSuffix(w, "ies") && len(w) > 3:
			words[i] = strings.TrimSuffix(w, "ies") + "y"
		case strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && len(w) > 1:
			words[i] = strings.TrimSuffix(w, "s")
		}
	}
	return strings.Join(words, " ")
}

// Equivalent reports whether two topics should be treated as the same loop.
func (m FuzzyMatcher) Equivalent(a, b string) bool {
	na, nb := m.Normalize(a), m.Normalize(b)
	if na == "" || nb == "" {
		return na == nb
	}
	if na == nb {
		return true
	}
	if len(na) >= minContainmentLen && strings.Contains(nb, na) {
		return true
	}
	if len(nb) >= minContainmentLen && strings.Contains(na, nb) {
		return true
	}
	return false
}
