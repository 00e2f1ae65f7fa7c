package quality

import (
	"regexp"
	"strings"
)

// Result captures the effort and vulnerability signals of a single message.
type Result struct {
	Quality      float64 // 0..1
	IsVulnerable bool
	IsLowEffort  bool
	IsHighEffort bool
}

const (
	baseQuality        = 0.5
	lowEffortPenalty   = 0.3
	highEffortBonus    = 0.25
	vulnerabilityBonus = 0.2
)

// fillerTokens are complete messages that carry no conversational effort.
var fillerTokens = map[string]struct{}{
	"ok": {}, "okay": {}, "k": {}, "kk": {}, "lol": {}, "lmao": {},
	"haha": {}, "yeah": {}, "yea": {}, "yep": {}, "yup": {}, "nope": {},
	"no": {}, "nah": {}, "sure": {}, "nice": {}, "cool": {}, "idk": {},
	"hmm": {}, "hm": {}, "meh": {}, "same": {}, "fine": {}, "thanks": {},
	"thx": {}, "ty": {},
}

// reflectivePatterns mark language that engages with the conversation rather
// than just moving past it.
var reflectivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bi (think|feel|felt|realized|noticed|wonder|believe)\b`),
	regexp.MustCompile(`(?i)\bwhat if\b`),
	regexp.MustCompile(`(?i)\bit (made|makes) me\b`),
	regexp.MustCompile(`(?i)\bbecause\b`),
	regexp.MustCompile(`(?i)\breminds? me of\b`),
}

// vulnerabilityPatterns match self-disclosure framing: fear, need, confession.
var vulnerabilityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bi('?m| am) (afraid|scared|terrified|worried|anxious|nervous)\b`),
	regexp.MustCompile(`(?i)\bi (need|needed) (you|someone|help|to talk)\b`),
	regexp.MustCompile(`(?i)\bi('?ve| have) never told (anyone|anybody)\b`),
	regexp.MustCompile(`(?i)\b(to be honest|honestly|tbh),? i\b`),
	regexp.MustCompile(`(?i)\bi feel (so |really )?(alone|lonely|lost|empty|broken|ashamed|vulnerable)\b`),
	regexp.MustCompile(`(?i)\bi (struggle|struggled) with\b`),
	regexp.MustCompile(`(?i)\bi('?m| am) not (ok|okay|fine|doing well)\b`),
	regexp.MustCompile(`(?i)\b(confession|confess|admit)\b.*\bi\b`),
	regexp.MustCompile(`(?i)\bi('?m| am) (insecure|embarrassed) about\b`),
}

// Analyze classifies one message's effort and vulnerability signals.
// It is a pure function: no side effects and no failure mode.
func Analyze(message string) Result {
	trimmed := strings.TrimSpace(message)
	words := strings.Fields(trimmed)
	wordCount := len(words)
	lower := strings.ToLower(trimmed)

	res := Result{Quality: baseQuality}

	normalized := strings.Trim(lower, ".!?,; ")
	if _, filler := fillerTokens[normalized]; wordCount <= 3 || filler {
		res.IsLowEffort = true
	}

	hasQuestion := strings.Contains(trimmed, "?")
	reflective := false
	for _, p := range reflectivePatterns {
		if p.MatchString(trimmed) {
			reflective = true
			break
		}
	}
	if wordCount > 20 || (wordCount > 10 && hasQuestion) || reflective {
		res.IsHighEffort = true
		// A long reflective message outweighs a short word count.
		res.IsLowEffort = false
	}

	for _, p := range vulnerabilityPatterns {
		if p.MatchString(trimmed) {
			res.IsVulnerable = true
			break
		}
	}

	if res.IsLowEffort {
		res.Quality -= lowEffortPenalty
	}
	if res.IsHighEffort {
		res.Quality += highEffortBonus
	}
	if res.IsVulnerable {
		res.Quality += vulnerabilityBonus
	}
	res.Quality = clamp01(res.Quality)

	return res
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
