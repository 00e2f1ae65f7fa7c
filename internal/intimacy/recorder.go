package intimacy

import (
	"time"

	"github.com/rapportlabs/rapport/internal/quality"
)

// RecordMessage folds one inbound message into the rolling window. Pure:
// callers persist the returned state.
func RecordMessage(state State, message string, now time.Time) (State, quality.Result) {
	res := quality.Analyze(message)

	if res.IsLowEffort {
		state.LowEffortStreak++
	} else {
		state.LowEffortStreak = 0
	}

	state.RecentQuality = clamp(0.7*state.RecentQuality+0.3*res.Quality, 0, 1)

	if res.IsVulnerable {
		t := now
		state.LastVulnerabilityAt = &t
		state.VulnerabilityExchangeActive = true
	} else if !state.vulnerabilityActive(now) {
		state.VulnerabilityExchangeActive = false
	}

	// Nudge the tone modifier toward this message's tone with 0.8 inertia.
	target := (res.Quality - 0.5) * 0.2
	state.RecentToneModifier = clamp(0.8*state.RecentToneModifier+0.2*target, -0.5, 0.5)

	state.UpdatedAt = now
	return state, res
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
