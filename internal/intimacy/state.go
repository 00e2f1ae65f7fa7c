package intimacy

import "time"

// VulnerabilityWindow is how long a vulnerable exchange stays open without
// a new vulnerable message.
const VulnerabilityWindow = 30 * time.Minute

// State is the rolling behavioral window for one subject. It decays and
// refreshes per inbound message; the durable relational record lives in the
// relationship package.
type State struct {
	SubjectID string `json:"subjectId"`

	RecentToneModifier          float64    `json:"recentToneModifier"` // -0.5..0.5
	VulnerabilityExchangeActive bool       `json:"vulnerabilityExchangeActive"`
	LastVulnerabilityAt         *time.Time `json:"lastVulnerabilityAt,omitempty"`
	LowEffortStreak             int        `json:"lowEffortStreak"`
	RecentQuality               float64    `json:"recentQuality"` // 0..1, EMA

	UpdatedAt time.Time `json:"updatedAt"`
}

// NewState returns the neutral starting window.
func NewState(subjectID string, now time.Time) State {
	return State{
		SubjectID:     subjectID,
		RecentQuality: 0.5,
		UpdatedAt:     now,
	}
}

// vulnerabilityActive reports whether the window is still open at now.
func (s State) vulnerabilityActive(now time.Time) bool {
	if !s.VulnerabilityExchangeActive || s.LastVulnerabilityAt == nil {
		return false
	}
	return now.Sub(*s.LastVulnerabilityAt) <= VulnerabilityWindow
}
