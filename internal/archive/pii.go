package archive

import (
	"crypto/sha256"
	"fmt"
	"regexp"

	"github.com/rapportlabs/rapport/internal/relationship"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
)

// HashSubject returns the hex-encoded SHA-256 hash of a subject id so
// archives can be joined without carrying the raw identifier.
func HashSubject(subjectID string) string {
	h := sha256.Sum256([]byte(subjectID))
	return fmt.Sprintf("%x", h)
}

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE].
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = phoneRe.ReplaceAllString(text, "[PHONE]")
	return text
}

// ScrubEvents applies PII scrubbing to the free-text fields in-place.
func ScrubEvents(events []relationship.Event) {
	for i := range events {
		events[i].UserMessage = ScrubPII(events[i].UserMessage)
		events[i].Notes = ScrubPII(events[i].Notes)
	}
}
