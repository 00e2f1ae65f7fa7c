// Package persona serves the persona's static opinion list: topics the
// character holds a stance on, loaded from a JSON file on disk. The parsed
// list sits behind a short TTL cache so edits to the file show up without a
// restart, while the hot path stays off the filesystem.
package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rapportlabs/rapport/internal/cache"
	"github.com/rapportlabs/rapport/internal/loops"
)

// Opinion is one held stance. Strength runs 0-1; stronger opinions are worth
// volunteering, weak ones only come up if asked.
type Opinion struct {
	Topic    string  `json:"topic"`
	Stance   string  `json:"stance"`
	Strength float64 `json:"strength"`
}

const cacheKey = "opinions"

// Library loads and serves the opinion list.
type Library struct {
	path    string
	matcher loops.TopicMatcher
	cache   *cache.TTL[[]Opinion]
}

// NewLibrary builds a Library over the JSON file at path. A short ttl keeps
// reads cheap; zero picks a sane default.
func NewLibrary(path string, matcher loops.TopicMatcher, ttl time.Duration) *Library {
	if matcher == nil {
		matcher = loops.FuzzyMatcher{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Library{
		path:    path,
		matcher: matcher,
		cache:   cache.New[[]Opinion](ttl),
	}
}

// WithClock overrides the cache clock, for tests.
func (l *Library) WithClock(now func() time.Time) *Library {
	l.cache.WithClock(now)
	return l
}

// Enabled reports whether a library is configured at all. Nil-safe.
func (l *Library) Enabled() bool {
	return l != nil && l.path != ""
}

// All returns the full parsed opinion list.
func (l *Library) All() ([]Opinion, error) {
	if !l.Enabled() {
		return nil, nil
	}
	return l.cache.GetOrLoad(cacheKey, l.load)
}

// Lookup finds the persona's stance on a topic, if it holds one. Matching
// uses the same fuzzy topic equivalence as the loop tracker. Errors reading
// the list degrade to "no opinion".
func (l *Library) Lookup(topic string) (Opinion, bool) {
	opinions, err := l.All()
	if err != nil {
		return Opinion{}, false
	}
	best := Opinion{}
	found := false
	for _, op := range opinions {
		if !l.matcher.Equivalent(op.Topic, topic) {
			continue
		}
		if !found || op.Strength > best.Strength {
			best = op
			found = true
		}
	}
	return best, found
}

func (l *Library) load() ([]Opinion, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("persona: read opinions: %w", err)
	}
	var opinions []Opinion
	if err := json.Unmarshal(raw, &opinions); err != nil {
		return nil, fmt.Errorf("persona: parse opinions: %w", err)
	}
	valid := opinions[:0]
	for _, op := range opinions {
		if op.Topic == "" || op.Stance == "" {
			continue
		}
		if op.Strength <= 0 || op.Strength > 1 {
			op.Strength = 0.5
		}
		valid = append(valid, op)
	}
	return valid, nil
}
