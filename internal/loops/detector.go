package loops

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rapportlabs/rapport/internal/classifier"
	"github.com/rapportlabs/rapport/pkg/logging"
)

const detectSystemPrompt = `You extract follow-up threads from a user's message.
Return ONLY a JSON array (possibly empty). Each element:
{
  "loopType": "pending_event" | "emotional_followup" | "commitment_check" | "curiosity_thread",
  "topic": "<2-6 word noun phrase>",
  "triggerContext": "<the sentence that triggered this>",
  "suggestedFollowup": "<a natural question to ask later>",
  "salience": <0.0-1.0>
}
Only extract things genuinely worth circling back to. No markdown, no commentary.`

// Detection is one candidate loop extracted from a turn.
type Detection struct {
	LoopType          LoopType `json:"loopType"`
	Topic             string   `json:"topic"`
	TriggerContext    string   `json:"triggerContext,omitempty"`
	SuggestedFollowup string   `json:"suggestedFollowup,omitempty"`
	Salience          float64  `json:"salience"`
}

// Fallback extraction patterns. Deliberately high-precision: a missed loop
// costs nothing, a bogus one gets surfaced to the user.
var (
	commitmentRe = regexp.MustCompile(`(?i)\bi('ll| will| promise to|'m going to| am going to)\s+([a-z][a-z0-9' ]{3,60})`)
	eventRe      = regexp.MustCompile(`(?i)\b(tomorrow|tonight|this (weekend|friday|saturday|sunday)|next (week|month|monday|tuesday|wednesday|thursday|friday|saturday|sunday))\b[^.!?]*\b(interview|party|parties|meeting|appointment|exam|test|date|trip|flight|presentation|wedding|concert|surgery|recital)\b`)
	eventRevRe   = regexp.MustCompile(`(?i)\b(interview|party|parties|meeting|appointment|exam|test|date|trip|flight|presentation|wedding|concert|surgery|recital)\b[^.!?]*\b(tomorrow|tonight|this (weekend|friday|saturday|sunday)|next (week|month|monday|tuesday|wednesday|thursday|friday|saturday|sunday))\b`)
	worryRe      = regexp.MustCompile(`(?i)\bi('m| am| have been| was)\s+(so\s+|really\s+|pretty\s+)?(worried|nervous|anxious|scared|stressed|sad|upset)\s+(about|over)\s+([a-z][a-z0-9' ]{2,60})`)
	curiosityRe  = regexp.MustCompile(`(?i)\bi('ve| have)?\s*been\s+(thinking|wondering|curious)\s+about\s+([a-z][a-z0-9' ]{2,60})`)
)

// Detector finds new open loops in a turn. The primary path asks the LLM;
// any failure degrades to the regex extractor, which never fails.
type Detector struct {
	llm     classifier.LLMClient
	model   string
	timeout time.Duration
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewDetector builds a Detector. llm may be nil, which pins the detector to
// the regex path.
func NewDetector(llm classifier.LLMClient, model string, timeout time.Duration, logger *logging.Logger) *Detector {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Detector{
		llm:     llm,
		model:   model,
		timeout: timeout,
		logger:  logger,
		tracer:  otel.Tracer("rapport.internal.loops"),
	}
}

// Detect extracts loop candidates from the message.
func (d *Detector) Detect(ctx context.Context, message string) []Detection {
	ctx, span := d.tracer.Start(ctx, "loops.detect")
	defer span.End()

	if d.llm != nil {
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		resp, err := d.llm.Complete(ctx, classifier.LLMRequest{
			Model:  d.model,
			System: []string{detectSystemPrompt},
			Messages: []classifier.ChatMessage{
				{Role: classifier.ChatRoleUser, Content: message},
			},
			MaxTokens:   512,
			Temperature: 0,
		})
		if err == nil {
			if detections, ok := parseDetections(resp.Text); ok {
				span.SetAttributes(attribute.Int("loops.detected", len(detections)))
				return detections
			}
			d.logger.Warn("loop detection returned unparsable output, using pattern fallback")
		} else {
			d.logger.Warn("loop detection llm call failed, using pattern fallback", "error", err)
		}
		span.SetAttributes(attribute.Bool("loops.fallback", true))
	}

	return DetectPatterns(message)
}

func parseDetections(raw string) ([]Detection, bool) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	var out []Detection
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return nil, false
	}
	valid := out[:0]
	for _, det := range out {
		if det.Topic == "" {
			continue
		}
		switch det.LoopType {
		case TypePendingEvent, TypeEmotionalFollowup, TypeCommitmentCheck, TypeCuriosityThread:
		default:
			continue
		}
		if det.Salience <= 0 || det.Salience > 1 {
			det.Salience = defaultSalience
		}
		valid = append(valid, det)
	}
	return valid, true
}

// DetectPatterns is the deterministic fallback extractor.
func DetectPatterns(message string) []Detection {
	var out []Detection

	if m := eventRe.FindString(message); m != "" {
		out = append(out, eventDetection(m))
	} else if m := eventRevRe.FindString(message); m != "" {
		out = append(out, eventDetection(m))
	}

	if m := worryRe.FindStringSubmatch(message); m != nil {
		topic := strings.TrimSpace(m[len(m)-1])
		out = append(out, Detection{
			LoopType:          TypeEmotionalFollowup,
			Topic:             topic,
			TriggerContext:    strings.TrimSpace(m[0]),
			SuggestedFollowup: "Ask how they are feeling about " + topic + " now.",
			Salience:          0.7,
		})
	}

	if m := commitmentRe.FindStringSubmatch(message); m != nil {
		topic := strings.TrimSpace(m[2])
		out = append(out, Detection{
			LoopType:          TypeCommitmentCheck,
			Topic:             topic,
			TriggerContext:    strings.TrimSpace(m[0]),
			SuggestedFollowup: "Check whether they followed through on " + topic + ".",
			Salience:          0.5,
		})
	}

	if m := curiosityRe.FindStringSubmatch(message); m != nil {
		topic := strings.TrimSpace(m[len(m)-1])
		out = append(out, Detection{
			LoopType:          TypeCuriosityThread,
			Topic:             topic,
			TriggerContext:    strings.TrimSpace(m[0]),
			SuggestedFollowup: "Pick the thread about " + topic + " back up.",
			Salience:          0.4,
		})
	}

	return out
}

func eventDetection(match string) Detection {
	return Detection{
		LoopType:          TypePendingEvent,
		Topic:             strings.TrimSpace(match),
		TriggerContext:    strings.TrimSpace(match),
		SuggestedFollowup: "Ask how it went.",
		Salience:          0.6,
	}
}
