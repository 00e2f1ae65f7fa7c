package classifier

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rapportlabs/rapport/pkg/logging"
)

const classifySystemPrompt = `You judge the emotional weight of one chat message sent to a companion persona.
Respond with strict JSON only, no prose:
{"sentiment":"positive|neutral|negative","intensity":1-10,"mood":"<one word>","reasoning":"<short>","hostile":true|false}
"hostile" is true only for direct contempt, threats, or abuse aimed at the persona.`

const maxHistoryMessages = 8

// Adapter turns a message plus recent context into a ClassifiedEvent.
// The primary path delegates to an injected LLM; every failure mode
// (error, timeout, unparsable output) degrades to the keyword fallback,
// so Classify never fails.
type Adapter struct {
	llm      LLMClient
	keywords *KeywordClassifier
	model    string
	timeout  time.Duration
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewAdapter builds an Adapter. llm may be nil, in which case every message
// takes the deterministic path.
func NewAdapter(llm LLMClient, model string, timeout time.Duration, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Adapter{
		llm:      llm,
		keywords: NewKeywordClassifier(),
		model:    model,
		timeout:  timeout,
		logger:   logger,
		tracer:   otel.Tracer("rapport.internal.classifier"),
	}
}

// Classify judges one message. recentHistory is ordered oldest-first and
// may be empty.
func (a *Adapter) Classify(ctx context.Context, message string, recentHistory []ChatMessage) ClassifiedEvent {
	ctx, span := a.tracer.Start(ctx, "classifier.classify")
	defer span.End()

	if a.llm == nil {
		ev := a.keywords.Classify(message)
		span.SetAttributes(attribute.Bool("classifier.fallback", true))
		return ev
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	history := recentHistory
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	messages := make([]ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: message})

	resp, err := a.llm.Complete(ctx, LLMRequest{
		Model:       a.model,
		System:      []string{classifySystemPrompt},
		Messages:    messages,
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		span.RecordError(err)
		a.logger.Warn("classifier LLM failed, using keyword fallback", "error", err)
		return a.keywords.Classify(message)
	}

	ev, ok := parseClassification(resp.Text)
	if !ok {
		a.logger.Warn("classifier returned unparsable output, using keyword fallback",
			"output_len", len(resp.Text))
		return a.keywords.Classify(message)
	}

	span.SetAttributes(
		attribute.String("classifier.sentiment", string(ev.Sentiment)),
		attribute.Int("classifier.intensity", ev.Intensity),
		attribute.Bool("classifier.fallback", false),
	)
	return ev
}

// parseClassification extracts the first JSON object from raw model output
// and validates it. Models occasionally wrap JSON in code fences or prose.
func parseClassification(text string) (ClassifiedEvent, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ClassifiedEvent{}, false
	}

	var ev ClassifiedEvent
	if err := json.Unmarshal([]byte(text[start:end+1]), &ev); err != nil {
		return ClassifiedEvent{}, false
	}
	ev.Sentiment = Sentiment(strings.ToLower(string(ev.Sentiment)))
	if !ev.Valid() {
		return ClassifiedEvent{}, false
	}
	return ev, true
}
