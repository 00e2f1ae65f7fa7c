package loops

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapportlabs/rapport/internal/classifier"
)

type stubLLM struct {
	text string
	err  error
}

func (s *stubLLM) Complete(_ context.Context, _ classifier.LLMRequest) (classifier.LLMResponse, error) {
	if s.err != nil {
		return classifier.LLMResponse{}, s.err
	}
	return classifier.LLMResponse{Text: s.text}, nil
}

func TestDetectParsesLLMOutput(t *testing.T) {
	llm := &stubLLM{text: `Here you go:
[{"loopType":"pending_event","topic":"job interview","triggerContext":"I have a job interview tomorrow","suggestedFollowup":"Ask how the interview went.","salience":0.8}]`}
	d := NewDetector(llm, "model-id", time.Second, nil)

	out := d.Detect(context.Background(), "I have a job interview tomorrow, wish me luck")
	require.Len(t, out, 1)
	assert.Equal(t, TypePendingEvent, out[0].LoopType)
	assert.Equal(t, "job interview", out[0].Topic)
	assert.Equal(t, 0.8, out[0].Salience)
}

func TestDetectSkipsInvalidElements(t *testing.T) {
	llm := &stubLLM{text: `[
		{"loopType":"pending_event","topic":"","salience":0.8},
		{"loopType":"grudge","topic":"something","salience":0.5},
		{"loopType":"curiosity_thread","topic":"pottery","salience":7.0}
	]`}
	d := NewDetector(llm, "model-id", time.Second, nil)

	out := d.Detect(context.Background(), "whatever")
	require.Len(t, out, 1)
	assert.Equal(t, "pottery", out[0].Topic)
	assert.Equal(t, defaultSalience, out[0].Salience, "out-of-range salience resets to default")
}

func TestDetectFallsBackOnLLMError(t *testing.T) {
	llm := &stubLLM{err: errors.New("throttled")}
	d := NewDetector(llm, "model-id", time.Second, nil)

	out := d.Detect(context.Background(), "I have a big interview tomorrow")
	require.Len(t, out, 1)
	assert.Equal(t, TypePendingEvent, out[0].LoopType)
}

func TestDetectFallsBackOnGarbage(t *testing.T) {
	llm := &stubLLM{text: "sure! here are some thoughts about your message..."}
	d := NewDetector(llm, "model-id", time.Second, nil)

	out := d.Detect(context.Background(), "I'll call the landlord this week")
	require.Len(t, out, 1)
	assert.Equal(t, TypeCommitmentCheck, out[0].LoopType)
}

func TestDetectPatterns(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantType LoopType
		want     bool
	}{
		{"upcoming event", "my sister's wedding is next month", TypePendingEvent, true},
		{"event first", "tomorrow is the big presentation at work", TypePendingEvent, true},
		{"worry", "honestly I'm really worried about my mom's surgery", TypeEmotionalFollowup, true},
		{"commitment", "I'll sign up for the gym on Monday", TypeCommitmentCheck, true},
		{"curiosity", "I've been thinking about learning the piano", TypeCuriosityThread, true},
		{"nothing", "nice weather today", "", false},
		{"plain question", "how are you doing?", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := DetectPatterns(tt.message)
			if !tt.want {
				assert.Empty(t, out)
				return
			}
			require.NotEmpty(t, out)
			assert.Equal(t, tt.wantType, out[0].LoopType)
			assert.NotEmpty(t, out[0].Topic)
			assert.NotEmpty(t, out[0].SuggestedFollowup)
		})
	}
}

func TestDetectNilLLMUsesPatterns(t *testing.T) {
	d := NewDetector(nil, "", 0, nil)
	out := d.Detect(context.Background(), "I'm nervous about the exam next week")
	require.NotEmpty(t, out)
}
