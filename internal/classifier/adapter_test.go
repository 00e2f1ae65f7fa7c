package classifier

import (
	"context"
	"errors"
	"testing"
)

type stubLLMClient struct {
	response string
	err      error
}

func (s *stubLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return LLMResponse{Text: s.response}, nil
}

func TestAdapterParsesLLMOutput(t *testing.T) {
	tests := []struct {
		name          string
		response      string
		wantSentiment Sentiment
		wantIntensity int
		wantFallback  bool
	}{
		{
			name:          "clean json",
			response:      `{"sentiment":"positive","intensity":7,"mood":"warm"}`,
			wantSentiment: SentimentPositive,
			wantIntensity: 7,
		},
		{
			name:          "json in code fence",
			response:      "```json\n{\"sentiment\":\"negative\",\"intensity\":4,\"hostile\":false}\n```",
			wantSentiment: SentimentNegative,
			wantIntensity: 4,
		},
		{
			name:          "uppercase sentiment normalized",
			response:      `{"sentiment":"Neutral","intensity":2}`,
			wantSentiment: SentimentNeutral,
			wantIntensity: 2,
		},
		{
			name:          "prose falls back to keywords",
			response:      "This message seems positive to me.",
			wantSentiment: SentimentNeutral,
			wantIntensity: 1,
			wantFallback:  true,
		},
		{
			name:          "out of range intensity falls back",
			response:      `{"sentiment":"positive","intensity":15}`,
			wantSentiment: SentimentNeutral,
			wantIntensity: 1,
			wantFallback:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(&stubLLMClient{response: tt.response}, "test-model", 0, nil)
			ev := a.Classify(context.Background(), "hello there", nil)
			if ev.Sentiment != tt.wantSentiment {
				t.Errorf("Sentiment = %v, want %v", ev.Sentiment, tt.wantSentiment)
			}
			if ev.Intensity != tt.wantIntensity {
				t.Errorf("Intensity = %d, want %d", ev.Intensity, tt.wantIntensity)
			}
			if ev.Fallback != tt.wantFallback {
				t.Errorf("Fallback = %v, want %v", ev.Fallback, tt.wantFallback)
			}
		})
	}
}

func TestAdapterLLMErrorUsesFallback(t *testing.T) {
	a := NewAdapter(&stubLLMClient{err: errors.New("boom")}, "test-model", 0, nil)
	ev := a.Classify(context.Background(), "I love you", nil)
	if !ev.Fallback {
		t.Fatal("expected fallback event")
	}
	if ev.Sentiment != SentimentPositive || ev.Intensity != 9 {
		t.Errorf("fallback event = %+v, want positive/9", ev)
	}
}

func TestAdapterNilLLMUsesFallback(t *testing.T) {
	a := NewAdapter(nil, "", 0, nil)
	ev := a.Classify(context.Background(), "ok", nil)
	if !ev.Fallback || !ev.Valid() {
		t.Fatalf("nil-LLM adapter should produce a valid fallback event, got %+v", ev)
	}
}

func TestFallbackLLMClient(t *testing.T) {
	primaryErr := errors.New("primary down")

	t.Run("primary succeeds", func(t *testing.T) {
		c := NewFallbackLLMClient(&stubLLMClient{response: "a"}, &stubLLMClient{response: "b"}, nil)
		resp, err := c.Complete(context.Background(), LLMRequest{})
		if err != nil || resp.Text != "a" {
			t.Fatalf("got (%q, %v), want (a, nil)", resp.Text, err)
		}
	})

	t.Run("fallback used on primary error", func(t *testing.T) {
		c := NewFallbackLLMClient(&stubLLMClient{err: primaryErr}, &stubLLMClient{response: "b"}, nil)
		resp, err := c.Complete(context.Background(), LLMRequest{})
		if err != nil || resp.Text != "b" {
			t.Fatalf("got (%q, %v), want (b, nil)", resp.Text, err)
		}
	})

	t.Run("no fallback returns primary error", func(t *testing.T) {
		c := NewFallbackLLMClient(&stubLLMClient{err: primaryErr}, nil, nil)
		if _, err := c.Complete(context.Background(), LLMRequest{}); !errors.Is(err, primaryErr) {
			t.Fatalf("err = %v, want primary error", err)
		}
	})
}
