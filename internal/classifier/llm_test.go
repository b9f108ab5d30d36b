package classifier

import (
	"testing"

	"github.com/sattvalabs/karmika/internal/domain"
)

func TestParseLLMClassification_Valid(t *testing.T) {
	res, err := parseLLMClassification(`{"type":"good","weight":25,"pattern":"Helping","category":"virtue","confidence":90,"emotion":"Kindness","reasoning":"Helped a stranger."}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Type != domain.KarmaGood || res.Weight != 25 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Pattern != "helping" || res.Emotion != "kindness" {
		t.Errorf("expected lowercased labels, got %+v", res)
	}
	if res.Source != domain.SourceLLM {
		t.Errorf("expected llm source, got %q", res.Source)
	}
}

func TestParseLLMClassification_CodeFence(t *testing.T) {
	text := "```json\n{\"type\":\"neutral\",\"weight\":0,\"pattern\":\"\",\"category\":\"neutral\",\"confidence\":50,\"emotion\":\"\",\"reasoning\":\"Routine.\"}\n```"
	res, err := parseLLMClassification(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Pattern != "unknown" || res.Emotion != "neutral" {
		t.Errorf("expected defaulted labels, got %+v", res)
	}
}

func TestParseLLMClassification_Rejects(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no json", "I cannot help with that."},
		{"unknown field", `{"type":"good","weight":10,"confidence":50,"extra":true}`},
		{"invalid type", `{"type":"great","weight":10,"confidence":50}`},
		{"sign mismatch good", `{"type":"good","weight":-10,"confidence":50}`},
		{"sign mismatch bad", `{"type":"bad","weight":10,"confidence":50}`},
		{"nonzero neutral", `{"type":"neutral","weight":5,"confidence":50}`},
		{"confidence out of range", `{"type":"good","weight":10,"confidence":150}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseLLMClassification(tt.text); err == nil {
				t.Errorf("expected rejection for %q", tt.text)
			}
		})
	}
}
