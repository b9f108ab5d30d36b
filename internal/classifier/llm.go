package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sattvalabs/karmika/internal/domain"
)

const classifySystemPrompt = `You classify a person's self-reported action for a karma journal.
Respond with a single JSON object and nothing else, using exactly these fields:
{
  "type": "good" | "bad" | "neutral",
  "weight": <number, positive for good, negative for bad, 0 for neutral>,
  "pattern": "<one lowercase word naming the behavior pattern, e.g. kindness, anger>",
  "category": "<virtue | vice | neutral>",
  "confidence": <number 0-100>,
  "emotion": "<one lowercase word for the dominant emotion>",
  "reasoning": "<one short sentence>"
}`

func buildClassifyPrompt(text string) string {
	return fmt.Sprintf("Classify this action:\n\n%s", text)
}

// llmClassification is the exact wire shape expected from the model.
type llmClassification struct {
	Type       string  `json:"type"`
	Weight     float64 `json:"weight"`
	Pattern    string  `json:"pattern"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Emotion    string  `json:"emotion"`
	Reasoning  string  `json:"reasoning"`
}

var errEmptyLLMResponse = errors.New("empty response")

// parseLLMClassification decodes the model output strictly. Unknown fields,
// invalid types, or a weight sign that contradicts the type all fail, which
// sends the caller to the heuristic tier.
func parseLLMClassification(text string) (*Result, error) {
	raw := extractJSONObject(text)
	if raw == "" {
		return nil, errEmptyLLMResponse
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	var c llmClassification
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding classification: %w", err)
	}

	kt := domain.KarmaType(c.Type)
	if !kt.Valid() {
		return nil, fmt.Errorf("invalid type %q", c.Type)
	}
	switch {
	case kt == domain.KarmaGood && c.Weight <= 0:
		return nil, fmt.Errorf("good classification with non-positive weight %v", c.Weight)
	case kt == domain.KarmaBad && c.Weight >= 0:
		return nil, fmt.Errorf("bad classification with non-negative weight %v", c.Weight)
	case kt == domain.KarmaNeutral && c.Weight != 0:
		return nil, fmt.Errorf("neutral classification with non-zero weight %v", c.Weight)
	}
	if c.Confidence < 0 || c.Confidence > 100 {
		return nil, fmt.Errorf("confidence %v out of range", c.Confidence)
	}

	pattern := strings.ToLower(strings.TrimSpace(c.Pattern))
	if pattern == "" {
		pattern = "unknown"
	}
	emotion := strings.ToLower(strings.TrimSpace(c.Emotion))
	if emotion == "" {
		emotion = "neutral"
	}

	return &Result{
		Type:       kt,
		Weight:     c.Weight,
		Pattern:    pattern,
		Category:   c.Category,
		Confidence: c.Confidence,
		Emotion:    emotion,
		Reasoning:  c.Reasoning,
		Source:     domain.SourceLLM,
	}, nil
}

// extractJSONObject returns the first top-level JSON object in the text,
// tolerating markdown code fences around it.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}
