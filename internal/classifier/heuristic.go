package classifier

import (
	"fmt"
	"math"
	"strings"

	"github.com/sattvalabs/karmika/internal/domain"
)

// Sentiment vocabularies for the tier-three heuristic. Each group maps to the
// emotion reported when it dominates the match count.
var positiveGroups = []struct {
	emotion string
	words   []string
}{
	{"kindness", []string{"kind", "nice", "care", "love", "gentle", "comfort", "compassion", "help"}},
	{"discipline", []string{"exercise", "study", "practice", "focus", "early", "routine", "finish"}},
	{"generosity", []string{"gave", "give", "donate", "share", "gift", "charity"}},
	{"mindfulness", []string{"meditate", "calm", "peace", "mindful", "grateful", "patient"}},
}

var negativeGroups = []struct {
	emotion string
	words   []string
}{
	{"anger", []string{"angry", "hate", "yell", "shout", "fight", "rude", "hurt", "insult"}},
	{"laziness", []string{"lazy", "procrastinate", "skip", "late", "avoid", "waste", "oversleep"}},
	{"dishonesty", []string{"lie", "lied", "cheat", "steal", "stole", "deceive", "fake"}},
	{"ego", []string{"brag", "boast", "selfish", "arrogant", "jealous", "mock", "belittle"}},
}

// classifyHeuristic is tier three: a fixed sentiment word count. It always
// produces a result.
func classifyHeuristic(text string) *Result {
	normalized := normalize(text)

	posCount, posEmotion := countSignals(normalized, positiveGroups)
	negCount, negEmotion := countSignals(normalized, negativeGroups)

	switch {
	case posCount > negCount:
		if posEmotion == "" {
			posEmotion = "kindness"
		}
		return &Result{
			Type:       domain.KarmaGood,
			Weight:     float64(10 + 5*posCount),
			Pattern:    posEmotion,
			Category:   "virtue",
			Confidence: math.Min(100, float64(60+10*posCount)),
			Emotion:    posEmotion,
			Reasoning:  fmt.Sprintf("heuristic: %d positive signal(s) against %d negative", posCount, negCount),
			Source:     domain.SourceHeuristic,
		}
	case negCount > posCount:
		if negEmotion == "" {
			negEmotion = "negative"
		}
		return &Result{
			Type:       domain.KarmaBad,
			Weight:     -float64(10 + 5*negCount),
			Pattern:    negEmotion,
			Category:   "vice",
			Confidence: math.Min(100, float64(60+10*negCount)),
			Emotion:    negEmotion,
			Reasoning:  fmt.Sprintf("heuristic: %d negative signal(s) against %d positive", negCount, posCount),
			Source:     domain.SourceHeuristic,
		}
	default:
		return &Result{
			Type:       domain.KarmaNeutral,
			Weight:     0,
			Pattern:    "unknown",
			Category:   "neutral",
			Confidence: 50,
			Emotion:    "neutral",
			Reasoning:  "heuristic: no dominant sentiment",
			Source:     domain.SourceHeuristic,
		}
	}
}

// countSignals returns the total word matches across all groups and the
// emotion of the group with the most matches. Earlier groups win ties.
func countSignals(normalized string, groups []struct {
	emotion string
	words   []string
}) (int, string) {
	total := 0
	best := 0
	emotion := ""
	for _, g := range groups {
		n := 0
		for _, w := range g.words {
			if strings.Contains(normalized, w) {
				n++
			}
		}
		total += n
		if n > best {
			best = n
			emotion = g.emotion
		}
	}
	return total, emotion
}
