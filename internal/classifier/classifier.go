// Package classifier turns free-text action descriptions into karma
// classifications. Three tiers run in order: keyword rules, an optional LLM,
// and a built-in heuristic. A classification request never fails once the
// rule snapshot is loaded; lower tiers absorb upper-tier errors.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/ledger"
	"github.com/sattvalabs/karmika/internal/llm"
	"github.com/sattvalabs/karmika/internal/rules"
)

// minRuleMatchScore is the keyword overlap a rule must reach to win tier one.
const minRuleMatchScore = 0.3

// DefaultLLMTimeout bounds a single tier-two call.
const DefaultLLMTimeout = 30 * time.Second

// Result is one classification outcome, independent of persistence.
type Result struct {
	Type        domain.KarmaType
	Weight      float64 // Signed base score. Negative for bad actions.
	Pattern     string
	Category    string
	Confidence  float64 // 0–100.
	Emotion     string
	Reasoning   string
	Source      domain.ClassificationSource
	Provider    string // Set only when Source is llm.
	Suggestions []string
}

// Metrics is the optional observation hook. A nil Metrics disables recording.
type Metrics interface {
	ObserveClassification(source, karmaType string)
}

// Classifier runs the tiered classification pipeline.
type Classifier struct {
	rules      rules.Source
	habits     ledger.HabitStore
	provider   llm.Provider // nil disables tier two.
	llmTimeout time.Duration
	metrics    Metrics
	logger     *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithProvider enables the LLM tier.
func WithProvider(p llm.Provider) Option {
	return func(c *Classifier) { c.provider = p }
}

// WithLLMTimeout overrides the per-call LLM deadline.
func WithLLMTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.llmTimeout = d
		}
	}
}

// WithMetrics attaches an observation hook.
func WithMetrics(m Metrics) Option {
	return func(c *Classifier) { c.metrics = m }
}

// New creates a Classifier. The habit store may be nil; built-in suggestion
// defaults are used when no catalog entry exists.
func New(ruleSource rules.Source, habits ledger.HabitStore, logger *slog.Logger, opts ...Option) *Classifier {
	c := &Classifier{
		rules:      ruleSource,
		habits:     habits,
		llmTimeout: DefaultLLMTimeout,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify runs the tiers in order and returns the first conclusive result.
// Only a rule snapshot failure is surfaced as an error.
func (c *Classifier) Classify(ctx context.Context, text string) (*Result, error) {
	snapshot, err := c.rules.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("classifying action: %w", err)
	}

	res := c.matchRules(text, snapshot)
	if res == nil && c.provider != nil {
		res = c.classifyLLM(ctx, text)
	}
	if res == nil {
		res = classifyHeuristic(text)
	}

	res.Suggestions = c.resolveSuggestions(ctx, res.Pattern)
	if c.metrics != nil {
		c.metrics.ObserveClassification(string(res.Source), string(res.Type))
	}
	return res, nil
}

// matchRules is tier one. Each rule scores as the fraction of its keywords
// present in the normalized text; the best rule above the threshold wins.
// Ties break by higher absolute weight, then pattern key, so repeated calls
// with the same snapshot are deterministic.
func (c *Classifier) matchRules(text string, snapshot []domain.WeightRule) *Result {
	normalized := normalize(text)
	if normalized == "" {
		return nil
	}

	type candidate struct {
		rule  domain.WeightRule
		score float64
		found int
	}
	var candidates []candidate
	for _, r := range snapshot {
		if len(r.Keywords) == 0 {
			continue
		}
		found := 0
		for _, kw := range r.Keywords {
			if strings.Contains(normalized, strings.ToLower(kw)) {
				found++
			}
		}
		score := float64(found) / float64(len(r.Keywords))
		if score > minRuleMatchScore {
			candidates = append(candidates, candidate{rule: r, score: score, found: found})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		wi, wj := math.Abs(candidates[i].rule.Weight), math.Abs(candidates[j].rule.Weight)
		if wi != wj {
			return wi > wj
		}
		return candidates[i].rule.Pattern < candidates[j].rule.Pattern
	})

	best := candidates[0]
	return &Result{
		Type:       best.rule.Type,
		Weight:     best.rule.Weight,
		Pattern:    best.rule.Pattern,
		Category:   best.rule.Category,
		Confidence: math.Min(100, math.Round(best.score*100+50)),
		Emotion:    best.rule.Pattern,
		Reasoning: fmt.Sprintf("matched rule %q (%d of %d keywords)",
			best.rule.Name, best.found, len(best.rule.Keywords)),
		Source: domain.SourceRule,
	}
}

// classifyLLM is tier two. Any failure is logged and swallowed; callers fall
// through to the heuristic.
func (c *Classifier) classifyLLM(ctx context.Context, text string) *Result {
	ctx, cancel := context.WithTimeout(ctx, c.llmTimeout)
	defer cancel()

	resp, err := c.provider.Complete(ctx, &llm.Request{
		SystemPrompt: classifySystemPrompt,
		UserPrompt:   buildClassifyPrompt(text),
	})
	if err != nil {
		c.logger.WarnContext(ctx, "llm classification failed, falling back to heuristic",
			slog.String("provider", c.provider.Name()),
			slog.Any("error", err),
		)
		return nil
	}

	res, err := parseLLMClassification(resp.Text)
	if err != nil {
		c.logger.WarnContext(ctx, "llm returned unusable classification, falling back to heuristic",
			slog.String("provider", c.provider.Name()),
			slog.Any("error", err),
		)
		return nil
	}
	res.Provider = c.provider.Name()
	return res
}

// defaultSuggestions is the fallback when the catalog has nothing for a
// pattern key.
func defaultSuggestions() []string {
	return []string{
		"Reflect on this action for a few minutes this evening",
		"Set one small, concrete improvement goal for tomorrow",
	}
}

func (c *Classifier) resolveSuggestions(ctx context.Context, pattern string) []string {
	if c.habits == nil || pattern == "" {
		return defaultSuggestions()
	}
	rows, err := c.habits.ListActiveByPattern(ctx, pattern)
	if err != nil {
		c.logger.WarnContext(ctx, "habit lookup failed, using defaults",
			slog.String("pattern", pattern), slog.Any("error", err))
		return defaultSuggestions()
	}
	if len(rows) == 0 {
		return defaultSuggestions()
	}
	titles := make([]string, 0, len(rows))
	for _, h := range rows {
		titles = append(titles, h.Title)
		if len(titles) == 3 {
			break
		}
	}
	return titles
}

// normalize lowercases the text and collapses punctuation to spaces so
// keyword containment checks behave uniformly.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
