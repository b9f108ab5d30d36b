// Package patterns detects recurring behavior patterns in a user's entry
// history: which pattern keys recur, which are strengths or weaknesses, and
// what the dominant emotional tendency is. Results are cached per user in
// the pattern store for cheap dashboard reads.
package patterns

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/ledger"
)

const (
	// maxSamples is how many example texts a pattern keeps.
	maxSamples = 5
	// sampleMaxLen truncates stored sample texts.
	sampleMaxLen = 100

	// strengthMinFrequency is how often a good pattern must recur to count
	// as a strength; weaknessMinFrequency likewise for bad patterns.
	strengthMinFrequency = 3
	weaknessMinFrequency = 2
)

// Summary is one detected pattern.
type Summary struct {
	Pattern     string
	Name        string
	Type        domain.KarmaType
	Frequency   int
	TotalImpact float64 // Signed cumulative score.
	FirstSeen   time.Time
	LastSeen    time.Time
	Samples     []string
}

// Analysis is the full pattern report for one user.
type Analysis struct {
	Patterns        []Summary
	Strengths       []Summary
	Weaknesses      []Summary
	DominantEmotion string
	Insights        []string
}

// Analyzer groups entries into patterns and persists the per-user cache.
type Analyzer struct {
	entries  ledger.EntryStore
	patterns ledger.PatternStore
	logger   *slog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(entries ledger.EntryStore, patterns ledger.PatternStore, logger *slog.Logger) *Analyzer {
	return &Analyzer{entries: entries, patterns: patterns, logger: logger}
}

// Analyze recomputes the user's patterns from the full entry history and
// upserts the cache rows. Deleted entries are excluded by the store.
func (a *Analyzer) Analyze(ctx context.Context, userID string) (*Analysis, error) {
	rows, err := a.entries.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}

	analysis := Detect(rows)

	existing, err := a.patterns.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading cached patterns: %w", err)
	}
	prior := make(map[string]domain.KarmaPattern, len(existing))
	for _, p := range existing {
		prior[p.Pattern] = p
	}

	now := time.Now().UTC()
	for _, s := range analysis.Patterns {
		row := domain.KarmaPattern{
			ID:          domain.NewID(),
			UserID:      userID,
			Pattern:     s.Pattern,
			Name:        s.Name,
			Type:        s.Type,
			Frequency:   s.Frequency,
			TotalImpact: s.TotalImpact,
			FirstSeen:   s.FirstSeen,
			LastSeen:    s.LastSeen,
			Samples:     s.Samples,
			UpdatedAt:   now,
		}
		// Preserve history across soft-deleted entries: the cached first
		// sighting never moves forward.
		if old, ok := prior[s.Pattern]; ok {
			row.ID = old.ID
			if !old.FirstSeen.IsZero() && old.FirstSeen.Before(row.FirstSeen) {
				row.FirstSeen = old.FirstSeen
			}
			if old.LastSeen.After(row.LastSeen) {
				row.LastSeen = old.LastSeen
			}
		}
		if err := a.patterns.Upsert(ctx, &row); err != nil {
			return nil, fmt.Errorf("caching pattern %q: %w", s.Pattern, err)
		}
	}

	a.logger.DebugContext(ctx, "patterns analyzed",
		slog.String("user_id", userID),
		slog.Int("patterns", len(analysis.Patterns)),
		slog.Int("strengths", len(analysis.Strengths)),
		slog.Int("weaknesses", len(analysis.Weaknesses)),
	)
	return analysis, nil
}

// Detect is the pure grouping step, exposed for reuse by Analyze and tests.
// Patterns are returned ordered by descending frequency, ties by key.
func Detect(entries []domain.KarmaEntry) *Analysis {
	groups := make(map[string]*Summary)
	for _, e := range entries {
		if e.Deleted {
			continue
		}
		key := e.Pattern
		if key == "" {
			key = "unknown"
		}
		g, ok := groups[key]
		if !ok {
			g = &Summary{Pattern: key, Name: humanize(key), FirstSeen: e.EntryDate, LastSeen: e.EntryDate}
			groups[key] = g
		}
		g.Frequency++
		g.TotalImpact += e.Score
		if e.EntryDate.Before(g.FirstSeen) {
			g.FirstSeen = e.EntryDate
		}
		if e.EntryDate.After(g.LastSeen) {
			g.LastSeen = e.EntryDate
		}
		if len(g.Samples) < maxSamples {
			g.Samples = append(g.Samples, truncate(e.Text, sampleMaxLen))
		}
	}

	analysis := &Analysis{DominantEmotion: "neutral"}
	for _, g := range groups {
		switch {
		case g.TotalImpact > 0:
			g.Type = domain.KarmaGood
		case g.TotalImpact < 0:
			g.Type = domain.KarmaBad
		default:
			g.Type = domain.KarmaNeutral
		}
		analysis.Patterns = append(analysis.Patterns, *g)
	}
	sort.Slice(analysis.Patterns, func(i, j int) bool {
		if analysis.Patterns[i].Frequency != analysis.Patterns[j].Frequency {
			return analysis.Patterns[i].Frequency > analysis.Patterns[j].Frequency
		}
		return analysis.Patterns[i].Pattern < analysis.Patterns[j].Pattern
	})

	for _, p := range analysis.Patterns {
		if p.Type == domain.KarmaGood && p.Frequency >= strengthMinFrequency {
			analysis.Strengths = append(analysis.Strengths, p)
		}
		if p.Type == domain.KarmaBad && p.Frequency >= weaknessMinFrequency {
			analysis.Weaknesses = append(analysis.Weaknesses, p)
		}
	}
	if len(analysis.Patterns) > 0 {
		analysis.DominantEmotion = analysis.Patterns[0].Pattern
	}

	analysis.Insights = buildInsights(analysis)
	return analysis
}

// buildInsights produces one line per strength and weakness plus an overall
// tendency line, so every detected pattern is named somewhere.
func buildInsights(a *Analysis) []string {
	var out []string
	for _, s := range a.Strengths {
		out = append(out, fmt.Sprintf("%s is a recurring strength: %d actions with a total impact of %+.0f.",
			s.Name, s.Frequency, s.TotalImpact))
	}
	for _, w := range a.Weaknesses {
		out = append(out, fmt.Sprintf("%s keeps recurring: %d actions costing %.0f points. Worth working on.",
			w.Name, w.Frequency, -w.TotalImpact))
	}
	if len(a.Patterns) > 0 {
		out = append(out, fmt.Sprintf("Your most frequent tendency is %s.", a.DominantEmotion))
	} else {
		out = append(out, "Not enough actions recorded yet to detect patterns.")
	}
	return out
}

func humanize(key string) string {
	if key == "" {
		return "Unknown"
	}
	b := []byte(key)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
