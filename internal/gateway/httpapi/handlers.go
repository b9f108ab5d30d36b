package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jkaninda/okapi"

	"github.com/sattvalabs/karmika/internal/domain"
	"github.com/sattvalabs/karmika/internal/engine"
	"github.com/sattvalabs/karmika/internal/habits"
	"github.com/sattvalabs/karmika/internal/patterns"
	"github.com/sattvalabs/karmika/internal/scoring"
	"github.com/sattvalabs/karmika/internal/streak"
)

// --- Actions ---

// RecordActionRequest is the JSON body for POST /v1/actions.
type RecordActionRequest struct {
	Text           string     `json:"text"`
	SelfAssessment string     `json:"self_assessment,omitempty"` // Optional: good, bad, or neutral.
	EntryDate      *time.Time `json:"entry_date,omitempty"`      // Optional, defaults to now.
}

// EntryResponse is one recorded action.
type EntryResponse struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	Type           string    `json:"type"`
	Score          float64   `json:"score"`
	Category       string    `json:"category,omitempty"`
	Pattern        string    `json:"pattern,omitempty"`
	Confidence     float64   `json:"confidence"`
	Emotion        string    `json:"emotion,omitempty"`
	Reasoning      string    `json:"reasoning,omitempty"`
	Source         string    `json:"source"`
	Provider       string    `json:"provider,omitempty"`
	Suggestions    []string  `json:"suggestions,omitempty"`
	SelfAssessment string    `json:"self_assessment,omitempty"`
	EntryDate      time.Time `json:"entry_date"`
}

func (g *Gateway) handleRecordAction(c *okapi.Context) error {
	userID, err := g.requireSelf(c)
	if err != nil {
		return err
	}

	var req RecordActionRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}

	in := engine.RecordActionInput{
		UserID:         userID,
		Text:           req.Text,
		SelfAssessment: req.SelfAssessment,
	}
	if req.EntryDate != nil {
		in.EntryDate = *req.EntryDate
	}

	entry, err := g.engine.RecordAction(c.Context(), in)
	if err != nil {
		return g.engineError(c, err)
	}

	return c.JSON(http.StatusCreated, toEntryResponse(entry))
}

func (g *Gateway) handleEntries(c *okapi.Context) error {
	userID, err := g.requireSelf(c)
	if err != nil {
		return err
	}

	entries, err := g.engine.Entries(c.Context(), userID)
	if err != nil {
		return g.engineError(c, err)
	}

	out := make([]EntryResponse, len(entries))
	for i := range entries {
		out[i] = toEntryResponse(&entries[i])
	}
	return c.OK(out)
}

func (g *Gateway) handleDeleteEntry(c *okapi.Context) error {
	userID, err := g.requireSelf(c)
	if err != nil {
		return err
	}

	entryID, err := uuid.Parse(c.Param("entryID"))
	if err != nil {
		return c.AbortBadRequest("invalid entry ID")
	}

	if err := g.engine.DeleteEntry(c.Context(), userID, entryID); err != nil {
		return g.engineError(c, err)
	}
	return c.OK(map[string]string{"status": "deleted"})
}

// --- Scores ---

// ScoreResponse is the all-time aggregate for GET /v1/users/{id}/score.
type ScoreResponse struct {
	KarmaScore   float64 `json:"karma_score"`
	RawScore     float64 `json:"raw_score"`
	GoodCount    int     `json:"good_count"`
	BadCount     int     `json:"bad_count"`
	NeutralCount int     `json:"neutral_count"`
	GoodPoints   float64 `json:"good_points"`
	BadPoints    float64 `json:"bad_points"`
}

// PeriodScoreResponse is one scored window with its trend.
type PeriodScoreResponse struct {
	ScoreResponse

	Period          string    `json:"period"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	Trend           string    `json:"trend"`
	TrendPercentage float64   `json:"trend_percentage"`
}

func (g *Gateway) handleOverallScore(c *okapi.Context) error {
	userID, err := g.requireSelf(c)
	if err != nil {
		return err
	}

	agg, err := g.engine.OverallScore(c.Context(), userID)
	if err != nil {
		return g.engineError(c, err)
	}
	return c.OK(toScoreResponse(agg))
}

func (g *Gateway) handlePeriodScore(c *okapi.Context) error {
	userID, err := g.requireSelf(c)
	if err != nil {
		return err
	}

	report, err := g.engine.PeriodScore(c.Context(), userID, domain.PeriodType(c.Param("period")))
	if err != nil {
		return g.engineError(c, err)
	}
	return c.OK(toPeriodScoreResponse(report))
}

// --- Patterns ---

// PatternResponse is one detected behavior pattern.
type PatternResponse struct {
	Pattern     string    `json:"pattern"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Frequency   int       `json:"frequency"`
	TotalImpact float64   `json:"total_impact"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Samples     []string  `json:"samples,omitempty"`
}

// AnalysisResponse is the full pattern report.
type AnalysisResponse struct {
	Patterns        []PatternResponse `json:"patterns"`
	Strengths       []PatternResponse `json:"strengths"`
	Weaknesses      []PatternResponse `json:"weaknesses"`
	DominantEmotion string            `json:"dominant_emotion"`
	Insights        []string          `json:"insights"`
}

func (g *Gateway) handlePatterns(c *okapi.Context) error {
	userID, err := g.requireSelf(c)
	if err != nil {
		return err
	}

	analysis, err := g.engine.Patterns(c.Context(), userID)
	if err != nil {
		return g.engineError(c, err)
	}
	return c.OK(toAnalysisResponse(analysis))
}

// --- Habits ---

// HabitResponse is one recommended habit with its daily schedule.
type HabitResponse struct {
	Pattern      string              `json:"pattern"`
	Title        string              `json:"title"`
	Description  string              `json:"description,omitempty"`
	Priority     int                 `json:"priority"`
	DurationDays int                 `json:"duration_days"`
	Motivation   string              `json:"motivation,omitempty"`
	Schedule     []ScheduledTaskBody `json:"schedule"`
}

// ScheduledTaskBody is one day of a habit schedule.
type ScheduledTaskBody struct {
	Day  int    `json:"day"`
	Task string `json:"task"`
}

// HabitPlanResponse is the habit plan for GET /v1/users/{id}/habits.
type HabitPlanResponse struct {
	Habits []HabitResponse `json:"habits"`
	Quote  string          `json:"quote"`
}

func (g *Gateway) handleHabits(c *okapi.Context) error {
	userID, err := g.requireSelf(c)
	if err != nil {
		return err
	}

	plan, err := g.engine.Habits(c.Context(), userID)
	if err != nil {
		return g.engineError(c, err)
	}
	return c.OK(toHabitPlanResponse(plan))
}

// --- Streaks ---

// StreakResponse is the streak status for GET /v1/users/{id}/streak.
type StreakResponse struct {
	CurrentStreak      int     `json:"current_streak"`
	LongestStreak      int     `json:"longest_streak"`
	Level              string  `json:"level"`
	LevelName          string  `json:"level_name"`
	NextLevelThreshold int     `json:"next_level_threshold"`
	Progress           float64 `json:"progress"`
}

func (g *Gateway) handleStreak(c *okapi.Context) error {
	userID, err := g.requireSelf(c)
	if err != nil {
		return err
	}

	status, err := g.engine.Streak(c.Context(), userID)
	if err != nil {
		return g.engineError(c, err)
	}
	return c.OK(toStreakResponse(status))
}

// --- Dashboard ---

// DashboardResponse composes all read models for GET /v1/users/{id}/dashboard.
type DashboardResponse struct {
	Overall  ScoreResponse       `json:"overall"`
	Today    PeriodScoreResponse `json:"today"`
	Patterns AnalysisResponse    `json:"patterns"`
	Habits   HabitPlanResponse   `json:"habits"`
	Streak   StreakResponse      `json:"streak"`
	Recent   []EntryResponse     `json:"recent"`
}

func (g *Gateway) handleDashboard(c *okapi.Context) error {
	userID, err := g.requireSelf(c)
	if err != nil {
		return err
	}

	d, err := g.engine.Dashboard(c.Context(), userID)
	if err != nil {
		return g.engineError(c, err)
	}

	recent := make([]EntryResponse, len(d.Recent))
	for i := range d.Recent {
		recent[i] = toEntryResponse(&d.Recent[i])
	}
	return c.OK(DashboardResponse{
		Overall:  toScoreResponse(d.Overall),
		Today:    toPeriodScoreResponse(d.Today),
		Patterns: toAnalysisResponse(d.Patterns),
		Habits:   toHabitPlanResponse(d.Habits),
		Streak:   toStreakResponse(d.Streak),
		Recent:   recent,
	})
}

// --- Rules ---

// RuleResponse is one active weight rule.
type RuleResponse struct {
	Category string   `json:"category"`
	Pattern  string   `json:"pattern"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Weight   float64  `json:"weight"`
	Keywords []string `json:"keywords"`
}

func (g *Gateway) handleRules(c *okapi.Context) error {
	if _, err := g.requireSelf(c); err != nil {
		return err
	}

	snapshot, err := g.rules.Snapshot(c.Context())
	if err != nil {
		g.logger.Error("loading weight rules failed", slog.String("error", err.Error()))
		return c.AbortInternalServerError("loading rules failed")
	}

	out := make([]RuleResponse, len(snapshot))
	for i, r := range snapshot {
		out[i] = RuleResponse{
			Category: r.Category,
			Pattern:  r.Pattern,
			Name:     r.Name,
			Type:     string(r.Type),
			Weight:   r.Weight,
			Keywords: r.Keywords,
		}
	}
	return c.OK(out)
}

// --- Mapping helpers ---

func toEntryResponse(e *domain.KarmaEntry) EntryResponse {
	return EntryResponse{
		ID:             e.ID.String(),
		Text:           e.Text,
		Type:           string(e.Type),
		Score:          e.Score,
		Category:       e.Category,
		Pattern:        e.Pattern,
		Confidence:     e.Confidence,
		Emotion:        e.Emotion,
		Reasoning:      e.Reasoning,
		Source:         string(e.Source),
		Provider:       e.Provider,
		Suggestions:    e.Suggestions,
		SelfAssessment: e.SelfAssessment,
		EntryDate:      e.EntryDate,
	}
}

func toScoreResponse(a *scoring.Aggregate) ScoreResponse {
	return ScoreResponse{
		KarmaScore:   a.Normalized,
		RawScore:     a.RawScore,
		GoodCount:    a.GoodCount,
		BadCount:     a.BadCount,
		NeutralCount: a.NeutralCount,
		GoodPoints:   a.GoodPoints,
		BadPoints:    a.BadPoints,
	}
}

func toPeriodScoreResponse(r *scoring.Report) PeriodScoreResponse {
	return PeriodScoreResponse{
		ScoreResponse:   toScoreResponse(&r.Aggregate),
		Period:          string(r.Period),
		PeriodStart:     r.PeriodStart,
		PeriodEnd:       r.PeriodEnd,
		Trend:           r.Trend,
		TrendPercentage: r.TrendPercentage,
	}
}

func toPatternResponses(summaries []patterns.Summary) []PatternResponse {
	out := make([]PatternResponse, len(summaries))
	for i, s := range summaries {
		out[i] = PatternResponse{
			Pattern:     s.Pattern,
			Name:        s.Name,
			Type:        string(s.Type),
			Frequency:   s.Frequency,
			TotalImpact: s.TotalImpact,
			FirstSeen:   s.FirstSeen,
			LastSeen:    s.LastSeen,
			Samples:     s.Samples,
		}
	}
	return out
}

func toAnalysisResponse(a *patterns.Analysis) AnalysisResponse {
	return AnalysisResponse{
		Patterns:        toPatternResponses(a.Patterns),
		Strengths:       toPatternResponses(a.Strengths),
		Weaknesses:      toPatternResponses(a.Weaknesses),
		DominantEmotion: a.DominantEmotion,
		Insights:        a.Insights,
	}
}

func toHabitPlanResponse(p *habits.Plan) HabitPlanResponse {
	out := HabitPlanResponse{
		Habits: make([]HabitResponse, len(p.Suggestions)),
		Quote:  p.Quote,
	}
	for i, s := range p.Suggestions {
		schedule := p.Schedules[s.Title]
		tasks := make([]ScheduledTaskBody, len(schedule))
		for j, st := range schedule {
			tasks[j] = ScheduledTaskBody{Day: st.Day, Task: st.Task}
		}
		out.Habits[i] = HabitResponse{
			Pattern:      s.Pattern,
			Title:        s.Title,
			Description:  s.Description,
			Priority:     s.Priority,
			DurationDays: s.DurationDays,
			Motivation:   s.Motivation,
			Schedule:     tasks,
		}
	}
	return out
}

func toStreakResponse(s *streak.Status) StreakResponse {
	return StreakResponse{
		CurrentStreak:      s.CurrentStreak,
		LongestStreak:      s.LongestStreak,
		Level:              s.Level,
		LevelName:          s.LevelName,
		NextLevelThreshold: s.NextLevelThreshold,
		Progress:           s.Progress,
	}
}

// engineError maps engine validation errors to HTTP responses. Anything not
// recognized is an internal error and gets logged.
func (g *Gateway) engineError(c *okapi.Context, err error) error {
	status, message, known := engineErrorStatus(err)
	if !known {
		g.logger.Error("engine request failed", slog.String("error", err.Error()))
		return c.AbortInternalServerError("request failed")
	}
	return c.JSON(status, okapi.M{"error": message})
}

// engineErrorStatus resolves an engine sentinel error to a status code and
// client-safe message. known is false for unexpected errors.
func engineErrorStatus(err error) (status int, message string, known bool) {
	switch {
	case errors.Is(err, engine.ErrEmptyText):
		return http.StatusBadRequest, engine.ErrEmptyText.Error(), true
	case errors.Is(err, engine.ErrInvalidPeriod):
		return http.StatusBadRequest, engine.ErrInvalidPeriod.Error(), true
	case errors.Is(err, engine.ErrInvalidSelfAssessment):
		return http.StatusBadRequest, engine.ErrInvalidSelfAssessment.Error(), true
	case errors.Is(err, engine.ErrUserNotFound):
		return http.StatusNotFound, engine.ErrUserNotFound.Error(), true
	case errors.Is(err, engine.ErrEntryNotFound):
		return http.StatusNotFound, engine.ErrEntryNotFound.Error(), true
	default:
		return http.StatusInternalServerError, "", false
	}
}
