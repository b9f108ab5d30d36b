// Package httpapi implements the HTTP API gateway for karmika.
//
// Security:
//   - API key authentication on every /v1 request (constant-time comparison)
//   - Per-user rate limiting via token bucket
//   - Callers may only read and write their own karma data
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jkaninda/okapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/sattvalabs/karmika/internal/engine"
	"github.com/sattvalabs/karmika/internal/observability"
	"github.com/sattvalabs/karmika/internal/ratelimit"
	"github.com/sattvalabs/karmika/internal/rules"
)

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the HTTP API gateway.
type Config struct {
	ListenAddr string // e.g., ":8080"
	EnableDocs bool
	APIKeys    map[string]string // API key → user ID mapping. Keys from env or config.

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	HealthChecker   *observability.HealthChecker    // Health checker for /readyz.
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// Gateway is the HTTP API gateway over the karma engine.
type Gateway struct {
	config  Config
	engine  *engine.Engine
	rules   rules.Source
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	server  *http.Server

	okapi *okapi.Okapi
	group *okapi.Group
}

// NewGateway creates an HTTP API gateway.
func NewGateway(cfg Config, eng *engine.Engine, ruleSource rules.Source, rl *ratelimit.Limiter, logger *slog.Logger) *Gateway {
	return &Gateway{
		config:  cfg,
		engine:  eng,
		rules:   ruleSource,
		limiter: rl,
		logger:  logger,
		okapi:   okapi.New(),
	}
}

// WithOpenAPIDocs enables the OpenAPI documentation UI.
func (g *Gateway) WithOpenAPIDocs() *Gateway {
	g.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "Karmika",
			Version: "v0.1.0",
		},
	)
	return g
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	// Metrics/tracing middleware (applied globally).
	if g.config.Metrics != nil || g.config.Tracer != nil {
		g.okapi.Use(observability.MetricsMiddleware(g.config.Metrics, g.config.Tracer))
	}

	// Authenticated /v1 group.
	g.group = g.okapi.Group("/v1", g.authenticate)

	g.group.Post("/actions", g.handleRecordAction,
		okapi.DocSummary("Record and classify a personal action"),
		okapi.DocTags("Actions"),
		okapi.DocRequestBody(RecordActionRequest{}),
		okapi.DocResponse(http.StatusCreated, EntryResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		okapi.DocResponse(http.StatusTooManyRequests, ErrorBody{}),
	)
	g.group.Get("/users/{id}/entries", g.handleEntries,
		okapi.DocSummary("List a user's recorded actions, newest first"),
		okapi.DocTags("Actions"),
		okapi.DocPathParam("id", "string", "User ID"),
		okapi.DocResponse([]EntryResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Delete("/users/{id}/entries/{entryID}", g.handleDeleteEntry,
		okapi.DocSummary("Soft-delete a recorded action"),
		okapi.DocTags("Actions"),
		okapi.DocPathParam("id", "string", "User ID"),
		okapi.DocPathParam("entryID", "string", "Entry ID (UUID)"),
		okapi.DocResponse(map[string]string{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Get("/users/{id}/score", g.handleOverallScore,
		okapi.DocSummary("Get the all-time karma score"),
		okapi.DocTags("Scores"),
		okapi.DocPathParam("id", "string", "User ID"),
		okapi.DocResponse(ScoreResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Get("/users/{id}/score/{period}", g.handlePeriodScore,
		okapi.DocSummary("Get the karma score for the current daily, weekly, or monthly window"),
		okapi.DocTags("Scores"),
		okapi.DocPathParam("id", "string", "User ID"),
		okapi.DocPathParam("period", "string", "daily, weekly, or monthly"),
		okapi.DocResponse(PeriodScoreResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Get("/users/{id}/patterns", g.handlePatterns,
		okapi.DocSummary("Analyze behavioral patterns, strengths, and weaknesses"),
		okapi.DocTags("Patterns"),
		okapi.DocPathParam("id", "string", "User ID"),
		okapi.DocResponse(AnalysisResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Get("/users/{id}/habits", g.handleHabits,
		okapi.DocSummary("Get the habit plan built from detected weaknesses"),
		okapi.DocTags("Habits"),
		okapi.DocPathParam("id", "string", "User ID"),
		okapi.DocResponse(HabitPlanResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Get("/users/{id}/streak", g.handleStreak,
		okapi.DocSummary("Get streak and progression level"),
		okapi.DocTags("Streaks"),
		okapi.DocPathParam("id", "string", "User ID"),
		okapi.DocResponse(StreakResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Get("/users/{id}/dashboard", g.handleDashboard,
		okapi.DocSummary("Get the composed dashboard read model"),
		okapi.DocTags("Dashboard"),
		okapi.DocPathParam("id", "string", "User ID"),
		okapi.DocResponse(DashboardResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Get("/rules", g.handleRules,
		okapi.DocSummary("List the active weight rules"),
		okapi.DocTags("Rules"),
		okapi.DocResponse([]RuleResponse{}),
	)

	// Observability endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.WithOpenAPIDocs()
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http api gateway starting", slog.String("addr", g.config.ListenAddr))

	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http api gateway stopping")
	return g.okapi.Shutdown(g.server)
}

// HealthResponse is the JSON response for the health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleLiveness is the Kubernetes liveness probe.
func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// --- Authentication ---

// authenticate validates the API key and stores the mapped user ID in the
// request context.
func (g *Gateway) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		authHeader := c.Header("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.AbortUnauthorized("missing or invalid Authorization header")
		}
		apiKey := strings.TrimPrefix(authHeader, "Bearer ")

		userID := ""
		for key, mapped := range g.config.APIKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
				userID = mapped
			}
		}
		if userID == "" {
			return c.AbortUnauthorized("invalid API key")
		}
		c.Set("userID", userID)
		return next(c)
	}
}

// requireSelf checks that the path user matches the authenticated user and
// passes rate limiting. Returns the user ID or writes the error response.
func (g *Gateway) requireSelf(c *okapi.Context) (string, error) {
	userID := c.GetString("userID")
	if userID == "" {
		return "", c.AbortUnauthorized("Unauthorized")
	}
	if pathID := c.Param("id"); pathID != "" && pathID != userID {
		return "", c.JSON(http.StatusForbidden, okapi.M{"error": "cannot access another user's karma"})
	}
	if g.limiter != nil {
		if err := g.limiter.Allow(userID); err != nil {
			return "", c.AbortTooManyRequests("rate limit exceeded")
		}
	}
	return userID, nil
}
