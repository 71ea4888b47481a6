// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/klepsydra/internal/domain/dedupe"
	"github.com/okian/klepsydra/internal/domain/model"
	"github.com/okian/klepsydra/internal/domain/penalty"
	"github.com/okian/klepsydra/internal/domain/splits"
	"github.com/okian/klepsydra/internal/domain/stats"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes a raw input event for async processing.
	// Returns false on backpressure.
	Enqueue(ctx context.Context, e model.InputEvent) bool

	// Attempt history reads and the single allowed edit.
	Attempts(ctx context.Context, offset, limit int) ([]model.Attempt, error)
	Attempt(ctx context.Context, id string) (model.Attempt, error)
	ApplyPenalty(ctx context.Context, id string, p penalty.Penalty) (model.Attempt, error)

	// Rolling statistics reads.
	Trailing(ctx context.Context) stats.Trailing
	PersonalBests(ctx context.Context) []stats.PersonalBest

	// Split tracking.
	SetSplitDefinitions(ctx context.Context, defs []splits.PhaseDefinition) ([]splits.PhaseDefinition, error)
	RecordSplits(ctx context.Context, attemptID string, marks []splits.Mark) error
	SplitReport(ctx context.Context, attemptID string) (splits.Report, error)

	// Session import.
	ImportSession(ctx context.Context, data []byte) (int, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	eventsHandler   *EventsHandler
	attemptsHandler *AttemptsHandler
	splitsHandler   *SplitsHandler
	importHandler   *ImportHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxListLimit int) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps, statsProvider),
		eventsHandler:   NewEventsHandler(deps),
		attemptsHandler: NewAttemptsHandler(deps, maxListLimit),
		splitsHandler:   NewSplitsHandler(deps),
		importHandler:   NewImportHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats/trailing", MetricsMiddleware(s.statsHandler.HandleTrailing, "stats_trailing"))
	mux.HandleFunc("/stats/bests", MetricsMiddleware(s.statsHandler.HandleBests, "stats_bests"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/attempts", MetricsMiddleware(s.attemptsHandler.HandleList, "attempts"))
	mux.HandleFunc("/attempts/", MetricsMiddleware(s.attemptsHandler.HandleAttempt, "attempt"))
	mux.HandleFunc("/splits/definitions", MetricsMiddleware(s.splitsHandler.HandleDefinitions, "splits_definitions"))
	mux.HandleFunc("/import", MetricsMiddleware(s.importHandler.HandleImport, "import"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
