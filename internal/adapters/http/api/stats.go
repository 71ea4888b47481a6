// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/klepsydra/internal/domain/stats"
)

// StatsDependencies defines the interface for statistics reads.
type StatsDependencies interface {
	Trailing(ctx context.Context) stats.Trailing
	PersonalBests(ctx context.Context) []stats.PersonalBest
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler handles statistics requests.
type StatsHandler struct {
	deps          StatsDependencies
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps StatsDependencies, statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{deps: deps, statsProvider: statsProvider}
}

// HandleTrailing handles GET /stats/trailing requests.
func (h *StatsHandler) HandleTrailing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Trailing(r.Context()))
}

// bestsResponse wraps the personal best list.
type bestsResponse struct {
	Bests []stats.PersonalBest `json:"bests"`
}

// HandleBests handles GET /stats/bests requests.
func (h *StatsHandler) HandleBests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	bests := h.deps.PersonalBests(r.Context())
	if bests == nil {
		bests = []stats.PersonalBest{}
	}
	writeJSON(w, http.StatusOK, bestsResponse{Bests: bests})
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.statsProvider.GetStats())
}
