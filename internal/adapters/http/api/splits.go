// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/klepsydra/internal/domain/splits"
)

// SplitDependencies defines the interface for split definition updates.
type SplitDependencies interface {
	SetSplitDefinitions(ctx context.Context, defs []splits.PhaseDefinition) ([]splits.PhaseDefinition, error)
}

// SplitsHandler handles phase definition requests.
type SplitsHandler struct {
	deps SplitDependencies
}

// NewSplitsHandler creates a new splits handler.
func NewSplitsHandler(deps SplitDependencies) *SplitsHandler {
	return &SplitsHandler{deps: deps}
}

// definitionsRequest is the body for PUT /splits/definitions.
type definitionsRequest struct {
	Phases []splits.PhaseDefinition `json:"phases"`
}

// definitionsResponse echoes back the normalized definitions.
type definitionsResponse struct {
	Phases []splits.PhaseDefinition `json:"phases"`
}

// HandleDefinitions handles PUT /splits/definitions requests.
func (h *SplitsHandler) HandleDefinitions(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_split_definitions"
	if r.Method != http.MethodPut {
		http.NotFound(w, r)
		return
	}
	var req definitionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	normalized, err := h.deps.SetSplitDefinitions(r.Context(), req.Phases)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, definitionsResponse{Phases: normalized})
}
