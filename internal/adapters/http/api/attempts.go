// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/klepsydra/internal/domain/model"
	"github.com/okian/klepsydra/internal/domain/penalty"
	"github.com/okian/klepsydra/internal/domain/splits"
)

// AttemptDependencies defines the interface for attempt operations.
type AttemptDependencies interface {
	Attempts(ctx context.Context, offset, limit int) ([]model.Attempt, error)
	Attempt(ctx context.Context, id string) (model.Attempt, error)
	ApplyPenalty(ctx context.Context, id string, p penalty.Penalty) (model.Attempt, error)
	RecordSplits(ctx context.Context, attemptID string, marks []splits.Mark) error
	SplitReport(ctx context.Context, attemptID string) (splits.Report, error)
}

// AttemptsHandler handles attempt history requests.
type AttemptsHandler struct {
	deps     AttemptDependencies
	maxLimit int
}

// NewAttemptsHandler creates a new attempts handler.
func NewAttemptsHandler(deps AttemptDependencies, maxLimit int) *AttemptsHandler {
	return &AttemptsHandler{deps: deps, maxLimit: maxLimit}
}

// HandleList handles GET /attempts?offset=N&limit=N requests.
func (h *AttemptsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_attempts"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if limit > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	if limit == 0 {
		limit = h.maxLimit
	}

	attempts, err := h.deps.Attempts(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

// penaltyRequest is the body for POST /attempts/{id}/penalty.
type penaltyRequest struct {
	Penalty string `json:"penalty"`
}

// splitsRequest is the body for POST /attempts/{id}/splits.
type splitsRequest struct {
	Marks []splits.Mark `json:"marks"`
}

// HandleAttempt routes /attempts/{id}, /attempts/{id}/penalty and
// /attempts/{id}/splits requests.
func (h *AttemptsHandler) HandleAttempt(w http.ResponseWriter, r *http.Request) {
	const op = "api.attempt"

	path := strings.TrimPrefix(r.URL.Path, "/attempts/")
	id, sub, _ := strings.Cut(path, "/")
	if id == "" || strings.Contains(sub, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		h.handleGet(w, r, id)
	case sub == "penalty" && r.Method == http.MethodPost:
		h.handlePenalty(w, r, id)
	case sub == "splits" && r.Method == http.MethodPost:
		h.handlePostSplits(w, r, id)
	case sub == "splits" && r.Method == http.MethodGet:
		h.handleGetSplits(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *AttemptsHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.get_attempt"
	a, err := h.deps.Attempt(r.Context(), id)
	if err != nil {
		writeLookupError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AttemptsHandler) handlePenalty(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.set_penalty"
	var req penaltyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := penalty.Parse(req.Penalty)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	a, err := h.deps.ApplyPenalty(r.Context(), id, p)
	if err != nil {
		writeLookupError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AttemptsHandler) handlePostSplits(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.record_splits"
	var req splitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Marks) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if err := h.deps.RecordSplits(r.Context(), id, req.Marks); err != nil {
		writeLookupError(w, op, err)
		return
	}
	report, err := h.deps.SplitReport(r.Context(), id)
	if err != nil {
		writeLookupError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *AttemptsHandler) handleGetSplits(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.get_splits"
	report, err := h.deps.SplitReport(r.Context(), id)
	if err != nil {
		writeLookupError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// writeLookupError translates upstream not-found errors to 404.
func writeLookupError(w http.ResponseWriter, op string, err error) {
	if isNotFound(err) {
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
}

// isNotFound allows the API to translate upstream not-found errors to 404
// without coupling to specific store packages.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound interface{ NotFound() bool }
	if errors.As(err, &notFound) {
		return notFound.NotFound()
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
