// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"io"
	"net/http"
)

// Cap on import payload size.
const maxImportBytes = 16 << 20

// ImportDependencies defines the interface for session imports.
type ImportDependencies interface {
	ImportSession(ctx context.Context, data []byte) (int, error)
}

// ImportHandler handles session export uploads.
type ImportHandler struct {
	deps ImportDependencies
}

// NewImportHandler creates a new import handler.
func NewImportHandler(deps ImportDependencies) *ImportHandler {
	return &ImportHandler{deps: deps}
}

// importResponse reports how many solves were imported.
type importResponse struct {
	Imported int `json:"imported"`
}

// HandleImport handles POST /import requests.
func (h *ImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	const op = "api.import_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	count, err := h.deps.ImportSession(r.Context(), data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Imported: count})
}
