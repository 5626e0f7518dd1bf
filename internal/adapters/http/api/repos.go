package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/innerscore/internal/adapters/output"
	"github.com/okian/innerscore/internal/adapters/repository"
)

// ReposHandler serves the collection and single records.
type ReposHandler struct {
	deps Collection
}

// NewReposHandler creates a new repos handler.
func NewReposHandler(deps Collection) *ReposHandler {
	return &ReposHandler{deps: deps}
}

// HandleList handles GET /repos. The body matches the published repos.json.
func (h *ReposHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_repos"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	records, err := h.deps.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: %w", op, err))
		return
	}
	body, err := output.Encode(records)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: %w", op, err))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HandleGet handles GET /repos/{name}.
func (h *ReposHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_repo"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	name, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/repos/"))
	if err != nil || name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: invalid name: %w", op, ErrBadRequest))
		return
	}

	record, err := h.deps.Get(r.Context(), name)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusOK, record)
}
