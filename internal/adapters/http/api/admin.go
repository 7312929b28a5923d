// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/devmatch/pkg/logger"
)

// AdminDependencies defines the interface for curation and maintenance.
type AdminDependencies interface {
	Vocabulary(ctx context.Context) []string
	AppendVocabulary(ctx context.Context, tags []string) ([]string, error)
	RefreshVocabulary(ctx context.Context) (int, error)
	ReaggregateAll(ctx context.Context) (int, error)
}

type vocabularyRequest struct {
	Tags []string `json:"tags"`
}

type vocabularyResponse struct {
	Tags  []string `json:"tags"`
	Added []string `json:"added,omitempty"`
	Size  int      `json:"size"`
}

type reaggregateResponse struct {
	Developers int `json:"developers"`
}

// AdminHandler handles vocabulary curation and profile rebuilds.
type AdminHandler struct {
	deps   AdminDependencies
	logger logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies, log logger.Logger) *AdminHandler {
	return &AdminHandler{deps: deps, logger: log}
}

// HandleListVocabulary handles GET /api/admin/vocabulary requests.
func (h *AdminHandler) HandleListVocabulary(w http.ResponseWriter, r *http.Request) {
	tags := h.deps.Vocabulary(r.Context())
	writeJSON(w, http.StatusOK, vocabularyResponse{Tags: tags, Size: len(tags)})
}

// HandleAppendVocabulary handles POST /api/admin/vocabulary requests.
func (h *AdminHandler) HandleAppendVocabulary(w http.ResponseWriter, r *http.Request) {
	const op = "api.append_vocabulary"
	var req vocabularyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Tags) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("tags must not be empty")))
		return
	}
	added, err := h.deps.AppendVocabulary(r.Context(), req.Tags)
	if err != nil {
		writeInternal(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	if added == nil {
		added = []string{}
	}
	tags := h.deps.Vocabulary(r.Context())
	writeJSON(w, http.StatusOK, vocabularyResponse{Tags: tags, Added: added, Size: len(tags)})
}

// HandleRefreshVocabulary handles PUT /api/admin/vocabulary requests.
func (h *AdminHandler) HandleRefreshVocabulary(w http.ResponseWriter, r *http.Request) {
	const op = "api.refresh_vocabulary"
	if _, err := h.deps.RefreshVocabulary(r.Context()); err != nil {
		writeInternal(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	tags := h.deps.Vocabulary(r.Context())
	writeJSON(w, http.StatusOK, vocabularyResponse{Tags: tags, Size: len(tags)})
}

// HandleReaggregate handles POST /api/admin/reaggregate requests.
func (h *AdminHandler) HandleReaggregate(w http.ResponseWriter, r *http.Request) {
	const op = "api.reaggregate"
	n, err := h.deps.ReaggregateAll(r.Context())
	if err != nil {
		writeInternal(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, reaggregateResponse{Developers: n})
}
