// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/devmatch/internal/domain/model"
	"github.com/okian/devmatch/pkg/logger"
)

// SearchDependencies defines the interface for project searches.
type SearchDependencies interface {
	Search(ctx context.Context, q model.Query) ([]model.MatchResult, error)
}

// searchRequest mirrors the OpenAPI schema for POST /api/search. Limit is a
// pointer so an omitted limit can fall back to the default.
type searchRequest struct {
	Description string   `json:"description"`
	Stacks      []string `json:"stacks"`
	Role        string   `json:"role"`
	Limit       *int     `json:"limit"`
}

// SearchHandler handles search requests.
type SearchHandler struct {
	deps         SearchDependencies
	defaultLimit int
	maxLimit     int
	logger       logger.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(deps SearchDependencies, defaultLimit, maxLimit int, log logger.Logger) *SearchHandler {
	return &SearchHandler{deps: deps, defaultLimit: defaultLimit, maxLimit: maxLimit, logger: log}
}

// HandleSearch handles POST /api/search requests.
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	const op = "api.search"
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	limit := h.defaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, fmt.Errorf("limit must be at least 1, got %d", limit)))
		return
	}
	if limit > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", WrapKind(op, ErrLimitExceeded, fmt.Errorf("limit %d exceeds %d", limit, h.maxLimit)))
		return
	}

	results, err := h.deps.Search(r.Context(), model.Query{
		Description: req.Description,
		Stacks:      req.Stacks,
		Role:        req.Role,
		Limit:       limit,
	})
	if err != nil {
		writeInternal(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	if results == nil {
		results = []model.MatchResult{}
	}
	writeJSON(w, http.StatusOK, results)
}
