// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/devmatch/internal/adapters/repository"
	"github.com/okian/devmatch/internal/domain/model"
	"github.com/okian/devmatch/internal/domain/types"
	"github.com/okian/devmatch/pkg/logger"
)

// DeveloperDependencies defines the interface for developer reads.
type DeveloperDependencies interface {
	Developer(ctx context.Context, username string) (model.RankedProfile, error)
	TopDevelopers(ctx context.Context, n int) ([]types.Entry, error)
}

// DeveloperHandler handles developer profile and ranking requests.
type DeveloperHandler struct {
	deps         DeveloperDependencies
	defaultLimit int
	maxLimit     int
	logger       logger.Logger
}

// NewDeveloperHandler creates a new developer handler.
func NewDeveloperHandler(deps DeveloperDependencies, defaultLimit, maxLimit int, log logger.Logger) *DeveloperHandler {
	return &DeveloperHandler{deps: deps, defaultLimit: defaultLimit, maxLimit: maxLimit, logger: log}
}

// HandleGet handles GET /api/developers/{username} requests.
func (h *DeveloperHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_developer"
	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing username")))
		return
	}
	p, err := h.deps.Developer(r.Context(), username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, repository.ErrNotFound, fmt.Errorf("developer %q not found", username)))
			return
		}
		writeInternal(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleList handles GET /api/developers?limit=N requests.
func (h *DeveloperHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_developers"
	n := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, fmt.Errorf("invalid limit %q", limitStr)))
			return
		}
		n = v
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", WrapKind(op, ErrLimitExceeded, fmt.Errorf("limit %d exceeds %d", n, h.maxLimit)))
		return
	}
	entries, err := h.deps.TopDevelopers(r.Context(), n)
	if err != nil {
		writeInternal(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
