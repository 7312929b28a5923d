// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/devmatch/internal/domain/model"
	"github.com/okian/devmatch/pkg/logger"
)

// DomainDependencies defines the interface for domain summaries.
type DomainDependencies interface {
	Domains(ctx context.Context) ([]model.DomainSummary, error)
}

// DomainHandler handles domain listing requests.
type DomainHandler struct {
	deps   DomainDependencies
	logger logger.Logger
}

// NewDomainHandler creates a new domain handler.
func NewDomainHandler(deps DomainDependencies, log logger.Logger) *DomainHandler {
	return &DomainHandler{deps: deps, logger: log}
}

// HandleList handles GET /api/domains requests.
func (h *DomainHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_domains"
	domains, err := h.deps.Domains(r.Context())
	if err != nil {
		writeInternal(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	if domains == nil {
		domains = []model.DomainSummary{}
	}
	writeJSON(w, http.StatusOK, domains)
}
