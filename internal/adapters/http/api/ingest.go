// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/devmatch/internal/domain/model"
	"github.com/okian/devmatch/internal/domain/types"
	"github.com/okian/devmatch/pkg/logger"
)

// IngestDependencies defines the interface for record ingestion.
type IngestDependencies interface {
	IngestContributions(ctx context.Context, repos []model.Repository, batch []model.Contribution) (types.IngestAck, error)
	IngestReviews(ctx context.Context, repos []model.Repository, batch []model.Review) (types.IngestAck, error)
}

// contributionBatch mirrors the OpenAPI schema for POST /api/contributions.
type contributionBatch struct {
	Repositories  []model.Repository   `json:"repositories"`
	Contributions []model.Contribution `json:"contributions"`
}

// reviewBatch mirrors the OpenAPI schema for POST /api/reviews.
type reviewBatch struct {
	Repositories []model.Repository `json:"repositories"`
	Reviews      []model.Review     `json:"reviews"`
}

// IngestHandler handles ingestion requests.
type IngestHandler struct {
	deps   IngestDependencies
	logger logger.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(deps IngestDependencies, log logger.Logger) *IngestHandler {
	return &IngestHandler{deps: deps, logger: log}
}

// HandleContributions handles POST /api/contributions requests.
func (h *IngestHandler) HandleContributions(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_contributions"
	var req contributionBatch
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Contributions) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("contributions must not be empty")))
		return
	}
	ack, err := h.deps.IngestContributions(r.Context(), req.Repositories, req.Contributions)
	h.respond(w, r, op, ack, err)
}

// HandleReviews handles POST /api/reviews requests.
func (h *IngestHandler) HandleReviews(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_reviews"
	var req reviewBatch
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Reviews) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("reviews must not be empty")))
		return
	}
	ack, err := h.deps.IngestReviews(r.Context(), req.Repositories, req.Reviews)
	h.respond(w, r, op, ack, err)
}

func (h *IngestHandler) respond(w http.ResponseWriter, r *http.Request, op string, ack types.IngestAck, err error) {
	if err != nil {
		writeInternal(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	status := ackStatus(ack)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, ack)
}

// ackStatus maps a batch outcome onto a status code: 202 when anything was
// accepted, 429 when the queue refused records, 200 when everything was a
// duplicate, 400 when nothing was usable.
func ackStatus(ack types.IngestAck) int {
	switch {
	case ack.Accepted > 0:
		return http.StatusAccepted
	case ack.Throttled > 0:
		return http.StatusTooManyRequests
	case ack.Duplicates > 0:
		return http.StatusOK
	default:
		return http.StatusBadRequest
	}
}
