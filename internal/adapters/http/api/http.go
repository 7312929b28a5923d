// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/devmatch/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	IngestDependencies
	SearchDependencies
	DeveloperDependencies
	DomainDependencies
	AdminDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	ingestHandler    *IngestHandler
	searchHandler    *SearchHandler
	developerHandler *DeveloperHandler
	domainHandler    *DomainHandler
	adminHandler     *AdminHandler

	apiToken string
	logger   logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{
		defaultLimit: defaultSearchLimit,
		maxLimit:     defaultMaxLimit,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("api")
	}
	if cfg.defaultLimit > cfg.maxLimit {
		cfg.defaultLimit = cfg.maxLimit
	}

	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		ingestHandler:    NewIngestHandler(deps, cfg.logger),
		searchHandler:    NewSearchHandler(deps, cfg.defaultLimit, cfg.maxLimit, cfg.logger),
		developerHandler: NewDeveloperHandler(deps, cfg.defaultLimit, cfg.maxLimit, cfg.logger),
		domainHandler:    NewDomainHandler(deps, cfg.logger),
		adminHandler:     NewAdminHandler(deps, cfg.logger),
		apiToken:         cfg.apiToken,
		logger:           cfg.logger,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	auth := func(next http.HandlerFunc) http.HandlerFunc { return BearerAuth(s.apiToken, next) }

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	// Presentation API.
	mux.HandleFunc("POST /api/search", MetricsMiddleware(s.searchHandler.HandleSearch, "search"))
	mux.HandleFunc("GET /api/developers", MetricsMiddleware(s.developerHandler.HandleList, "developers"))
	mux.HandleFunc("GET /api/developers/{username}", MetricsMiddleware(s.developerHandler.HandleGet, "developer"))
	mux.HandleFunc("GET /api/domains", MetricsMiddleware(s.domainHandler.HandleList, "domains"))

	// Ingestion.
	mux.HandleFunc("POST /api/contributions", MetricsMiddleware(s.ingestHandler.HandleContributions, "contributions"))
	mux.HandleFunc("POST /api/reviews", MetricsMiddleware(s.ingestHandler.HandleReviews, "reviews"))

	// Agent API: same reads behind a bearer token.
	mux.HandleFunc("POST /api/agent/search", MetricsMiddleware(auth(s.searchHandler.HandleSearch), "agent_search"))
	mux.HandleFunc("GET /api/agent/developers/{username}", MetricsMiddleware(auth(s.developerHandler.HandleGet), "agent_developer"))
	mux.HandleFunc("GET /api/agent/domains", MetricsMiddleware(auth(s.domainHandler.HandleList), "agent_domains"))

	// Admin.
	mux.HandleFunc("GET /api/admin/vocabulary", MetricsMiddleware(auth(s.adminHandler.HandleListVocabulary), "admin_vocabulary"))
	mux.HandleFunc("POST /api/admin/vocabulary", MetricsMiddleware(auth(s.adminHandler.HandleAppendVocabulary), "admin_vocabulary"))
	mux.HandleFunc("PUT /api/admin/vocabulary", MetricsMiddleware(auth(s.adminHandler.HandleRefreshVocabulary), "admin_vocabulary"))
	mux.HandleFunc("POST /api/admin/reaggregate", MetricsMiddleware(auth(s.adminHandler.HandleReaggregate), "admin_reaggregate"))
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = publicMessage(err)
	}
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

// writeInternal logs err and answers 500 without leaking its text.
func writeInternal(ctx context.Context, w http.ResponseWriter, log logger.Logger, err error) {
	log.Error(ctx, "request failed", logger.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", ErrInternal)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
