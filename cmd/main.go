package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/devmatch/internal/adapters/ai"
	"github.com/okian/devmatch/internal/adapters/http/api"
	"github.com/okian/devmatch/internal/adapters/http/swagger"
	"github.com/okian/devmatch/internal/adapters/repository"
	app "github.com/okian/devmatch/internal/app"
	"github.com/okian/devmatch/internal/config"
	"github.com/okian/devmatch/internal/domain/classify"
	"github.com/okian/devmatch/internal/domain/match"
	"github.com/okian/devmatch/internal/domain/profile"
	"github.com/okian/devmatch/internal/domain/scoring"
	"github.com/okian/devmatch/pkg/logger"
	"github.com/okian/devmatch/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	hoursPerDay       = 24
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "devmatch:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := metrics.Configure(
		metrics.WithMetricsEnabled(cfg.Metrics.Enabled),
		metrics.WithNamespace(cfg.Metrics.Namespace),
		metrics.WithRefreshInterval(cfg.Metrics.RefreshInterval()),
		metrics.WithCustomLabels(cfg.Metrics.Labels),
	); err != nil {
		return err
	}

	svc, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	if metrics.Enabled() {
		go startSystemMetricsUpdater(ctx, metrics.RefreshInterval())
		go startServiceMetricsUpdater(ctx, svc, metrics.RefreshInterval())
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.Store.Driver), logger.String("ai_provider", cfg.AI.Provider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("service stop: %w", err))
	}

	log.Info(shutdownCtx, "server stopped")
	return errors.Join(errs...)
}

// buildService wires the store, the classifier with its optional model
// backend, the scorers, the aggregator and the match engine into a service.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	store, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	completer, err := ai.New(ctx, cfg.AI, log.Named("ai"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build classifier backend: %w", err)
	}

	vocab := classify.NewVocabulary(classify.WithVocabularyPath(cfg.Classifier.VocabularyPath))
	classifier := classify.New(completer,
		classify.WithMaxTags(cfg.Classifier.MaxTags),
		classify.WithMaxPaths(cfg.Classifier.MaxPaths),
		classify.WithTimeout(ai.Budget(cfg.AI)),
		classify.WithVocabulary(vocab),
	)

	reviewScorer := scoring.NewReviewScorer()
	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithStore(store),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithReaggregateOnStart(cfg.Store.Driver == config.StoreBolt),
		app.WithClassifier(classifier),
		app.WithContributionScorer(scoring.NewContributionScorer(
			scoring.WithHalfLifeDays(cfg.Scoring.HalfLifeDays),
			scoring.WithTypeMultipliers(cfg.Scoring.TypeMultipliers),
		)),
		app.WithReviewScorer(reviewScorer),
		app.WithAggregator(profile.NewAggregator(
			profile.WithEvidenceRepos(cfg.Profile.EvidenceRepos),
			profile.WithRecentWindow(time.Duration(cfg.Profile.RecentWindowDays)*hoursPerDay*time.Hour),
			profile.WithReviewScorer(reviewScorer),
		)),
		app.WithMatchEngine(match.New(classifier, match.WithQueryTimeout(cfg.Match.QueryTimeout()))),
	)
	return svc, nil
}

func openStore(cfg config.StoreConfig) (repository.Store, error) {
	switch cfg.Driver {
	case config.StoreBolt:
		s, err := repository.OpenBoltStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open bolt store %s: %w", cfg.Path, err)
		}
		return s, nil
	default:
		return repository.NewMemoryStore(), nil
	}
}

// newHandler registers the API and docs routes and wraps them so every
// response carries a request id.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, svc,
		api.WithSearchLimits(cfg.DefaultSearchLimit, cfg.MaxSearchLimit),
		api.WithAPIToken(cfg.APIToken),
		api.WithLogger(log.Named("api")),
	)
	apiServer.Register(ctx, mux)

	return api.RequestIDMiddleware(mux)
}

// startSystemMetricsUpdater refreshes process gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes pipeline gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	metrics.UpdateQueueSize(stats.QueueLength)
	metrics.UpdateQueueCapacity(stats.QueueCapacity)
	if stats.QueueCapacity > 0 {
		metrics.UpdateQueueUtilization(float64(stats.QueueLength) / float64(stats.QueueCapacity))
	}
}
