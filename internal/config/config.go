// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers a YAML file and environment variables on top of New().
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreBolt   = "bolt"
)

// Classifier providers.
const (
	ProviderNone   = "none"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the encoder: json or console.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of pipeline workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the record-id deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxSearchLimit caps POST /api/search limit and GET /api/developers?limit.
	MaxSearchLimit int `koanf:"max_search_limit"`

	// DefaultSearchLimit is used when a query omits limit.
	DefaultSearchLimit int `koanf:"default_search_limit"`

	// APIToken guards the agent and admin routes. Empty disables them.
	APIToken string `koanf:"api_token"`

	Store      StoreConfig      `koanf:"store"`
	AI         AIConfig         `koanf:"ai"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Scoring    ScoringConfig    `koanf:"scoring"`
	Profile    ProfileConfig    `koanf:"profile"`
	Match      MatchConfig      `koanf:"match"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

// StoreConfig selects the record store.
type StoreConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
}

// AIConfig configures the open-vocabulary classifier backend.
type AIConfig struct {
	Provider          string  `koanf:"provider"`
	Model             string  `koanf:"model"`
	APIKey            string  `koanf:"api_key"`
	BaseURL           string  `koanf:"base_url"`
	TimeoutMS         int     `koanf:"timeout_ms"`
	MaxRetries        int     `koanf:"max_retries"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// Timeout returns the timeout of a single classifier attempt.
func (a AIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMS) * time.Millisecond
}

// ClassifierConfig tunes the domain classifier.
type ClassifierConfig struct {
	MaxTags        int    `koanf:"max_tags"`
	MaxPaths       int    `koanf:"max_paths"`
	VocabularyPath string `koanf:"vocabulary_path"`
}

// ScoringConfig tunes the contribution scorer.
type ScoringConfig struct {
	HalfLifeDays    float64            `koanf:"half_life_days"`
	TypeMultipliers map[string]float64 `koanf:"type_multipliers"`
}

// ProfileConfig tunes profile aggregation.
type ProfileConfig struct {
	EvidenceRepos    int `koanf:"evidence_repos"`
	RecentWindowDays int `koanf:"recent_window_days"`
}

// MatchConfig tunes the match engine.
type MatchConfig struct {
	QueryTimeoutMS int `koanf:"query_timeout_ms"`
}

// MetricsConfig tunes the Prometheus metrics manager.
type MetricsConfig struct {
	Enabled           bool              `koanf:"enabled"`
	Namespace         string            `koanf:"namespace"`
	RefreshIntervalMS int               `koanf:"refresh_interval_ms"`
	Labels            map[string]string `koanf:"labels"`
}

// RefreshInterval returns how often gauge updaters run.
func (m MetricsConfig) RefreshInterval() time.Duration {
	return time.Duration(m.RefreshIntervalMS) * time.Millisecond
}

// QueryTimeout returns the per-query expansion timeout.
func (m MatchConfig) QueryTimeout() time.Duration {
	return time.Duration(m.QueryTimeoutMS) * time.Millisecond
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "json",
		Addr:               ":9080",
		QueueSize:          10_000,
		WorkerCount:        runtime.NumCPU() * 2,
		DedupeSize:         500_000,
		MaxSearchLimit:     100,
		DefaultSearchLimit: 20,
		Store: StoreConfig{
			Driver: StoreMemory,
		},
		AI: AIConfig{
			Provider:          ProviderNone,
			TimeoutMS:         8000,
			MaxRetries:        3,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Classifier: ClassifierConfig{
			MaxTags:  5,
			MaxPaths: 15,
		},
		Scoring: ScoringConfig{
			HalfLifeDays: 180,
		},
		Profile: ProfileConfig{
			EvidenceRepos:    5,
			RecentWindowDays: 90,
		},
		Match: MatchConfig{
			QueryTimeoutMS: 10_000,
		},
		Metrics: MetricsConfig{
			Enabled:           true,
			Namespace:         "devmatch",
			RefreshIntervalMS: 10_000,
		},
	}
}

// Validate checks invariants that the rest of the service relies on.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.MaxSearchLimit < 1:
		return fmt.Errorf("%w: max_search_limit must be at least 1", ErrInvalidConfig)
	case c.DefaultSearchLimit < 1 || c.DefaultSearchLimit > c.MaxSearchLimit:
		return fmt.Errorf("%w: default_search_limit must be within [1,%d]", ErrInvalidConfig, c.MaxSearchLimit)
	case c.Scoring.HalfLifeDays <= 0:
		return fmt.Errorf("%w: scoring.half_life_days must be positive", ErrInvalidConfig)
	case c.Classifier.MaxTags < 1 || c.Classifier.MaxPaths < 1:
		return fmt.Errorf("%w: classifier limits must be positive", ErrInvalidConfig)
	case c.Metrics.RefreshIntervalMS < 1:
		return fmt.Errorf("%w: metrics.refresh_interval_ms must be positive", ErrInvalidConfig)
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StoreBolt:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for the bolt driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store.driver %q", ErrInvalidConfig, c.Store.Driver)
	}

	switch c.AI.Provider {
	case ProviderNone, ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: unknown ai.provider %q", ErrInvalidConfig, c.AI.Provider)
	}
	return nil
}
