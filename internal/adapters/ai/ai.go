// Package ai adapts hosted language-model APIs to the classifier's
// Completer capability.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/devmatch/internal/config"
	"github.com/okian/devmatch/internal/domain/classify"
	"github.com/okian/devmatch/pkg/logger"
)

// New builds the configured completer wrapped in Resilient. It returns a nil
// Completer for the "none" provider, which leaves the classifier curated-only.
func New(ctx context.Context, cfg config.AIConfig, log logger.Logger) (classify.Completer, error) {
	var (
		backend classify.Completer
		err     error
	)
	switch cfg.Provider {
	case config.ProviderNone, "":
		return nil, nil
	case config.ProviderGemini:
		backend, err = NewGemini(ctx, cfg.APIKey, cfg.Model)
	case config.ProviderOpenAI:
		backend, err = NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewResilient(backend, resilientOptions(cfg, log)...), nil
}

// Budget is the longest a configured completer may spend on one call across
// all its attempts and retry delays. Callers bounding a whole classification
// use it so that retries of timed-out attempts still fit.
func Budget(cfg config.AIConfig) time.Duration {
	return NewResilient(nil, resilientOptions(cfg, nil)...).Budget()
}

func resilientOptions(cfg config.AIConfig, log logger.Logger) []ResilientOption {
	return []ResilientOption{
		WithAttempts(uint(max(cfg.MaxRetries, 0)) + 1),
		WithAttemptTimeout(cfg.Timeout()),
		WithRateLimit(cfg.RequestsPerSecond, cfg.Burst),
		WithLogger(log),
	}
}
