package seeding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/devmatch/pkg/logger"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run generates a dataset, submits it, waits for the pipeline to settle,
// and verifies the read endpoints.
func Run(ctx context.Context, cfg Config, log logger.Logger) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	cfg = cfg.withDefaults()
	start := time.Now()
	report := Report{Seed: cfg.Seed}

	log.Info(ctx, "starting seeding run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("developers", cfg.Developers),
		logger.Int("contributions", cfg.Contributions),
		logger.Int("reviews", cfg.Reviews),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", cfg.Seed),
	)

	client := NewClient(cfg.BaseURL, cfg.Token, cfg.Timeout)
	status, err := client.Get(ctx, "/healthz", nil)
	if err != nil {
		return report, fmt.Errorf("service health check: %w", err)
	}
	if status != http.StatusOK {
		return report, fmt.Errorf("%w: /healthz returned %d", ErrUnexpectedStatus, status)
	}

	ds := Generate(cfg, time.Now())
	report.Generated = ds.Size()
	if cfg.OutputFile != "" {
		if err := SaveDataset(cfg.OutputFile, ds); err != nil {
			log.Warn(ctx, "failed to save dataset", logger.Error(err))
		}
	}

	tally, err := Submit(ctx, client, cfg, ds, log)
	report.Submitted = tally
	if err != nil {
		return report, fmt.Errorf("submit: %w", err)
	}

	stats, err := Settle(ctx, client, cfg, len(ds.Active()), log)
	report.Developers = stats.DeveloperCount
	if err != nil {
		return report, err
	}

	checks, failures, err := Verify(ctx, client, cfg, ds)
	report.Checks, report.Failures = checks, failures
	report.Duration = time.Since(start)
	if err != nil {
		return report, fmt.Errorf("verify: %w", err)
	}

	log.Info(ctx, "seeding run finished",
		logger.Int("generated", report.Generated),
		logger.Int("accepted", tally.Accepted),
		logger.Int("developers", report.Developers),
		logger.Int("checks", report.Checks),
		logger.Int("failures", len(report.Failures)),
		logger.Duration("duration", report.Duration),
	)
	if len(failures) > 0 {
		for _, f := range failures {
			log.Warn(ctx, "check failed", logger.String("check", f))
		}
		return report, fmt.Errorf("%w: %d of %d checks", ErrVerification, len(failures), checks)
	}
	return report, nil
}

// SaveDataset writes ds as indented JSON.
func SaveDataset(path string, ds Dataset) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	buf, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}
	if err := os.WriteFile(path, buf, filePermission); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}

// LoadDataset reads a dataset written by SaveDataset.
func LoadDataset(path string) (Dataset, error) {
	var ds Dataset
	buf, err := os.ReadFile(path)
	if err != nil {
		return ds, fmt.Errorf("read dataset: %w", err)
	}
	if err := json.Unmarshal(buf, &ds); err != nil {
		return ds, errors.Join(ErrInvalidConfig, fmt.Errorf("decode dataset: %w", err))
	}
	return ds, nil
}
