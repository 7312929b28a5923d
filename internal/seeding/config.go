// Package seeding generates synthetic contribution and review records,
// pushes them through the ingestion API of a running service, and checks
// the read endpoints against the invariants the pipeline promises.
package seeding

import (
	"fmt"
	"time"

	"github.com/okian/devmatch/internal/domain/model"
)

// Defaults used by cmd/seed.
const (
	DefaultDevelopers    = 25
	DefaultContributions = 500
	DefaultReviews       = 200
	DefaultBatchSize     = 50
	DefaultWorkers       = 4
	DefaultTimeout       = 30 * time.Second
	DefaultSettle        = 2 * time.Minute
	DefaultSample        = 10
)

// Config holds the settings of one seeding run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Token         string        // Bearer token for agent routes, optional
	Developers    int           // Number of synthetic developers
	Contributions int           // Number of contributions to generate
	Reviews       int           // Number of reviews to generate
	BatchSize     int           // Records per ingestion request
	Workers       int           // Concurrent submissions
	Attempts      uint          // Attempts per batch while the queue pushes back
	Timeout       time.Duration // HTTP request timeout
	Settle        time.Duration // How long to wait for the queue to drain
	PollInterval  time.Duration // How often /stats is polled while settling
	Sample        int           // Profiles fetched individually during verification
	Seed          uint64        // Generator seed; zero picks one from the clock
	OutputFile    string        // Where the generated dataset is written, optional
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:9080"
	}
	if c.Developers <= 0 {
		c.Developers = DefaultDevelopers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Attempts == 0 {
		c.Attempts = 10
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Settle <= 0 {
		c.Settle = DefaultSettle
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.Sample <= 0 {
		c.Sample = DefaultSample
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
	return c
}

// Validate rejects settings that cannot produce a run.
func (c Config) Validate() error {
	if c.Contributions < 0 || c.Reviews < 0 {
		return fmt.Errorf("%w: record counts must be non-negative", ErrInvalidConfig)
	}
	if c.Contributions+c.Reviews == 0 {
		return fmt.Errorf("%w: nothing to generate", ErrInvalidConfig)
	}
	if c.Developers < 0 {
		return fmt.Errorf("%w: developers must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// Dataset is everything a run submits.
type Dataset struct {
	Developers    []string             `json:"developers"`
	Repositories  []model.Repository   `json:"repositories"`
	Contributions []model.Contribution `json:"contributions"`
	Reviews       []model.Review       `json:"reviews"`
}

// Tally counts ingestion outcomes.
type Tally struct {
	Requests   int `json:"requests"`
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	Rejected   int `json:"rejected"`
	Retries    int `json:"retries"`
}

func (t *Tally) add(o Tally) {
	t.Requests += o.Requests
	t.Accepted += o.Accepted
	t.Duplicates += o.Duplicates
	t.Rejected += o.Rejected
	t.Retries += o.Retries
}

// Report summarizes a run.
type Report struct {
	Seed       uint64        `json:"seed"`
	Generated  int           `json:"generated"`
	Submitted  Tally         `json:"submitted"`
	Developers int           `json:"developers"`
	Checks     int           `json:"checks"`
	Failures   []string      `json:"failures"`
	Duration   time.Duration `json:"duration"`
}
