// Package main provides the seed CLI, which loads synthetic records into a
// running service and verifies what it serves back.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/devmatch/internal/seeding"
	"github.com/okian/devmatch/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		cfg       seeding.Config
		logFormat string
		logLevel  string
		report    bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load synthetic contributions and reviews into devmatch and verify the results",
		Long: `seed generates synthetic developers, repositories, contributions and
reviews, submits them through the ingestion API, waits for the pipeline to
drain, and checks the search, developer and domain endpoints.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWithFormat(logFormat); err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			defer func() { _ = logger.Sync() }()
			if err := logger.SetLevelString(logLevel); err != nil {
				return fmt.Errorf("log level: %w", err)
			}

			if cfg.Token == "" {
				cfg.Token = os.Getenv("DEVMATCH_API_TOKEN")
			}
			out, err := seeding.Run(cmd.Context(), cfg, logger.Get().Named("seed"))
			if report {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				_ = enc.Encode(out)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "base URL of the service")
	f.StringVar(&cfg.Token, "token", "", "bearer token for agent routes (default $DEVMATCH_API_TOKEN)")
	f.IntVar(&cfg.Developers, "developers", seeding.DefaultDevelopers, "number of synthetic developers")
	f.IntVar(&cfg.Contributions, "contributions", seeding.DefaultContributions, "number of contributions to generate")
	f.IntVar(&cfg.Reviews, "reviews", seeding.DefaultReviews, "number of reviews to generate")
	f.IntVar(&cfg.BatchSize, "batch", seeding.DefaultBatchSize, "records per ingestion request")
	f.IntVarP(&cfg.Workers, "workers", "w", seeding.DefaultWorkers, "concurrent submissions")
	f.UintVar(&cfg.Attempts, "attempts", 10, "attempts per batch while the queue pushes back")
	f.DurationVar(&cfg.Timeout, "timeout", seeding.DefaultTimeout, "HTTP request timeout")
	f.DurationVar(&cfg.Settle, "settle", seeding.DefaultSettle, "how long to wait for the queue to drain")
	f.IntVar(&cfg.Sample, "sample", seeding.DefaultSample, "profiles fetched individually during verification")
	f.Uint64Var(&cfg.Seed, "seed", 0, "generator seed (default: from the clock)")
	f.StringVarP(&cfg.OutputFile, "output", "o", "", "write the generated dataset to this file")
	f.StringVar(&logFormat, "log-format", "console", "log encoder: json or console")
	f.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	f.BoolVar(&report, "report", false, "print the run report as JSON")

	return cmd
}
