package seeding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/sync/errgroup"

	"github.com/okian/devmatch/internal/domain/model"
	"github.com/okian/devmatch/internal/domain/types"
	"github.com/okian/devmatch/pkg/logger"
)

const (
	retryDelay  = 200 * time.Millisecond
	retryJitter = 100 * time.Millisecond
)

type contributionBatch struct {
	Repositories  []model.Repository   `json:"repositories"`
	Contributions []model.Contribution `json:"contributions"`
}

type reviewBatch struct {
	Repositories []model.Repository `json:"repositories"`
	Reviews      []model.Review     `json:"reviews"`
}

// Submit posts ds in batches of cfg.BatchSize with cfg.Workers concurrent
// requests. Records the queue refuses are resubmitted until accepted or
// cfg.Attempts runs out.
func Submit(ctx context.Context, c *Client, cfg Config, ds Dataset, log logger.Logger) (Tally, error) {
	cfg = cfg.withDefaults()
	var (
		mu    sync.Mutex
		total Tally
	)
	record := func(t Tally) {
		mu.Lock()
		total.add(t)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for _, batch := range chunk(ds.Contributions, cfg.BatchSize) {
		g.Go(func() error {
			t, err := submitBatch(gctx, c, cfg, "/api/contributions", batch,
				func(cs []model.Contribution) any { return contributionBatch{Repositories: ds.Repositories, Contributions: cs} },
				func(x model.Contribution) string { return x.ID })
			record(t)
			return err
		})
	}
	for _, batch := range chunk(ds.Reviews, cfg.BatchSize) {
		g.Go(func() error {
			t, err := submitBatch(gctx, c, cfg, "/api/reviews", batch,
				func(rs []model.Review) any { return reviewBatch{Repositories: ds.Repositories, Reviews: rs} },
				func(x model.Review) string { return x.ID })
			record(t)
			return err
		})
	}

	err := g.Wait()
	log.Info(ctx, "submission finished",
		logger.Int("requests", total.Requests),
		logger.Int("accepted", total.Accepted),
		logger.Int("duplicates", total.Duplicates),
		logger.Int("rejected", total.Rejected),
		logger.Int("retries", total.Retries),
	)
	return total, err
}

// submitBatch posts one batch, resubmitting the throttled subset.
func submitBatch[T any](ctx context.Context, c *Client, cfg Config, path string, batch []T,
	wrap func([]T) any, id func(T) string,
) (Tally, error) {
	var t Tally
	pending := batch

	_, err := retry.DoWithData(
		func() (struct{}, error) {
			var ack types.IngestAck
			status, err := c.Do(ctx, http.MethodPost, path, wrap(pending), &ack)
			t.Requests++
			if err != nil {
				return struct{}{}, err
			}
			switch status {
			case http.StatusAccepted, http.StatusOK, http.StatusBadRequest, http.StatusTooManyRequests:
			default:
				return struct{}{}, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, path, status)
			}

			throttled := make(map[string]struct{})
			for _, r := range ack.Rejected {
				if r.Reason == types.ReasonBackpressure {
					throttled[r.ID] = struct{}{}
				}
			}
			t.Accepted += ack.Accepted
			t.Duplicates += ack.Duplicates
			t.Rejected += len(ack.Rejected) - len(throttled)

			next := pending[:0:0]
			for _, rec := range pending {
				if _, ok := throttled[id(rec)]; ok {
					next = append(next, rec)
				}
			}
			pending = next
			if len(pending) > 0 {
				return struct{}{}, fmt.Errorf("%w: %d records", ErrThrottled, len(pending))
			}
			return struct{}{}, nil
		},
		retry.Context(ctx),
		retry.Attempts(cfg.Attempts),
		retry.Delay(retryDelay),
		retry.MaxJitter(retryJitter),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(uint, error) { t.Retries++ }),
	)
	return t, err
}

// isRetryable keeps retrying throttled batches and transport failures.
func isRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrUnexpectedStatus)
}

func chunk[T any](in []T, size int) [][]T {
	var out [][]T
	for len(in) > 0 {
		n := min(size, len(in))
		out = append(out, in[:n:n])
		in = in[n:]
	}
	return out
}
