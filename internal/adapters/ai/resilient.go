package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/openai/openai-go/v3"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/okian/devmatch/internal/domain/classify"
	"github.com/okian/devmatch/pkg/logger"
	"github.com/okian/devmatch/pkg/metrics"
)

const (
	defaultAttempts    = 3
	defaultRetryDelay  = 250 * time.Millisecond
	defaultRetryJitter = 100 * time.Millisecond
)

var errRateLimitWait = errors.New("rate limit wait")

// Resilient wraps a Completer with client-side rate limiting, a per-attempt
// timeout, and retries of transient failures.
type Resilient struct {
	next     classify.Completer
	limiter  *rate.Limiter
	attempts uint
	delay    time.Duration
	jitter   time.Duration
	timeout  time.Duration
	logger   logger.Logger
}

// NewResilient wraps next.
func NewResilient(next classify.Completer, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		next:     next,
		attempts: defaultAttempts,
		delay:    defaultRetryDelay,
		jitter:   defaultRetryJitter,
		logger:   logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Complete calls the wrapped completer, waiting on the rate limiter before
// every attempt.
func (r *Resilient) Complete(ctx context.Context, system, prompt string) (string, error) {
	start := time.Now()
	out, err := retry.DoWithData(
		func() (string, error) {
			if r.limiter != nil {
				if err := r.limiter.Wait(ctx); err != nil {
					return "", fmt.Errorf("%w: %w", errRateLimitWait, err)
				}
			}
			actx := ctx
			if r.timeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(ctx, r.timeout)
				defer cancel()
			}
			return r.next.Complete(actx, system, prompt)
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.MaxJitter(r.jitter),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Debug(ctx, "retrying classifier call",
				logger.Int("attempt", int(n)+1),
				logger.Error(err),
			)
		}),
	)
	metrics.RecordClassifierCall(float64(time.Since(start).Microseconds())/1000, err != nil)
	if err != nil {
		r.logger.Warn(ctx, "classifier call failed", logger.Error(err))
		return "", err
	}
	return out, nil
}

// Budget returns the worst-case duration of Complete: every attempt running
// to its timeout plus the backoff between attempts. Rate-limit waits are not
// included. It is zero when attempts are unbounded in time.
func (r *Resilient) Budget() time.Duration {
	if r.timeout <= 0 {
		return 0
	}
	n := max(r.attempts, 1)
	total := time.Duration(n) * r.timeout
	for i := uint(0); i+1 < n; i++ {
		total += r.delay<<min(i, 16) + r.jitter
	}
	return total
}

// isRetryable reports whether err is a transient backend failure.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, errRateLimitWait) || errors.Is(err, ErrEmptyPrompt) ||
		errors.Is(err, ErrNotInitialized) || errors.Is(err, ErrMissingAPIKey) {
		return false
	}
	if code, ok := statusCode(err); ok {
		switch code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
	// Network errors, per-attempt timeouts, empty responses.
	return true
}

func statusCode(err error) (int, bool) {
	var gerr genai.APIError
	if errors.As(err, &gerr) {
		return gerr.Code, true
	}
	var gperr *genai.APIError
	if errors.As(err, &gperr) && gperr != nil {
		return gperr.Code, true
	}
	var oerr *openai.Error
	if errors.As(err, &oerr) && oerr != nil {
		return oerr.StatusCode, true
	}
	return 0, false
}
