package ai

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/devmatch/pkg/logger"
)

// ResilientOption applies a configuration option to Resilient.
type ResilientOption func(*Resilient)

// WithRateLimit allows rps calls per second with the given burst.
// rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) ResilientOption {
	return func(r *Resilient) {
		if rps <= 0 {
			r.limiter = nil
			return
		}
		r.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithAttempts sets the total number of attempts, including the first.
func WithAttempts(n uint) ResilientOption {
	return func(r *Resilient) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithRetryDelay sets the base backoff delay and maximum jitter.
func WithRetryDelay(delay, jitter time.Duration) ResilientOption {
	return func(r *Resilient) {
		if delay > 0 {
			r.delay = delay
		}
		if jitter > 0 {
			r.jitter = jitter
		}
	}
}

// WithAttemptTimeout bounds each individual attempt.
func WithAttemptTimeout(d time.Duration) ResilientOption {
	return func(r *Resilient) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l logger.Logger) ResilientOption {
	return func(r *Resilient) {
		if l != nil {
			r.logger = l
		}
	}
}
