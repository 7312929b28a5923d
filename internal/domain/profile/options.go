package profile

import (
	"time"

	"github.com/okian/devmatch/internal/domain/scoring"
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithEvidenceRepos caps the evidence repositories listed per domain.
func WithEvidenceRepos(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.evidenceRepos = n
		}
	}
}

// WithRecentWindow sets the trailing window of the recent-activity score.
func WithRecentWindow(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.recentWindow = d
		}
	}
}

// WithReviewScorer sets the scorer whose substantive threshold is applied.
func WithReviewScorer(s *scoring.ReviewScorer) Option {
	return func(a *Aggregator) {
		if s != nil {
			a.reviews = s
		}
	}
}

// WithClock sets the time source for the recent-activity window.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}
