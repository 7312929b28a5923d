package service

import (
	"github.com/okian/devmatch/internal/adapters/repository"
	"github.com/okian/devmatch/internal/domain/classify"
	"github.com/okian/devmatch/internal/domain/match"
	"github.com/okian/devmatch/internal/domain/profile"
	"github.com/okian/devmatch/internal/domain/scoring"
	"github.com/okian/devmatch/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithReaggregateParallelism bounds concurrent profile rebuilds in
// ReaggregateAll.
func WithReaggregateParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithReaggregateOnStart rebuilds every stored profile during Start, so
// recency weighting catches up after a restart on a durable store.
func WithReaggregateOnStart(enabled bool) Option {
	return func(s *Service) {
		s.reaggregateOnStart = enabled
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the record store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithClassifier sets the domain classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithContributionScorer sets the contribution scorer.
func WithContributionScorer(sc *scoring.ContributionScorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithReviewScorer sets the review scorer.
func WithReviewScorer(rs *scoring.ReviewScorer) Option {
	return func(s *Service) {
		if rs != nil {
			s.reviewScorer = rs
		}
	}
}

// WithAggregator sets the profile aggregator.
func WithAggregator(a *profile.Aggregator) Option {
	return func(s *Service) {
		if a != nil {
			s.aggregator = a
		}
	}
}

// WithMatchEngine sets the match engine. Without it the service builds one
// on top of the classifier.
func WithMatchEngine(e *match.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}
