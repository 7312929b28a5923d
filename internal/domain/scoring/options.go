package scoring

import (
	"time"

	"github.com/okian/devmatch/internal/domain/model"
)

// Option applies a configuration option to the ContributionScorer.
type Option func(*ContributionScorer)

// WithHalfLife sets the recency half-life.
func WithHalfLife(d time.Duration) Option {
	return func(s *ContributionScorer) {
		if d > 0 {
			s.halfLife = d
		}
	}
}

// WithHalfLifeDays sets the recency half-life in days.
func WithHalfLifeDays(days float64) Option {
	return WithHalfLife(time.Duration(days * float64(24*time.Hour)))
}

// WithTypeMultipliers overrides type multipliers from a configuration map.
// Values are clamped to [0,1] so no type can inflate a score; unknown types
// are ignored.
func WithTypeMultipliers(m map[string]float64) Option {
	return func(s *ContributionScorer) {
		for k, v := range m {
			t := model.ContributionType(k)
			if !t.Valid() {
				continue
			}
			s.multipliers[t] = clamp(v, 0, 1)
		}
	}
}

// WithClock sets the time source used for recency weighting.
func WithClock(now func() time.Time) Option {
	return func(s *ContributionScorer) {
		if now != nil {
			s.now = now
		}
	}
}
