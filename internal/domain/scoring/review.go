package scoring

import (
	"math"

	"github.com/okian/devmatch/internal/domain/model"
)

// Review depth constants.
const (
	lengthPoints      = 60.0
	lengthScale       = 800.0
	countPoints       = 25.0
	countScale        = 4.0
	codeRefBonus      = 10.0
	changeReqBonus    = 5.0
	dismissedPenalty  = 0.25
	defaultSubstThres = 40.0
)

// ReviewScorer computes the depth score of a code review.
type ReviewScorer struct {
	substantive float64
}

// ReviewOption configures a ReviewScorer.
type ReviewOption func(*ReviewScorer)

// WithSubstantiveThreshold sets the depth at which a review counts as substantive.
func WithSubstantiveThreshold(t float64) ReviewOption {
	return func(s *ReviewScorer) {
		if t > 0 && t <= maxScoreValue {
			s.substantive = t
		}
	}
}

// NewReviewScorer creates a review scorer.
func NewReviewScorer(opts ...ReviewOption) *ReviewScorer {
	s := &ReviewScorer{substantive: defaultSubstThres}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns the depth of r in [0,100]. Long, code-anchored,
// change-requesting reviews approach the ceiling; empty approvals sit at 0.
func (s *ReviewScorer) Score(r model.Review) float64 {
	length := math.Max(float64(r.CommentLength), 0)
	count := math.Max(float64(r.CommentCount), 0)

	depth := lengthPoints*(1-math.Exp(-length/lengthScale)) +
		countPoints*(1-math.Exp(-count/countScale))
	if r.ReferencesCode && count > 0 {
		depth += codeRefBonus
	}
	if r.State == model.StateChangesRequested {
		depth += changeReqBonus
	}
	if r.State == model.StateDismissed {
		depth *= dismissedPenalty
	}
	return clamp(depth, 0, maxScoreValue)
}

// Substantive reports whether depth meets the substantive threshold.
func (s *ReviewScorer) Substantive(depth float64) bool { return depth >= s.substantive }
