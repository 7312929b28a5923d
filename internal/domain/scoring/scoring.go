// Package scoring converts raw contribution and review statistics into
// bounded quality signals.
//
// All scores are in [0,100]. Scoring is pure arithmetic; the only
// non-input dependency is the clock used for recency weighting, which is
// injectable.
package scoring

import (
	"math"
	"time"

	"github.com/okian/devmatch/internal/domain/model"
)

// Scoring constants.
const (
	maxScoreValue = 100

	defaultHalfLife = 180 * 24 * time.Hour

	// Sub-term weights of the quality score.
	weightComplexity = 0.35
	weightEntropy    = 0.25
	weightTests      = 0.25
	weightSize       = 0.15

	neutral = 0.5

	complexityScale = 20.0
	entropyCeiling  = 4.0
	sizeReference   = 400.0
	sizeFloor       = 0.2

	minRepoWeight = 1.0
	maxRepoWeight = 2.0
)

// defaultTypeMultipliers down-weights low-signal change types.
var defaultTypeMultipliers = map[model.ContributionType]float64{
	model.TypeFeature:        1.0,
	model.TypeBugfix:         1.0,
	model.TypeRefactor:       1.0,
	model.TypeTest:           1.0,
	model.TypeInfrastructure: 1.0,
	model.TypeDocumentation:  0.9,
	model.TypeDependency:     0.4,
	model.TypeFormatting:     0.3,
	model.TypeGenerated:      0.2,
}

// Result is the outcome of scoring one contribution.
type Result struct {
	Quality float64
	Recency float64
}

// ContributionScorer computes quality and recency-weighted scores.
type ContributionScorer struct {
	halfLife    time.Duration
	multipliers map[model.ContributionType]float64
	now         func() time.Time
}

// NewContributionScorer creates a scorer with configuration options.
func NewContributionScorer(opts ...Option) *ContributionScorer {
	s := &ContributionScorer{
		halfLife:    defaultHalfLife,
		multipliers: make(map[model.ContributionType]float64, len(defaultTypeMultipliers)),
		now:         time.Now,
	}
	for t, m := range defaultTypeMultipliers {
		s.multipliers[t] = m
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Multiplier returns the type multiplier applied to t. Unknown or empty types
// are not down-weighted.
func (s *ContributionScorer) Multiplier(t model.ContributionType) float64 {
	if m, ok := s.multipliers[t]; ok {
		return m
	}
	return 1
}

// Score computes the quality score of c from m and decays it by the time
// elapsed since c was authored.
func (s *ContributionScorer) Score(c model.Contribution, m model.QualityMetrics) Result {
	weight := clamp(m.RepoWeight, minRepoWeight, maxRepoWeight)
	if m.RepoWeight == 0 {
		weight = minRepoWeight
	}

	raw := weightComplexity*complexityTerm(m.ComplexityDelta, weight) +
		weightEntropy*entropyTerm(m.Entropy) +
		weightTests*testTerm(m.TestCorrelation) +
		weightSize*sizeTerm(m.Lines)

	quality := clamp(maxScoreValue*raw*s.Multiplier(c.Type), 0, maxScoreValue)
	return Result{Quality: quality, Recency: s.Recency(quality, c.AuthoredAt)}
}

// Recency decays a stored quality score to the current time. It never
// exceeds quality.
func (s *ContributionScorer) Recency(quality float64, authoredAt time.Time) float64 {
	q := clamp(quality, 0, maxScoreValue)
	return clamp(q*s.Decay(authoredAt), 0, q)
}

// Decay is the recency factor in (0,1] for work authored at t. Future
// timestamps are treated as authored now.
func (s *ContributionScorer) Decay(t time.Time) float64 {
	elapsed := s.now().Sub(t)
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Pow(0.5, float64(elapsed)/float64(s.halfLife))
}

// complexityTerm rewards simplifying changes and penalizes complexity
// growth, then scales by the repository's significance.
func complexityTerm(delta *float64, repoWeight float64) float64 {
	base := neutral
	if delta != nil {
		base = neutral - neutral*math.Tanh(*delta/complexityScale)
	}
	return clamp(base*(0.75+0.25*repoWeight), 0, 1)
}

// entropyTerm penalizes dispersed, low-cohesion diffs.
func entropyTerm(entropy *float64) float64 {
	if entropy == nil {
		return neutral
	}
	return clamp(1-*entropy/entropyCeiling, 0, 1)
}

// testTerm maps the test-correlation signal onto [0,1].
func testTerm(tc *float64) float64 {
	if tc == nil {
		return neutral
	}
	v := clamp(*tc, model.MinTestCorrelation, model.MaxTestCorrelation)
	return (v - model.MinTestCorrelation) / (model.MaxTestCorrelation - model.MinTestCorrelation)
}

// sizeTerm favors reviewable change sizes; huge diffs bottom out at sizeFloor.
func sizeTerm(lines int) float64 {
	l := math.Max(float64(lines), 1)
	return clamp(1-math.Log10(l/sizeReference)/2, sizeFloor, 1)
}

// RepoWeight maps repository stars onto [1,2].
func RepoWeight(stars int) float64 {
	if stars <= 0 {
		return minRepoWeight
	}
	return clamp(1+math.Log10(1+float64(stars))/5, minRepoWeight, maxRepoWeight)
}

// Metrics derives the scorer input from a contribution and its repository.
// repo may be nil.
func Metrics(c model.Contribution, repo *model.Repository) model.QualityMetrics {
	m := model.QualityMetrics{
		ComplexityDelta: c.ComplexityDelta,
		Entropy:         c.Entropy,
		TestCorrelation: c.TestCorrelation,
		RepoWeight:      minRepoWeight,
		Lines:           c.Lines(),
	}
	if repo != nil {
		m.RepoWeight = RepoWeight(repo.Stars)
	}
	return m
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
