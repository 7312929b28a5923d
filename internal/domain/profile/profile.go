// Package profile folds a developer's scored contributions and reviews into a
// DeveloperProfile.
//
// Aggregation is a pure function of the record set and the clock: inputs are
// sorted before any floating-point accumulation, so the same records in any
// order produce byte-identical output. A sub-score with no supporting
// evidence is nil, never 0.
package profile

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/okian/devmatch/internal/domain/model"
	"github.com/okian/devmatch/internal/domain/scoring"
)

// Aggregation constants.
const (
	maxScore = 100.0

	defaultEvidenceRepos = 5
	defaultRecentWindow  = 90 * 24 * time.Hour

	breadthScale        = 6.0
	collaboratorWeight  = 0.5
	recentVolumeScale   = 10.0
	minConsistencyWeeks = 4
	week                = 7 * 24 * time.Hour

	reviewDepthWeight     = 0.6
	reviewSubstantivePts  = 30.0
	reviewChangeReqPoints = 10.0
)

// Weights of each sub-score in overallImpact. Nil sub-scores are skipped and
// the remaining weights renormalized.
const (
	impactCode        = 0.40
	impactReview      = 0.20
	impactDocs        = 0.05
	impactBreadth     = 0.15
	impactConsistency = 0.10
	impactRecent      = 0.10
)

// Aggregator builds developer profiles.
type Aggregator struct {
	reviews       *scoring.ReviewScorer
	evidenceRepos int
	recentWindow  time.Duration
	now           func() time.Time
}

// NewAggregator creates an aggregator with configuration options.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		reviews:       scoring.NewReviewScorer(),
		evidenceRepos: defaultEvidenceRepos,
		recentWindow:  defaultRecentWindow,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate recomputes the full profile of developer from the complete set of
// its records. Unscored records are ignored. Inputs are not modified.
func (a *Aggregator) Aggregate(developer string, contributions []model.ScoredContribution, reviews []model.ScoredReview) model.DeveloperProfile {
	cs := scoredContributions(contributions)
	rs := scoredReviews(reviews)

	p := model.DeveloperProfile{
		Developer:         developer,
		Domains:           a.domains(cs),
		Languages:         languages(cs),
		ReviewStats:       a.reviewStats(rs),
		ContributionCount: len(cs),
		Repositories:      len(distinctRepos(cs, rs)),
		LastActiveAt:      lastActive(cs, rs),
	}

	p.CodeQuality = weightedRecency(cs, func(model.ScoredContribution) bool { return true })
	p.DocumentationQuality = weightedRecency(cs, model.ScoredContribution.IsDocumentation)
	p.ReviewQuality = reviewQuality(p.ReviewStats)
	p.CollaborationBreadth = collaborationBreadth(developer, cs, rs)
	p.Consistency = consistency(cs)
	p.RecentActivity = a.recentActivity(cs)
	p.OverallImpact = overallImpact(p.Scores)
	return p
}

func scoredContributions(in []model.ScoredContribution) []model.ScoredContribution {
	out := make([]model.ScoredContribution, 0, len(in))
	for _, c := range in {
		if c.IsScored() {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(x, y model.ScoredContribution) int {
		if c := x.AuthoredAt.Compare(y.AuthoredAt); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
	return out
}

func scoredReviews(in []model.ScoredReview) []model.ScoredReview {
	out := make([]model.ScoredReview, 0, len(in))
	for _, r := range in {
		if r.IsScored() {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(x, y model.ScoredReview) int {
		if c := x.SubmittedAt.Compare(y.SubmittedAt); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
	return out
}

func repoWeight(c model.ScoredContribution) float64 {
	if c.Result.RepoWeight > 0 {
		return c.Result.RepoWeight
	}
	return 1
}

type bucket struct {
	sumW, sumWS float64
	count       int
	lastSeen    map[string]time.Time
}

func (b *bucket) add(c model.ScoredContribution) {
	w := repoWeight(c)
	b.sumW += w
	b.sumWS += w * *c.Result.RecencyScore
	b.count++
	if b.lastSeen == nil {
		b.lastSeen = make(map[string]time.Time)
	}
	if t, ok := b.lastSeen[c.Repo]; !ok || c.AuthoredAt.After(t) {
		b.lastSeen[c.Repo] = c.AuthoredAt
	}
}

func (b *bucket) mean() float64 { return clamp(b.sumWS / b.sumW) }

func (a *Aggregator) domains(cs []model.ScoredContribution) []model.DomainScore {
	buckets := make(map[string]*bucket)
	for _, c := range cs {
		for _, tag := range c.Result.DomainTags {
			b, ok := buckets[tag]
			if !ok {
				b = &bucket{}
				buckets[tag] = b
			}
			b.add(c)
		}
	}

	out := make([]model.DomainScore, 0, len(buckets))
	for tag, b := range buckets {
		out = append(out, model.DomainScore{
			Domain:            tag,
			Score:             round2(b.mean()),
			ContributionCount: b.count,
			EvidenceRepos:     evidence(b.lastSeen, a.evidenceRepos),
		})
	}
	slices.SortFunc(out, func(x, y model.DomainScore) int {
		if c := cmp.Compare(y.Score, x.Score); c != 0 {
			return c
		}
		return cmp.Compare(x.Domain, y.Domain)
	})
	return out
}

// evidence lists up to limit repositories, most recently touched first.
func evidence(lastSeen map[string]time.Time, limit int) string {
	repos := make([]string, 0, len(lastSeen))
	for r := range lastSeen {
		repos = append(repos, r)
	}
	slices.SortFunc(repos, func(x, y string) int {
		if c := lastSeen[y].Compare(lastSeen[x]); c != 0 {
			return c
		}
		return cmp.Compare(x, y)
	})
	if limit > 0 && len(repos) > limit {
		repos = repos[:limit]
	}
	return strings.Join(repos, ",")
}

func languages(cs []model.ScoredContribution) []model.LanguageScore {
	buckets := make(map[string]*bucket)
	for _, c := range cs {
		for _, lang := range c.Result.LanguageTags {
			b, ok := buckets[lang]
			if !ok {
				b = &bucket{}
				buckets[lang] = b
			}
			b.add(c)
		}
	}
	out := make([]model.LanguageScore, 0, len(buckets))
	for lang, b := range buckets {
		out = append(out, model.LanguageScore{
			Language:          lang,
			Score:             round2(b.mean()),
			ContributionCount: b.count,
		})
	}
	slices.SortFunc(out, func(x, y model.LanguageScore) int {
		if c := cmp.Compare(y.ContributionCount, x.ContributionCount); c != 0 {
			return c
		}
		if c := cmp.Compare(y.Score, x.Score); c != 0 {
			return c
		}
		return cmp.Compare(x.Language, y.Language)
	})
	return out
}

func weightedRecency(cs []model.ScoredContribution, keep func(model.ScoredContribution) bool) *float64 {
	var b bucket
	for _, c := range cs {
		if keep(c) {
			b.add(c)
		}
	}
	if b.count == 0 {
		return nil
	}
	return ptr(round2(b.mean()))
}

func (a *Aggregator) reviewStats(rs []model.ScoredReview) model.ReviewStats {
	if len(rs) == 0 {
		return model.ReviewStats{}
	}
	var sum float64
	var substantive, changeReq int
	for _, r := range rs {
		d := *r.Result.DepthScore
		sum += d
		if a.reviews.Substantive(d) {
			substantive++
		}
		if r.State == model.StateChangesRequested {
			changeReq++
		}
	}
	n := float64(len(rs))
	return model.ReviewStats{
		ReviewsGiven:       len(rs),
		AvgDepth:           round2(sum / n),
		SubstantiveRatio:   round4(float64(substantive) / n),
		ChangeRequestRatio: round4(float64(changeReq) / n),
	}
}

func reviewQuality(st model.ReviewStats) *float64 {
	if st.ReviewsGiven == 0 {
		return nil
	}
	v := reviewDepthWeight*st.AvgDepth +
		reviewSubstantivePts*st.SubstantiveRatio +
		reviewChangeReqPoints*st.ChangeRequestRatio
	return ptr(round2(clamp(v)))
}

func distinctRepos(cs []model.ScoredContribution, rs []model.ScoredReview) map[string]struct{} {
	repos := make(map[string]struct{})
	for _, c := range cs {
		repos[c.Repo] = struct{}{}
	}
	for _, r := range rs {
		repos[r.Repo] = struct{}{}
	}
	return repos
}

func collaborationBreadth(developer string, cs []model.ScoredContribution, rs []model.ScoredReview) *float64 {
	if len(cs) == 0 && len(rs) == 0 {
		return nil
	}
	collaborators := make(map[string]struct{})
	for _, r := range rs {
		if r.PRAuthor != "" && !strings.EqualFold(r.PRAuthor, developer) {
			collaborators[strings.ToLower(r.PRAuthor)] = struct{}{}
		}
	}
	reach := float64(len(distinctRepos(cs, rs))) + collaboratorWeight*float64(len(collaborators))
	return ptr(round2(clamp(maxScore * (1 - math.Exp(-reach/breadthScale)))))
}

// consistency is 100/(1+CV) of weekly contribution counts between the first
// and last active week, over at least minConsistencyWeeks weeks.
func consistency(cs []model.ScoredContribution) *float64 {
	if len(cs) == 0 {
		return nil
	}
	first := weekIndex(cs[0].AuthoredAt)
	last := weekIndex(cs[len(cs)-1].AuthoredAt)
	n := int(last-first) + 1
	if n < minConsistencyWeeks {
		n = minConsistencyWeeks
	}
	counts := make([]float64, n)
	for _, c := range cs {
		counts[weekIndex(c.AuthoredAt)-first]++
	}

	var sum float64
	for _, v := range counts {
		sum += v
	}
	mean := sum / float64(n)
	var ss float64
	for _, v := range counts {
		ss += (v - mean) * (v - mean)
	}
	cv := math.Sqrt(ss/float64(n)) / mean
	return ptr(round2(clamp(maxScore / (1 + cv))))
}

func weekIndex(t time.Time) int64 {
	return t.Unix() / int64(week/time.Second)
}

// recentActivity is the saturating recency-weighted volume inside the
// trailing window.
func (a *Aggregator) recentActivity(cs []model.ScoredContribution) *float64 {
	if len(cs) == 0 {
		return nil
	}
	now := a.now()
	cutoff := now.Add(-a.recentWindow)
	var volume float64
	for _, c := range cs {
		if c.AuthoredAt.Before(cutoff) {
			continue
		}
		volume += *c.Result.RecencyScore / maxScore
	}
	return ptr(round2(clamp(maxScore * (1 - math.Exp(-volume/recentVolumeScale)))))
}

func overallImpact(s model.Scores) *float64 {
	parts := []struct {
		v *float64
		w float64
	}{
		{s.CodeQuality, impactCode},
		{s.ReviewQuality, impactReview},
		{s.DocumentationQuality, impactDocs},
		{s.CollaborationBreadth, impactBreadth},
		{s.Consistency, impactConsistency},
		{s.RecentActivity, impactRecent},
	}
	var sumW, sumWS float64
	for _, p := range parts {
		if p.v == nil {
			continue
		}
		sumW += p.w
		sumWS += p.w * *p.v
	}
	if sumW == 0 {
		return nil
	}
	return ptr(round2(clamp(sumWS / sumW)))
}

func lastActive(cs []model.ScoredContribution, rs []model.ScoredReview) *time.Time {
	var last time.Time
	if len(cs) > 0 {
		last = cs[len(cs)-1].AuthoredAt
	}
	if len(rs) > 0 && rs[len(rs)-1].SubmittedAt.After(last) {
		last = rs[len(rs)-1].SubmittedAt
	}
	if last.IsZero() {
		return nil
	}
	last = last.UTC()
	return &last
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(maxScore, v))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func ptr(v float64) *float64 { return &v }
