// Package match ranks developer profiles against a free-text project query.
package match

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/devmatch/internal/domain/classify"
	"github.com/okian/devmatch/internal/domain/model"
	"github.com/okian/devmatch/internal/domain/tags"
)

// Signal weights and limits.
const (
	stackWeight    = 1.0
	roleWeight     = 0.5
	languageWeight = 1.0
	languageValue  = 60.0
	maxScore       = 100.0

	topDomains   = 3
	topLanguages = 3

	defaultQueryTimeout = 10 * time.Second
)

// rankWeights weigh query-expansion tags by their position.
var rankWeights = []float64{1.0, 0.9, 0.8, 0.7, 0.6}

// Expander turns a free-text description into domain tags.
type Expander interface {
	Expand(ctx context.Context, description string) classify.Result
}

// Signal is one weighted query term.
type Signal struct {
	Term   string
	Weight float64
}

// Signals is the expanded form of a query.
type Signals struct {
	Domains   []Signal
	Languages []Signal
	// Expansion is the raw outcome of the description expansion.
	Expansion classify.Result
}

// Empty reports whether the query carries no domain signal. Language signals
// only boost candidates that already overlap on a domain.
func (s Signals) Empty() bool { return len(s.Domains) == 0 }

// Engine scores candidate profiles against queries.
type Engine struct {
	expander     Expander
	parallelism  int
	queryTimeout time.Duration
}

// New creates an Engine. A nil expander restricts matching to stacks and role.
func New(expander Expander, opts ...Option) *Engine {
	e := &Engine{
		expander:     expander,
		parallelism:  runtime.NumCPU(),
		queryTimeout: defaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Match expands q once and ranks candidates against it. Results are sorted by
// confidence desc, overall impact desc (nil last), developer asc, and capped
// at q.Limit. An empty query or pool yields an empty list, never an error.
func (e *Engine) Match(ctx context.Context, q model.Query, candidates []model.DeveloperProfile) ([]model.MatchResult, error) {
	if q.Limit < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, q.Limit)
	}
	if len(candidates) == 0 {
		return []model.MatchResult{}, nil
	}
	return e.Rank(ctx, q.Limit, e.Expand(ctx, q), candidates), nil
}

// Expand builds the weighted signals of q. Expansion failures are absorbed:
// the query falls back to its stacks and role.
func (e *Engine) Expand(ctx context.Context, q model.Query) Signals {
	var s Signals
	domains := make(map[string]float64)
	order := make([]string, 0)
	addDomain := func(tag string, w float64) {
		cur, ok := domains[tag]
		if !ok {
			order = append(order, tag)
		}
		if w > cur {
			domains[tag] = w
		}
	}

	if e.expander != nil && strings.TrimSpace(q.Description) != "" {
		ectx := ctx
		if e.queryTimeout > 0 {
			var cancel context.CancelFunc
			ectx, cancel = context.WithTimeout(ctx, e.queryTimeout)
			defer cancel()
		}
		s.Expansion = e.expander.Expand(ectx, q.Description)
		for i, tag := range s.Expansion.Tags {
			addDomain(tag, rankWeights[min(i, len(rankWeights)-1)])
		}
	}

	langs := make(map[string]struct{})
	for _, stack := range q.Stacks {
		if lang := classify.LanguageTag(stack); tags.IsLanguage(stack) || tags.IsLanguage(lang) {
			if _, dup := langs[lang]; !dup {
				langs[lang] = struct{}{}
				s.Languages = append(s.Languages, Signal{Term: lang, Weight: languageWeight})
			}
			continue
		}
		if tag, ok := tags.Tag(stack); ok {
			addDomain(tag, stackWeight)
		}
	}
	if tag, ok := tags.Tag(q.Role); ok {
		addDomain(tag, roleWeight)
	}

	for _, tag := range order {
		s.Domains = append(s.Domains, Signal{Term: tag, Weight: domains[tag]})
	}
	return s
}

// Rank scores every candidate against s in parallel. Candidates with no
// overlapping domain are excluded, whatever their languages. Cancellation
// yields an empty list.
func (e *Engine) Rank(ctx context.Context, limit int, s Signals, candidates []model.DeveloperProfile) []model.MatchResult {
	if s.Empty() || len(candidates) == 0 || limit < 1 {
		return []model.MatchResult{}
	}

	scored := make([]*model.MatchResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.parallelism, 1))
	for i := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scored[i] = score(s, candidates[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return []model.MatchResult{}
	}

	out := make([]model.MatchResult, 0, len(candidates))
	for _, r := range scored {
		if r != nil {
			out = append(out, *r)
		}
	}
	slices.SortFunc(out, compareResults)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func compareResults(a, b model.MatchResult) int {
	if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
		return c
	}
	if c := compareImpact(a.OverallImpact, b.OverallImpact); c != 0 {
		return c
	}
	return cmp.Compare(a.Developer, b.Developer)
}

// compareImpact orders higher impact first and nil last.
func compareImpact(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return cmp.Compare(*b, *a)
}

type domainHit struct {
	domain model.DomainScore
	value  float64
}

func score(s Signals, p model.DeveloperProfile) *model.MatchResult {
	byDomain := make(map[string]model.DomainScore, len(p.Domains))
	for _, d := range p.Domains {
		byDomain[d.Domain] = d
	}
	langs := make(map[string]model.LanguageScore, len(p.Languages))
	for _, l := range p.Languages {
		langs[l.Language] = l
	}

	var num, den float64
	var hits []domainHit
	for _, sig := range s.Domains {
		den += sig.Weight * maxScore
		if d, ok := byDomain[sig.Term]; ok {
			v := sig.Weight * d.Score
			num += v
			hits = append(hits, domainHit{domain: d, value: v})
		}
	}
	if len(hits) == 0 {
		return nil
	}
	var langHits []model.LanguageScore
	for _, sig := range s.Languages {
		den += sig.Weight * maxScore
		if l, ok := langs[sig.Term]; ok {
			num += sig.Weight * languageValue
			langHits = append(langHits, l)
		}
	}

	slices.SortStableFunc(hits, func(a, b domainHit) int {
		if c := cmp.Compare(b.value, a.value); c != 0 {
			return c
		}
		return cmp.Compare(a.domain.Domain, b.domain.Domain)
	})

	conf := 0
	if den > 0 {
		conf = int(math.Round(maxScore * num / den))
		conf = max(0, min(int(maxScore), conf))
	}

	return &model.MatchResult{
		Developer:    p.Developer,
		Scores:       p.Scores,
		TopDomains:   pickDomains(hits, p.Domains),
		TopLanguages: pickLanguages(p.Languages),
		Confidence:   conf,
		WhyMatched:   whyMatched(hits, langHits),
	}
}

// pickDomains lists matched domains first, then the profile's strongest.
func pickDomains(hits []domainHit, all []model.DomainScore) []model.DomainScore {
	out := make([]model.DomainScore, 0, topDomains)
	seen := make(map[string]struct{}, topDomains)
	for _, h := range hits {
		if len(out) == topDomains {
			return out
		}
		out = append(out, h.domain)
		seen[h.domain.Domain] = struct{}{}
	}
	for _, d := range all {
		if len(out) == topDomains {
			break
		}
		if _, ok := seen[d.Domain]; !ok {
			out = append(out, d)
		}
	}
	return out
}

func pickLanguages(all []model.LanguageScore) []string {
	out := make([]string, 0, topLanguages)
	for _, l := range all {
		if len(out) == topLanguages {
			break
		}
		out = append(out, l.Language)
	}
	return out
}

// whyMatched explains the strongest domain hit. hits is never empty.
func whyMatched(hits []domainHit, langHits []model.LanguageScore) string {
	d := hits[0].domain
	why := fmt.Sprintf("Strongest match in %s: score %.0f from %d %s (%s).",
		d.Domain, d.Score, d.ContributionCount, plural(d.ContributionCount, "contribution"), d.EvidenceRepos)
	if len(langHits) > 0 {
		names := make([]string, 0, len(langHits))
		for _, l := range langHits {
			names = append(names, l.Language)
		}
		why += fmt.Sprintf(" Also writes %s.", strings.Join(names, ", "))
	}
	return why
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
