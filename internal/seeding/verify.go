package seeding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/devmatch/internal/domain/model"
	"github.com/okian/devmatch/internal/domain/tags"
	"github.com/okian/devmatch/internal/domain/types"
	"github.com/okian/devmatch/pkg/logger"
)

const (
	searchLimit = 5
	maxScore    = 100.0
)

// Settle polls /stats until the queue is empty on two consecutive polls and
// the service knows want developers, or cfg.Settle elapses.
func Settle(ctx context.Context, c *Client, cfg Config, want int, log logger.Logger) (types.Stats, error) {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, cfg.Settle)
	defer cancel()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	var (
		stats types.Stats
		quiet int
	)
	for {
		status, err := c.Get(ctx, "/stats", &stats)
		switch {
		case err != nil:
			log.Debug(ctx, "stats poll failed", logger.Error(err))
			quiet = 0
		case status != http.StatusOK:
			quiet = 0
		case stats.QueueLength == 0 && stats.DeveloperCount >= want:
			quiet++
			if quiet >= 2 {
				return stats, nil
			}
		default:
			quiet = 0
		}

		select {
		case <-ctx.Done():
			return stats, fmt.Errorf("%w: queue %d, developers %d/%d", ErrNotSettled, stats.QueueLength, stats.DeveloperCount, want)
		case <-ticker.C:
		}
	}
}

// verifier collects failed checks.
type verifier struct {
	checks   int
	failures []string
}

func (v *verifier) check(ok bool, format string, args ...any) {
	v.checks++
	if !ok {
		v.failures = append(v.failures, fmt.Sprintf(format, args...))
	}
}

// Verify exercises the read endpoints and the idempotent ingestion path
// against ds. It returns the number of checks run and every failure.
func Verify(ctx context.Context, c *Client, cfg Config, ds Dataset) (int, []string, error) {
	cfg = cfg.withDefaults()
	v := &verifier{}
	known := make(map[string]struct{}, len(ds.Developers))
	for _, d := range ds.Developers {
		known[d] = struct{}{}
	}
	repos := make(map[string]struct{}, len(ds.Repositories))
	for _, r := range ds.Repositories {
		repos[r.FullName] = struct{}{}
	}

	ranking, err := verifyRanking(ctx, c, v, known)
	if err != nil {
		return v.checks, v.failures, err
	}
	for _, e := range ranking[:min(cfg.Sample, len(ranking))] {
		if err := verifyProfile(ctx, c, v, e.Username, repos); err != nil {
			return v.checks, v.failures, err
		}
	}

	steps := []func(context.Context, *Client, *verifier, Dataset) error{
		verifyMissing,
		verifyDomains,
		verifySearch,
		verifyDuplicates,
	}
	if cfg.Token != "" {
		steps = append(steps, verifyAgent)
	}
	for _, step := range steps {
		if err := step(ctx, c, v, ds); err != nil {
			return v.checks, v.failures, err
		}
	}
	return v.checks, v.failures, nil
}

func verifyRanking(ctx context.Context, c *Client, v *verifier, known map[string]struct{}) ([]types.Entry, error) {
	var entries []types.Entry
	status, err := c.Get(ctx, "/api/developers?limit=100", &entries)
	if err != nil {
		return nil, err
	}
	v.check(status == http.StatusOK, "GET /api/developers returned %d", status)
	v.check(len(entries) > 0, "ranking is empty")

	for i, e := range entries {
		_, ok := known[e.Username]
		v.check(ok, "ranking lists unknown developer %q", e.Username)
		v.check(e.OverallImpact == nil || inRange(*e.OverallImpact), "impact of %s out of range", e.Username)
		if i == 0 {
			v.check(e.Rank == 1, "first rank is %d", e.Rank)
			continue
		}
		prev := entries[i-1]
		v.check(e.Rank >= prev.Rank, "rank of %s decreases", e.Username)
		v.check(impact(e) <= impact(prev), "%s outranks a higher impact", prev.Username)
	}
	return entries, nil
}

func verifyProfile(ctx context.Context, c *Client, v *verifier, username string, repos map[string]struct{}) error {
	var p model.RankedProfile
	status, err := c.Get(ctx, "/api/developers/"+url.PathEscape(username), &p)
	if err != nil {
		return err
	}
	v.check(status == http.StatusOK, "GET profile %s returned %d", username, status)
	v.check(p.Developer == username, "profile %s reports username %q", username, p.Developer)
	v.check(p.Rank >= 1, "profile %s has rank %d", username, p.Rank)

	for name, s := range map[string]*float64{
		"overallImpact":        p.OverallImpact,
		"codeQuality":          p.CodeQuality,
		"reviewQuality":        p.ReviewQuality,
		"documentationQuality": p.DocumentationQuality,
		"collaborationBreadth": p.CollaborationBreadth,
		"consistencyScore":     p.Consistency,
		"recentActivityScore":  p.RecentActivity,
	} {
		v.check(s == nil || inRange(*s), "%s of %s out of range", name, username)
	}
	for _, d := range p.Domains {
		v.check(!tags.IsLanguage(d.Domain), "%s has language %q as a domain", username, d.Domain)
		v.check(inRange(d.Score), "domain %s of %s out of range", d.Domain, username)
		for _, r := range strings.Split(d.EvidenceRepos, ",") {
			if r = strings.TrimSpace(r); r == "" {
				continue
			}
			_, ok := repos[r]
			v.check(ok, "%s cites unknown evidence repo %q", username, r)
		}
	}
	for _, l := range p.Languages {
		v.check(inRange(l.Score), "language %s of %s out of range", l.Language, username)
	}
	return nil
}

func verifyMissing(ctx context.Context, c *Client, v *verifier, _ Dataset) error {
	var body map[string]string
	status, err := c.Get(ctx, "/api/developers/ghost-"+uuid.NewString(), &body)
	if err != nil {
		return err
	}
	v.check(status == http.StatusNotFound, "unknown developer returned %d", status)
	v.check(body["error"] == "not_found", "unknown developer error is %q", body["error"])
	return nil
}

func verifyDomains(ctx context.Context, c *Client, v *verifier, _ Dataset) error {
	var domains []model.DomainSummary
	status, err := c.Get(ctx, "/api/domains", &domains)
	if err != nil {
		return err
	}
	v.check(status == http.StatusOK, "GET /api/domains returned %d", status)
	v.check(slices.IsSortedFunc(domains, func(a, b model.DomainSummary) int {
		if a.DeveloperCount != b.DeveloperCount {
			return b.DeveloperCount - a.DeveloperCount
		}
		return strings.Compare(a.Domain, b.Domain)
	}), "domains are not ordered by developer count")
	for _, d := range domains {
		v.check(d.DeveloperCount > 0, "domain %s has no developers", d.Domain)
		v.check(inRange(d.AvgScore), "domain %s average out of range", d.Domain)
	}
	return nil
}

func verifySearch(ctx context.Context, c *Client, v *verifier, ds Dataset) error {
	if len(ds.Repositories) == 0 {
		return nil
	}
	repo := ds.Repositories[0]
	q := model.Query{Description: repo.Description, Stacks: repo.Topics, Limit: searchLimit}

	var results []model.MatchResult
	status, err := c.Do(ctx, http.MethodPost, "/api/search", q, &results)
	if err != nil {
		return err
	}
	v.check(status == http.StatusOK, "POST /api/search returned %d", status)
	v.check(len(results) <= searchLimit, "search returned %d results for limit %d", len(results), searchLimit)
	for i, r := range results {
		v.check(r.Confidence >= 0 && r.Confidence <= 100, "confidence of %s is %d", r.Developer, r.Confidence)
		v.check(i == 0 || r.Confidence <= results[i-1].Confidence, "search results are not ordered by confidence")
	}

	q.Limit = 0
	status, err = c.Do(ctx, http.MethodPost, "/api/search", q, nil)
	if err != nil {
		return err
	}
	v.check(status == http.StatusBadRequest, "search with limit 0 returned %d", status)
	return nil
}

// verifyDuplicates resubmits the first records and expects them all to be
// recognized.
func verifyDuplicates(ctx context.Context, c *Client, v *verifier, ds Dataset) error {
	if len(ds.Contributions) == 0 {
		return nil
	}
	head := ds.Contributions[:min(3, len(ds.Contributions))]
	var ack types.IngestAck
	status, err := c.Do(ctx, http.MethodPost, "/api/contributions",
		contributionBatch{Repositories: ds.Repositories, Contributions: head}, &ack)
	if err != nil {
		return err
	}
	v.check(status == http.StatusOK, "resubmission returned %d", status)
	v.check(ack.Accepted == 0 && ack.Duplicates == len(head), "resubmission acked %d accepted, %d duplicates", ack.Accepted, ack.Duplicates)
	return nil
}

func verifyAgent(ctx context.Context, c *Client, v *verifier, _ Dataset) error {
	status, err := c.Get(ctx, "/api/agent/domains", nil)
	if err != nil {
		return err
	}
	v.check(status == http.StatusOK, "agent domains returned %d", status)
	return nil
}

func inRange(x float64) bool { return x >= 0 && x <= maxScore }

func impact(e types.Entry) float64 {
	if e.OverallImpact == nil {
		return -1
	}
	return *e.OverallImpact
}
