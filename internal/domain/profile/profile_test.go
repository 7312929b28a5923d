package profile_test

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/devmatch/internal/domain/model"
	"github.com/okian/devmatch/internal/domain/profile"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func contribution(id, repo string, daysAgo int, recency float64, domains ...string) model.ScoredContribution {
	return model.ScoredContribution{
		Contribution: model.Contribution{
			ID:         id,
			Developer:  "octocat",
			Repo:       repo,
			Kind:       model.KindCommit,
			AuthoredAt: now.Add(-time.Duration(daysAgo) * 24 * time.Hour),
		},
		Result: model.ContributionResult{
			Type:         model.TypeFeature,
			DomainTags:   domains,
			LanguageTags: []string{"go"},
			QualityScore: f(recency),
			RecencyScore: f(recency),
			RepoWeight:   1,
			Classified:   true,
			Scored:       true,
		},
	}
}

func review(id, author string, state model.ReviewState, depth float64, daysAgo int) model.ScoredReview {
	return model.ScoredReview{
		Review: model.Review{
			ID:          id,
			Reviewer:    "octocat",
			Repo:        "octo/reviewed",
			PRNumber:    1,
			PRAuthor:    author,
			State:       state,
			SubmittedAt: now.Add(-time.Duration(daysAgo) * 24 * time.Hour),
		},
		Result: model.ReviewResult{DepthScore: f(depth), Scored: true},
	}
}

func newAggregator() *profile.Aggregator {
	return profile.NewAggregator(profile.WithClock(func() time.Time { return now }))
}

func TestAggregate_Domains(t *testing.T) {
	Convey("Given contributions across domains and repositories", t, func() {
		cs := []model.ScoredContribution{
			contribution("c1", "octo/db", 10, 80, "databases", "caching"),
			contribution("c2", "octo/db", 40, 60, "databases"),
			contribution("c3", "octo/cache", 5, 90, "caching"),
		}
		weighted := contribution("c4", "octo/big", 20, 20, "databases")
		weighted.Result.RepoWeight = 2
		cs = append(cs, weighted)

		p := newAggregator().Aggregate("octocat", cs, nil)

		Convey("Then per-domain scores are repo-weighted means of recency scores", func() {
			So(len(p.Domains), ShouldEqual, 2)
			So(p.Domains[0].Domain, ShouldEqual, "caching")
			So(p.Domains[0].Score, ShouldEqual, 85.0)
			So(p.Domains[0].ContributionCount, ShouldEqual, 2)

			db := p.Domains[1]
			So(db.Domain, ShouldEqual, "databases")
			// (80 + 60 + 2*20) / 4
			So(db.Score, ShouldEqual, 45.0)
			So(db.ContributionCount, ShouldEqual, 3)
		})

		Convey("Then evidence repos are distinct and most recent first", func() {
			So(p.Domains[0].EvidenceRepos, ShouldEqual, "octo/cache,octo/db")
			So(p.Domains[1].EvidenceRepos, ShouldEqual, "octo/db,octo/big")
		})

		Convey("Then profile-level counters reflect the input", func() {
			So(p.ContributionCount, ShouldEqual, 4)
			So(p.Repositories, ShouldEqual, 3)
			So(p.LastActiveAt.Equal(now.Add(-5*24*time.Hour)), ShouldBeTrue)
			So(p.Languages, ShouldResemble, []model.LanguageScore{{Language: "go", Score: 54.0, ContributionCount: 4}})
		})
	})

	Convey("Given more evidence repositories than the cap", t, func() {
		var cs []model.ScoredContribution
		for i := 0; i < 8; i++ {
			cs = append(cs, contribution(fmt.Sprintf("c%d", i), fmt.Sprintf("org/r%d", i), i, 50, "networking"))
		}
		p := profile.NewAggregator(profile.WithClock(func() time.Time { return now }), profile.WithEvidenceRepos(3)).
			Aggregate("octocat", cs, nil)

		So(p.Domains[0].EvidenceRepos, ShouldEqual, "org/r0,org/r1,org/r2")
	})
}

func TestAggregate_NullScores(t *testing.T) {
	Convey("Given a developer with no records", t, func() {
		p := newAggregator().Aggregate("ghost", nil, nil)

		Convey("Then every sub-score is nil", func() {
			So(p.OverallImpact, ShouldBeNil)
			So(p.CodeQuality, ShouldBeNil)
			So(p.ReviewQuality, ShouldBeNil)
			So(p.DocumentationQuality, ShouldBeNil)
			So(p.CollaborationBreadth, ShouldBeNil)
			So(p.Consistency, ShouldBeNil)
			So(p.RecentActivity, ShouldBeNil)
			So(p.Domains, ShouldBeEmpty)
			So(p.LastActiveAt, ShouldBeNil)
		})
	})

	Convey("Given a developer with only reviews", t, func() {
		rs := []model.ScoredReview{
			review("r1", "alice", model.StateChangesRequested, 80, 3),
			review("r2", "bob", model.StateApproved, 10, 4),
		}
		p := newAggregator().Aggregate("octocat", nil, rs)

		Convey("Then contribution-derived scores are nil and review scores are set", func() {
			So(p.CodeQuality, ShouldBeNil)
			So(p.DocumentationQuality, ShouldBeNil)
			So(p.Consistency, ShouldBeNil)
			So(p.RecentActivity, ShouldBeNil)
			So(p.ReviewQuality, ShouldNotBeNil)
			So(p.CollaborationBreadth, ShouldNotBeNil)
			So(p.OverallImpact, ShouldNotBeNil)
		})

		Convey("Then review stats summarize depth and state", func() {
			So(p.ReviewStats.ReviewsGiven, ShouldEqual, 2)
			So(p.ReviewStats.AvgDepth, ShouldEqual, 45.0)
			So(p.ReviewStats.SubstantiveRatio, ShouldEqual, 0.5)
			So(p.ReviewStats.ChangeRequestRatio, ShouldEqual, 0.5)
			// 0.6*45 + 30*0.5 + 10*0.5
			So(*p.ReviewQuality, ShouldEqual, 47.0)
		})
	})

	Convey("Given only code contributions", t, func() {
		p := newAggregator().Aggregate("octocat", []model.ScoredContribution{contribution("c1", "a/b", 1, 70, "search")}, nil)

		Convey("Then documentation and review quality are nil, not zero", func() {
			So(p.DocumentationQuality, ShouldBeNil)
			So(p.ReviewQuality, ShouldBeNil)
			So(*p.CodeQuality, ShouldEqual, 70.0)
		})
	})

	Convey("Given unscored contributions", t, func() {
		c := contribution("c1", "a/b", 1, 70, "search")
		c.Result.Scored = false
		p := newAggregator().Aggregate("octocat", []model.ScoredContribution{c}, nil)

		So(p.ContributionCount, ShouldEqual, 0)
		So(p.CodeQuality, ShouldBeNil)
	})
}

func TestAggregate_SubScores(t *testing.T) {
	Convey("Given documentation and code work", t, func() {
		doc := contribution("d1", "a/docs", 2, 40, "developer-tooling")
		doc.Kind = model.KindDocumentation
		cs := []model.ScoredContribution{doc, contribution("c1", "a/code", 3, 80, "developer-tooling")}

		p := newAggregator().Aggregate("octocat", cs, nil)

		So(*p.DocumentationQuality, ShouldEqual, 40.0)
		So(*p.CodeQuality, ShouldEqual, 60.0)
	})

	Convey("Given steady versus bursty cadence", t, func() {
		var steady, bursty []model.ScoredContribution
		for i := 0; i < 8; i++ {
			steady = append(steady, contribution(fmt.Sprintf("s%d", i), "a/b", i*7, 50, "search"))
			bursty = append(bursty, contribution(fmt.Sprintf("b%d", i), "a/b", 0, 50, "search"))
		}
		bursty = append(bursty, contribution("b-old", "a/b", 49, 50, "search"))

		s := newAggregator().Aggregate("octocat", steady, nil)
		b := newAggregator().Aggregate("octocat", bursty, nil)

		So(*s.Consistency, ShouldEqual, 100.0)
		So(*b.Consistency, ShouldBeLessThan, *s.Consistency)
	})

	Convey("Given activity outside the recent window", t, func() {
		old := newAggregator().Aggregate("octocat", []model.ScoredContribution{contribution("c1", "a/b", 200, 90, "search")}, nil)
		fresh := newAggregator().Aggregate("octocat", []model.ScoredContribution{contribution("c1", "a/b", 2, 90, "search")}, nil)

		So(*old.RecentActivity, ShouldEqual, 0.0)
		So(*fresh.RecentActivity, ShouldBeGreaterThan, 0)
	})

	Convey("Given collaborators from reviews", t, func() {
		cs := []model.ScoredContribution{contribution("c1", "a/b", 2, 90, "search")}
		alone := newAggregator().Aggregate("octocat", cs, nil)
		social := newAggregator().Aggregate("octocat", cs, []model.ScoredReview{
			review("r1", "alice", model.StateCommented, 50, 1),
			review("r2", "bob", model.StateCommented, 50, 1),
			review("r3", "octocat", model.StateCommented, 50, 1),
		})

		So(*social.CollaborationBreadth, ShouldBeGreaterThan, *alone.CollaborationBreadth)
	})
}

func TestAggregate_Bounds(t *testing.T) {
	Convey("Given random record sets", t, func() {
		rng := rand.New(rand.NewSource(7))
		for round := 0; round < 50; round++ {
			var cs []model.ScoredContribution
			var rs []model.ScoredReview
			nc, nr := rng.Intn(30), rng.Intn(10)
			for i := 0; i < nc; i++ {
				c := contribution(fmt.Sprintf("c%d", i), fmt.Sprintf("r/%d", rng.Intn(5)), rng.Intn(700), rng.Float64()*100, "d"+fmt.Sprint(rng.Intn(4)))
				c.Result.RepoWeight = 1 + rng.Float64()
				cs = append(cs, c)
			}
			for i := 0; i < nr; i++ {
				rs = append(rs, review(fmt.Sprintf("r%d", i), fmt.Sprintf("u%d", rng.Intn(4)), model.StateCommented, rng.Float64()*100, rng.Intn(300)))
			}
			p := newAggregator().Aggregate("octocat", cs, rs)

			for _, v := range []*float64{p.OverallImpact, p.CodeQuality, p.ReviewQuality, p.DocumentationQuality,
				p.CollaborationBreadth, p.Consistency, p.RecentActivity} {
				if v != nil {
					So(*v, ShouldBeBetweenOrEqual, 0, 100)
				}
			}
			for _, d := range p.Domains {
				So(d.Score, ShouldBeBetweenOrEqual, 0, 100)
			}
		}
	})
}

func TestAggregate_OrderIndependence(t *testing.T) {
	Convey("Given the same records in two orders", t, func() {
		rng := rand.New(rand.NewSource(42))
		var cs []model.ScoredContribution
		for i := 0; i < 40; i++ {
			c := contribution(fmt.Sprintf("c%02d", i), fmt.Sprintf("org/r%d", i%6), rng.Intn(365), 100*rng.Float64(),
				[]string{"databases", "networking", "search"}[i%3])
			c.Result.RepoWeight = 1 + rng.Float64()
			cs = append(cs, c)
		}
		// identical timestamps exercise the id tie-break
		cs = append(cs, contribution("tie-b", "org/t", 3, 33.3, "search"), contribution("tie-a", "org/t", 3, 66.6, "search"))
		var rs []model.ScoredReview
		for i := 0; i < 12; i++ {
			rs = append(rs, review(fmt.Sprintf("r%02d", i), fmt.Sprintf("u%d", i%5), model.StateCommented, 100*rng.Float64(), rng.Intn(120)))
		}

		shuffled := append([]model.ScoredContribution(nil), cs...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		shuffledReviews := append([]model.ScoredReview(nil), rs...)
		rng.Shuffle(len(shuffledReviews), func(i, j int) {
			shuffledReviews[i], shuffledReviews[j] = shuffledReviews[j], shuffledReviews[i]
		})

		a := newAggregator().Aggregate("octocat", cs, rs)
		b := newAggregator().Aggregate("octocat", shuffled, shuffledReviews)

		Convey("Then the profiles are structurally equal", func() {
			So(cmp.Diff(a, b), ShouldBeEmpty)
		})

		Convey("Then the encoded profiles are byte-identical", func() {
			ja, err := json.Marshal(a)
			So(err, ShouldBeNil)
			jb, err := json.Marshal(b)
			So(err, ShouldBeNil)
			So(string(ja), ShouldEqual, string(jb))
		})
	})
}
