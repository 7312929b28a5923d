package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/okian/devmatch/internal/adapters/repository"
	"github.com/okian/devmatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type storeFactory struct {
	name string
	open func(t *testing.T) repository.Store
}

func factories() []storeFactory {
	return []storeFactory{
		{"memory", func(*testing.T) repository.Store { return repository.NewMemoryStore() }},
		{"bolt", func(t *testing.T) repository.Store {
			s, err := repository.OpenBoltStore(filepath.Join(t.TempDir(), "devmatch.db"))
			if err != nil {
				t.Fatalf("open bolt store: %v", err)
			}
			return s
		}},
	}
}

func f(v float64) *float64 { return &v }

var authored = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func contribution(dev, id string) model.ScoredContribution {
	return model.ScoredContribution{
		Contribution: model.Contribution{
			ID: id, Developer: dev, Repo: "org/api", Kind: model.KindCommit,
			AuthoredAt: authored, Message: "feat: add retries", Additions: 10, Deletions: 2,
			FilePaths: []string{"client/retry.go"},
		},
		Result: model.ContributionResult{
			Type: model.TypeFeature, DomainTags: []string{"http-client"}, LanguageTags: []string{"go"},
			QualityScore: f(70), RecencyScore: f(60), RepoWeight: 1.2, Classified: true, Scored: true,
		},
	}
}

func review(reviewer, id string) model.ScoredReview {
	return model.ScoredReview{
		Review: model.Review{
			ID: id, Reviewer: reviewer, Repo: "org/api", PRNumber: 7, PRAuthor: "someone",
			State: model.StateApproved, CommentCount: 2, CommentLength: 300, SubmittedAt: authored,
		},
		Result: model.ReviewResult{DepthScore: f(41.5), Scored: true},
	}
}

func TestStores(t *testing.T) {
	for _, fac := range factories() {
		Convey("Given a "+fac.name+" store", t, func() {
			ctx := context.Background()
			s := fac.open(t)
			Reset(func() { _ = s.Close() })

			Convey("When saving records for two developers", func() {
				So(s.SaveContribution(ctx, contribution("alice", "c2")), ShouldBeNil)
				So(s.SaveContribution(ctx, contribution("alice", "c1")), ShouldBeNil)
				So(s.SaveContribution(ctx, contribution("alicex", "c9")), ShouldBeNil)
				So(s.SaveReview(ctx, review("alice", "r1")), ShouldBeNil)
				So(s.SaveReview(ctx, review("bob", "r2")), ShouldBeNil)

				Convey("Then records are scoped by developer and sorted by id", func() {
					recs, err := s.DeveloperRecords(ctx, "alice")
					So(err, ShouldBeNil)
					So(len(recs.Contributions), ShouldEqual, 2)
					So(recs.Contributions[0].ID, ShouldEqual, "c1")
					So(recs.Contributions[1].ID, ShouldEqual, "c2")
					So(len(recs.Reviews), ShouldEqual, 1)
					So(cmp.Diff(contribution("alice", "c1"), recs.Contributions[0]), ShouldBeEmpty)
					So(cmp.Diff(review("alice", "r1"), recs.Reviews[0]), ShouldBeEmpty)
				})

				Convey("Then developers are listed once, sorted", func() {
					devs, err := s.Developers(ctx)
					So(err, ShouldBeNil)
					So(devs, ShouldResemble, []string{"alice", "alicex", "bob"})
				})

				Convey("Then saving the same key overwrites", func() {
					c := contribution("alice", "c1")
					c.Result.QualityScore = f(12)
					So(s.SaveContribution(ctx, c), ShouldBeNil)
					recs, _ := s.DeveloperRecords(ctx, "alice")
					So(len(recs.Contributions), ShouldEqual, 2)
					So(*recs.Contributions[0].Result.QualityScore, ShouldEqual, 12.0)
				})
			})

			Convey("When reading an unknown developer", func() {
				recs, err := s.DeveloperRecords(ctx, "ghost")

				Convey("Then empty records are returned", func() {
					So(err, ShouldBeNil)
					So(recs.Contributions, ShouldBeEmpty)
					So(recs.Reviews, ShouldBeEmpty)
				})
			})

			Convey("When saving records without keys", func() {
				So(errors.Is(s.SaveContribution(ctx, contribution("", "c1")), repository.ErrInvalidKey), ShouldBeTrue)
				So(errors.Is(s.SaveReview(ctx, review("bob", "")), repository.ErrInvalidKey), ShouldBeTrue)
				So(errors.Is(s.SaveProfile(ctx, model.DeveloperProfile{}), repository.ErrInvalidKey), ShouldBeTrue)
			})

			Convey("When saving repository metadata", func() {
				So(s.SaveRepository(ctx, model.Repository{FullName: "Org/API", Topics: []string{"http"}, Stars: 120}), ShouldBeNil)

				Convey("Then lookups are case-insensitive", func() {
					r, err := s.Repository(ctx, "org/api")
					So(err, ShouldBeNil)
					So(r.Stars, ShouldEqual, 120)
					So(r.Topics, ShouldResemble, []string{"http"})
				})

				Convey("Then unknown repositories are not found", func() {
					_, err := s.Repository(ctx, "org/other")
					So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				})
			})

			Convey("When saving profiles", func() {
				p1 := model.DeveloperProfile{Developer: "bob", ContributionCount: 3}
				p1.OverallImpact = f(40)
				p2 := model.DeveloperProfile{Developer: "alice", ContributionCount: 9,
					Domains: []model.DomainScore{{Domain: "http-client", Score: 70, ContributionCount: 9, EvidenceRepos: "org/api"}}}
				p2.OverallImpact = f(80)
				p3 := model.DeveloperProfile{Developer: "carol"}
				So(s.SaveProfile(ctx, p1), ShouldBeNil)
				So(s.SaveProfile(ctx, p2), ShouldBeNil)
				So(s.SaveProfile(ctx, p3), ShouldBeNil)

				Convey("Then profiles are listed by developer", func() {
					ps, err := s.Profiles(ctx)
					So(err, ShouldBeNil)
					So(len(ps), ShouldEqual, 3)
					So(ps[0].Developer, ShouldEqual, "alice")
					So(cmp.Diff(p2, ps[0]), ShouldBeEmpty)

					p, err := s.Profile(ctx, "bob")
					So(err, ShouldBeNil)
					So(*p.OverallImpact, ShouldEqual, 40.0)

					_, err = s.Profile(ctx, "ghost")
					So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				})

				Convey("Then the impact ranking follows overall impact", func() {
					top, err := s.TopN(ctx, 10)
					So(err, ShouldBeNil)
					So(len(top), ShouldEqual, 3)
					So(top[0].Username, ShouldEqual, "alice")
					So(top[1].Username, ShouldEqual, "bob")
					So(top[2].Username, ShouldEqual, "carol")
					So(top[2].OverallImpact, ShouldBeNil)
					So(s.Count(ctx), ShouldEqual, 3)

					e, err := s.Rank(ctx, "bob")
					So(err, ShouldBeNil)
					So(e.Rank, ShouldEqual, 2)
				})
			})
		})
	}
}

func TestBoltStoreReopen(t *testing.T) {
	Convey("Given a bolt store with a saved profile", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "nested", "devmatch.db")
		s, err := repository.OpenBoltStore(path, repository.WithOpenTimeout(time.Second))
		So(err, ShouldBeNil)
		p := model.DeveloperProfile{Developer: "alice"}
		p.OverallImpact = f(55)
		So(s.SaveProfile(ctx, p), ShouldBeNil)
		So(s.SaveContribution(ctx, contribution("alice", "c1")), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("When it is reopened", func() {
			s2, err := repository.OpenBoltStore(path)
			So(err, ShouldBeNil)
			Reset(func() { _ = s2.Close() })

			Convey("Then records and the ranking survive", func() {
				recs, err := s2.DeveloperRecords(ctx, "alice")
				So(err, ShouldBeNil)
				So(len(recs.Contributions), ShouldEqual, 1)
				So(recs.Contributions[0].AuthoredAt.Equal(authored), ShouldBeTrue)

				e, err := s2.Rank(ctx, "alice")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 1)
				So(*e.OverallImpact, ShouldEqual, 55.0)
			})
		})
	})
}
