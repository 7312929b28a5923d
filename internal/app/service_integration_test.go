package service_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	service "github.com/okian/devmatch/internal/app"
	"github.com/okian/devmatch/internal/adapters/repository"
	"github.com/okian/devmatch/internal/domain/classify"
	"github.com/okian/devmatch/internal/domain/model"
	"github.com/okian/devmatch/internal/domain/tags"
	. "github.com/smartystreets/goconvey/convey"
)

var dbRepo = model.Repository{
	FullName: "acme/db",
	Topics:   []string{"databases"},
	Stars:    40,
}

func profileOf(ctx context.Context, svc *service.Service, dev string, contributions int) (model.RankedProfile, bool) {
	var p model.RankedProfile
	ok := eventually(func() bool {
		got, err := svc.Developer(ctx, dev)
		if err != nil || got.ContributionCount < contributions {
			return false
		}
		p = got
		return true
	})
	return p, ok
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service with a query classifier", t, func() {
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(1000),
			service.WithDedupeSize(500),
			service.WithClassifier(classify.New(stubCompleter{reply: "Stream processing, Kafka, Go"})),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		Convey("When processing records end-to-end", func() {
			contribs := []model.Contribution{
				contribution("a1", "alice", "acme/broker"),
				contribution("a2", "alice", "acme/broker"),
				contribution("a3", "alice", "acme/broker"),
				contribution("b1", "bob", "acme/db"),
			}
			contribs[1].AuthoredAt = day0.AddDate(0, 0, 14)
			contribs[2].AuthoredAt = day0.AddDate(0, 1, 0)
			ack, err := svc.IngestContributions(ctx, []model.Repository{brokerRepo, dbRepo}, contribs)
			So(err, ShouldBeNil)
			So(ack.Accepted, ShouldEqual, 4)

			rack, err := svc.IngestReviews(ctx, nil, []model.Review{review("r1", "carol")})
			So(err, ShouldBeNil)
			So(rack.Accepted, ShouldEqual, 1)

			alice, ok := profileOf(ctx, svc, "alice", 3)
			So(ok, ShouldBeTrue)

			Convey("Then curated topics become domains without language tags", func() {
				d, found := alice.Domain("stream-processing")
				So(found, ShouldBeTrue)
				So(d.ContributionCount, ShouldEqual, 3)
				So(d.EvidenceRepos, ShouldEqual, "acme/broker")
				for _, dom := range alice.Domains {
					So(tags.Valid(dom.Domain), ShouldBeTrue)
				}
				_, hasGo := alice.Domain("go")
				So(hasGo, ShouldBeFalse)
			})

			Convey("And every score is bounded", func() {
				for _, v := range []*float64{alice.OverallImpact, alice.CodeQuality, alice.Consistency, alice.CollaborationBreadth} {
					if v != nil {
						So(*v, ShouldBeBetweenOrEqual, 0, 100)
					}
				}
				So(alice.Rank, ShouldBeGreaterThan, 0)
			})

			Convey("And reviewers get review-only profiles", func() {
				So(eventually(func() bool {
					p, err := svc.Developer(ctx, "carol")
					return err == nil && p.ReviewStats.ReviewsGiven == 1
				}), ShouldBeTrue)
				carol, err := svc.Developer(ctx, "carol")
				So(err, ShouldBeNil)
				So(carol.ReviewQuality, ShouldNotBeNil)
				So(carol.CodeQuality, ShouldBeNil)
			})

			Convey("And a free-text search finds the matching developer", func() {
				_, ok := profileOf(ctx, svc, "bob", 1)
				So(ok, ShouldBeTrue)

				results, err := svc.Search(ctx, model.Query{Description: "real-time event pipeline", Limit: 5})
				So(err, ShouldBeNil)
				So(len(results), ShouldEqual, 1)
				So(results[0].Developer, ShouldEqual, "alice")
				So(results[0].Confidence, ShouldBeBetweenOrEqual, 1, 100)
				So(results[0].WhyMatched, ShouldContainSubstring, "stream-processing")
			})

			Convey("And domains are summarized across developers", func() {
				_, ok := profileOf(ctx, svc, "bob", 1)
				So(ok, ShouldBeTrue)

				domains, err := svc.Domains(ctx)
				So(err, ShouldBeNil)
				names := make([]string, len(domains))
				for i, d := range domains {
					names[i] = d.Domain
				}
				So(names, ShouldContain, "databases")
				So(names, ShouldContain, "messaging")
			})

			Convey("And re-aggregating everything is stable", func() {
				_, ok := profileOf(ctx, svc, "bob", 1)
				So(ok, ShouldBeTrue)
				before, err := svc.Developer(ctx, "alice")
				So(err, ShouldBeNil)

				n, err := svc.ReaggregateAll(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)

				after, err := svc.Developer(ctx, "alice")
				So(err, ShouldBeNil)
				So(after.Domains, ShouldResemble, before.Domains)
				So(after.ContributionCount, ShouldEqual, before.ContributionCount)
			})
		})

		Convey("When the classifier fails for an untagged repository", func() {
			failing := service.New(
				service.WithWorkerCount(1),
				service.WithClassifier(classify.New(stubCompleter{err: errors.New("upstream 503")})),
			)
			So(failing.Start(ctx), ShouldBeNil)
			defer func() { _ = failing.Stop(ctx) }()

			_, err := failing.IngestContributions(ctx, nil, []model.Contribution{contribution("u1", "erin", "acme/untagged")})
			So(err, ShouldBeNil)

			Convey("Then the record is still scored, with no domains", func() {
				p, ok := profileOf(ctx, failing, "erin", 1)
				So(ok, ShouldBeTrue)
				So(p.Domains, ShouldBeEmpty)
				So(p.CodeQuality, ShouldNotBeNil)
			})
		})
	})
}

func TestServiceConcurrentIngest(t *testing.T) {
	Convey("Given a service with concurrent producers", t, func() {
		svc := service.New(
			service.WithWorkerCount(4),
			service.WithQueueSize(1000),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		const producers, perProducer = 8, 25

		Convey("When many goroutines ingest distinct records", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			accepted := 0
			for p := 0; p < producers; p++ {
				wg.Add(1)
				go func(p int) {
					defer wg.Done()
					batch := make([]model.Contribution, perProducer)
					for i := range batch {
						dev := fmt.Sprintf("dev-%d", p%4)
						batch[i] = contribution(fmt.Sprintf("p%d-%d", p, i), dev, "acme/broker")
					}
					ack, err := svc.IngestContributions(ctx, []model.Repository{brokerRepo}, batch)
					if err != nil {
						return
					}
					mu.Lock()
					accepted += ack.Accepted
					mu.Unlock()
				}(p)
			}
			wg.Wait()

			Convey("Then every record lands in exactly one profile", func() {
				So(accepted, ShouldEqual, producers*perProducer)
				So(eventually(func() bool {
					total := 0
					for d := 0; d < 4; d++ {
						p, err := svc.Developer(ctx, fmt.Sprintf("dev-%d", d))
						if err != nil {
							return false
						}
						total += p.ContributionCount
					}
					return total == producers*perProducer
				}), ShouldBeTrue)
				So(svc.GetStats().DeveloperCount, ShouldEqual, 4)
			})

			Convey("And concurrent reads succeed while workers run", func() {
				var rg sync.WaitGroup
				errs := make(chan error, 20)
				for i := 0; i < 20; i++ {
					rg.Add(1)
					go func() {
						defer rg.Done()
						if _, err := svc.Search(ctx, model.Query{Stacks: []string{"messaging"}, Limit: 10}); err != nil {
							errs <- err
						}
						if _, err := svc.Domains(ctx); err != nil {
							errs <- err
						}
					}()
				}
				rg.Wait()
				close(errs)
				So(len(errs), ShouldEqual, 0)
			})
		})
	})
}

func TestServiceRestart(t *testing.T) {
	Convey("Given a service backed by a bolt store", t, func() {
		path := filepath.Join(t.TempDir(), "devmatch.db")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := repository.OpenBoltStore(path)
		So(err, ShouldBeNil)
		svc := service.New(service.WithStore(store), service.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)

		batch := []model.Contribution{
			contribution("k1", "alice", "acme/broker"),
			contribution("k2", "alice", "acme/broker"),
		}
		ack, err := svc.IngestContributions(ctx, []model.Repository{brokerRepo}, batch)
		So(err, ShouldBeNil)
		So(ack.Accepted, ShouldEqual, 2)
		_, ok := profileOf(ctx, svc, "alice", 2)
		So(ok, ShouldBeTrue)
		So(svc.Stop(ctx), ShouldBeNil)

		Convey("When the service restarts on the same file", func() {
			reopened, err := repository.OpenBoltStore(path)
			So(err, ShouldBeNil)
			restarted := service.New(
				service.WithStore(reopened),
				service.WithReaggregateOnStart(true),
			)
			So(restarted.Start(ctx), ShouldBeNil)
			defer func() { _ = restarted.Stop(ctx) }()

			Convey("Then profiles and dedupe state survive", func() {
				p, err := restarted.Developer(ctx, "alice")
				So(err, ShouldBeNil)
				So(p.ContributionCount, ShouldEqual, 2)
				So(p.Rank, ShouldEqual, 1)
				So(restarted.Size(), ShouldEqual, 2)

				again, err := restarted.IngestContributions(ctx, nil, batch)
				So(err, ShouldBeNil)
				So(again.Accepted, ShouldEqual, 0)
				So(again.Duplicates, ShouldEqual, 2)
			})
		})
	})
}

func TestServiceRestoresPendingRecords(t *testing.T) {
	Convey("Given a store holding a record that was never scored", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		store := repository.NewMemoryStore()
		So(store.SaveRepository(ctx, dbRepo), ShouldBeNil)
		So(store.SaveContribution(ctx, model.ScoredContribution{Contribution: contribution("p1", "frank", "acme/db")}), ShouldBeNil)

		svc := service.New(service.WithStore(store), service.WithWorkerCount(1))

		Convey("When the service starts", func() {
			So(svc.Start(ctx), ShouldBeNil)
			defer func() { _ = svc.Stop(ctx) }()

			Convey("Then the record is processed and its id is known", func() {
				p, ok := profileOf(ctx, svc, "frank", 1)
				So(ok, ShouldBeTrue)
				_, found := p.Domain("databases")
				So(found, ShouldBeTrue)
				So(svc.Size(), ShouldEqual, 1)
			})
		})
	})
}

func TestServiceErrorConditions(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		Convey("When querying a non-existent developer", func() {
			_, err := svc.Rank(ctx, "ghost")

			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When listing with invalid limits", func() {
			_, errZero := svc.TopDevelopers(ctx, 0)
			_, errNeg := svc.TopDevelopers(ctx, -5)

			So(errors.Is(errZero, repository.ErrInvalidLimit), ShouldBeTrue)
			So(errors.Is(errNeg, repository.ErrInvalidLimit), ShouldBeTrue)
		})

		Convey("When searching an empty pool", func() {
			results, err := svc.Search(ctx, model.Query{Description: "anything", Limit: 3})

			So(err, ShouldBeNil)
			So(results, ShouldBeEmpty)
		})
	})
}

func TestServiceClassificationOutcome(t *testing.T) {
	Convey("Given contributions from a repository without curated topics", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		store := repository.NewMemoryStore()
		job := func(id string) model.Job {
			c := contribution(id, "gina", "acme/untagged")
			return model.Job{Kind: model.JobContribution, Contribution: &c}
		}
		stored := func(id string) model.ScoredContribution {
			recs, err := store.DeveloperRecords(ctx, "gina")
			So(err, ShouldBeNil)
			for _, c := range recs.Contributions {
				if c.ID == id {
					return c
				}
			}
			return model.ScoredContribution{}
		}

		Convey("When the classifier backend fails", func() {
			svc := service.New(service.WithStore(store),
				service.WithClassifier(classify.New(stubCompleter{err: errors.New("backend down")})))
			So(svc.Process(ctx, job("u1")), ShouldBeNil)

			Convey("Then the record is scored but stays unclassified", func() {
				c := stored("u1")
				So(c.Result.Scored, ShouldBeTrue)
				So(c.Result.Classified, ShouldBeFalse)
				So(c.Result.DomainTags, ShouldBeEmpty)
			})
		})

		Convey("When no classifier backend is configured", func() {
			svc := service.New(service.WithStore(store), service.WithClassifier(classify.New(nil)))
			So(svc.Process(ctx, job("u2")), ShouldBeNil)

			Convey("Then the record stays unclassified", func() {
				c := stored("u2")
				So(c.Result.Scored, ShouldBeTrue)
				So(c.Result.Classified, ShouldBeFalse)
			})
		})

		Convey("When the classifier answers", func() {
			svc := service.New(service.WithStore(store),
				service.WithClassifier(classify.New(stubCompleter{reply: "databases"})))
			So(svc.Process(ctx, job("u3")), ShouldBeNil)

			Convey("Then the record is classified", func() {
				c := stored("u3")
				So(c.Result.Classified, ShouldBeTrue)
				So(c.Result.DomainTags, ShouldResemble, []string{"databases"})
			})
		})

		Convey("When the classifier answers with nothing usable", func() {
			svc := service.New(service.WithStore(store),
				service.WithClassifier(classify.New(stubCompleter{reply: "rust, !"})))
			So(svc.Process(ctx, job("u4")), ShouldBeNil)

			Convey("Then an empty verdict still counts as classified", func() {
				c := stored("u4")
				So(c.Result.Classified, ShouldBeTrue)
				So(c.Result.DomainTags, ShouldBeEmpty)
			})
		})

		Convey("When a service with a working classifier restarts over an unclassified record", func() {
			failing := service.New(service.WithStore(store),
				service.WithClassifier(classify.New(stubCompleter{err: errors.New("backend down")})))
			So(failing.Process(ctx, job("u5")), ShouldBeNil)
			So(stored("u5").Result.Classified, ShouldBeFalse)

			svc := service.New(service.WithStore(store), service.WithWorkerCount(1),
				service.WithClassifier(classify.New(stubCompleter{reply: "databases"})))
			So(svc.Start(ctx), ShouldBeNil)
			defer func() { _ = svc.Stop(ctx) }()

			Convey("Then the record is classified on the retry", func() {
				So(eventually(func() bool { return stored("u5").Result.Classified }), ShouldBeTrue)
				So(eventually(func() bool {
					p, err := svc.Developer(ctx, "gina")
					if err != nil {
						return false
					}
					_, found := p.Domain("databases")
					return found
				}), ShouldBeTrue)
			})
		})
	})
}
