package seeding_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/devmatch/internal/adapters/http/api"
	app "github.com/okian/devmatch/internal/app"
	"github.com/okian/devmatch/internal/seeding"
	"github.com/okian/devmatch/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func smallConfig(baseURL string) seeding.Config {
	return seeding.Config{
		BaseURL:       baseURL,
		Token:         "tok",
		Developers:    6,
		Contributions: 60,
		Reviews:       20,
		BatchSize:     10,
		Workers:       3,
		Timeout:       5 * time.Second,
		Settle:        20 * time.Second,
		PollInterval:  20 * time.Millisecond,
		Sample:        6,
		Seed:          42,
	}
}

// newService serves a started pipeline behind the real HTTP API.
func newService(t *testing.T, opts ...app.Option) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	svc := app.New(append([]app.Option{app.WithLogger(logger.NewNop())}, opts...)...)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start service: %v", err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc, api.WithAPIToken("tok"), api.WithLogger(logger.NewNop())).Register(ctx, mux)
	srv := httptest.NewServer(api.RequestIDMiddleware(mux))
	t.Cleanup(func() {
		srv.Close()
		_ = svc.Stop(ctx)
	})
	return srv
}

func TestGenerate(t *testing.T) {
	Convey("Given a generator configuration", t, func() {
		cfg := smallConfig("")

		Convey("When generating a dataset", func() {
			ds := seeding.Generate(cfg, now)

			Convey("Then it has the requested size", func() {
				So(len(ds.Developers), ShouldEqual, 6)
				So(len(ds.Contributions), ShouldEqual, 60)
				So(len(ds.Reviews), ShouldEqual, 20)
				So(ds.Size(), ShouldEqual, 80)
				So(len(ds.Repositories), ShouldBeGreaterThan, 0)
			})

			Convey("And every record is valid", func() {
				for _, r := range ds.Repositories {
					So(r.Validate(), ShouldBeNil)
				}
				for _, c := range ds.Contributions {
					c.Normalize()
					So(c.Validate(), ShouldBeNil)
					So(c.AuthoredAt.After(now), ShouldBeFalse)
				}
				for _, r := range ds.Reviews {
					r.Normalize()
					So(r.Validate(), ShouldBeNil)
				}
			})

			Convey("And ids and developers are unique", func() {
				ids := map[string]struct{}{}
				for _, c := range ds.Contributions {
					ids[c.ID] = struct{}{}
				}
				So(len(ids), ShouldEqual, 60)

				devs := map[string]struct{}{}
				for _, d := range ds.Developers {
					devs[d] = struct{}{}
				}
				So(len(devs), ShouldEqual, 6)
				for d := range ds.Active() {
					So(devs, ShouldContainKey, d)
				}
			})
		})

		Convey("When generating twice with one seed", func() {
			a := seeding.Generate(cfg, now)
			b := seeding.Generate(cfg, now)

			Convey("Then the shape is reproducible", func() {
				for i := range a.Contributions {
					So(a.Contributions[i].Repo, ShouldEqual, b.Contributions[i].Repo)
					So(a.Contributions[i].Additions, ShouldEqual, b.Contributions[i].Additions)
					So(a.Contributions[i].AuthoredAt.Equal(b.Contributions[i].AuthoredAt), ShouldBeTrue)
				}
			})
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given seeding configs", t, func() {
		So(errors.Is(seeding.Config{}.Validate(), seeding.ErrInvalidConfig), ShouldBeTrue)
		So(errors.Is(seeding.Config{Contributions: -1, Reviews: 3}.Validate(), seeding.ErrInvalidConfig), ShouldBeTrue)
		So(seeding.Config{Reviews: 1}.Validate(), ShouldBeNil)
	})
}

func TestDatasetFile(t *testing.T) {
	Convey("Given a saved dataset", t, func() {
		path := filepath.Join(t.TempDir(), "out", "dataset.json")
		ds := seeding.Generate(smallConfig(""), now)
		So(seeding.SaveDataset(path, ds), ShouldBeNil)

		Convey("Then it loads back with the same records", func() {
			got, err := seeding.LoadDataset(path)
			So(err, ShouldBeNil)
			So(got.Size(), ShouldEqual, ds.Size())
			So(got.Contributions[0].ID, ShouldEqual, ds.Contributions[0].ID)
			So(got.Contributions[0].AuthoredAt.Equal(ds.Contributions[0].AuthoredAt), ShouldBeTrue)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv := newService(t)
		cfg := smallConfig(srv.URL)

		Convey("When a full seeding run executes", func() {
			report, err := seeding.Run(context.Background(), cfg, logger.NewNop())

			Convey("Then every record lands and every check passes", func() {
				So(err, ShouldBeNil)
				So(report.Failures, ShouldBeEmpty)
				So(report.Generated, ShouldEqual, 80)
				So(report.Submitted.Accepted, ShouldEqual, 80)
				So(report.Submitted.Rejected, ShouldEqual, 0)
				So(report.Developers, ShouldBeGreaterThan, 0)
				So(report.Checks, ShouldBeGreaterThan, 10)
			})
		})
	})

	Convey("Given a service with a tiny queue", t, func() {
		srv := newService(t, app.WithWorkerCount(1), app.WithQueueSize(2))
		cfg := smallConfig(srv.URL)
		cfg.Attempts = 200

		Convey("When records are submitted", func() {
			ds := seeding.Generate(cfg, now)
			client := seeding.NewClient(srv.URL, "", cfg.Timeout)
			tally, err := seeding.Submit(context.Background(), client, cfg, ds, logger.NewNop())

			Convey("Then throttled records are retried until accepted", func() {
				So(err, ShouldBeNil)
				So(tally.Accepted, ShouldEqual, ds.Size())
				So(tally.Duplicates, ShouldEqual, 0)
			})
		})
	})

	Convey("Given no service", t, func() {
		cfg := smallConfig("http://127.0.0.1:1")
		cfg.Timeout = 200 * time.Millisecond

		Convey("Then the run fails its health check", func() {
			_, err := seeding.Run(context.Background(), cfg, logger.NewNop())
			So(err, ShouldNotBeNil)
		})
	})
}
