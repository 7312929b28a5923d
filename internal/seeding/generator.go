package seeding

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/devmatch/internal/domain/model"
)

const (
	maxAgeDays       = 365
	maxPRNumber      = 500
	docShare         = 0.1
	typedShare       = 0.3
	signalShare      = 0.6
	reposPerDevMax   = 2
	maxPathsPerEntry = 4
)

// project is one synthetic repository with files in its main language.
type project struct {
	repo  model.Repository
	paths []string
}

var catalog = []project{
	{
		repo: model.Repository{FullName: "acme/ledger", Description: "Double-entry ledger for payment processing",
			Topics: []string{"payments", "databases"}, Stars: 4200},
		paths: []string{"ledger/posting.go", "ledger/posting_test.go", "ledger/account.go", "migrations/001_init.sql", "cmd/ledgerd/main.go"},
	},
	{
		repo: model.Repository{FullName: "acme/stream", Description: "Exactly-once event streaming with Kafka connectors",
			Topics: []string{"stream-processing", "messaging"}, Stars: 950},
		paths: []string{"src/main/java/acme/Consumer.java", "src/main/java/acme/Offsets.java", "src/test/java/acme/ConsumerTest.java", "pom.xml"},
	},
	{
		repo: model.Repository{FullName: "acme/vision", Description: "Image segmentation models and training loops",
			Topics: []string{"machine-learning", "computer-vision"}, Stars: 12000},
		paths: []string{"vision/train.py", "vision/models/unet.py", "tests/test_unet.py", "notebooks/eval.ipynb"},
	},
	{
		repo: model.Repository{FullName: "acme/edge", Description: "Programmable reverse proxy with tracing",
			Topics: []string{"networking", "observability"}, Stars: 300},
		paths: []string{"src/proxy.rs", "src/tracing.rs", "src/lib.rs", "tests/proxy.rs"},
	},
	{
		repo: model.Repository{FullName: "acme/portal", Description: "Customer portal with an accessible design system",
			Topics: []string{"frontend", "accessibility"}, Stars: 75},
		paths: []string{"src/components/Button.tsx", "src/pages/Billing.tsx", "src/components/Button.test.tsx", "package.json"},
	},
	{
		repo: model.Repository{FullName: "acme/infra", Description: "Cluster provisioning and deployment pipelines",
			Topics: []string{"infrastructure-as-code", "kubernetes"}, Stars: 40},
		paths: []string{"terraform/cluster.tf", "charts/api/values.yaml", "scripts/deploy.sh", ".github/workflows/ci.yml"},
	},
}

var messages = []string{
	"feat: add %s support",
	"fix: handle empty %s",
	"refactor %s internals",
	"test: cover %s edge cases",
	"chore(deps): bump %s",
	"docs: explain %s",
}

var subjects = []string{"batching", "retries", "pagination", "auth", "caching", "metrics", "config", "indexes"}

var reviewStates = []model.ReviewState{
	model.StateApproved, model.StateApproved, model.StateChangesRequested,
	model.StateCommented, model.StateDismissed,
}

// Generate builds a dataset of cfg's size. The same seed and now produce
// the same records apart from their ids.
func Generate(cfg Config, now time.Time) Dataset {
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	ds := Dataset{
		Developers:    make([]string, cfg.Developers),
		Repositories:  make([]model.Repository, len(catalog)),
		Contributions: make([]model.Contribution, 0, cfg.Contributions),
		Reviews:       make([]model.Review, 0, cfg.Reviews),
	}
	for i, p := range catalog {
		ds.Repositories[i] = p.repo
	}

	home := make([][]int, cfg.Developers)
	for i := range ds.Developers {
		ds.Developers[i] = fmt.Sprintf("dev-%03d-%s", i, uuid.NewString()[:8])
		n := 1 + rng.IntN(reposPerDevMax)
		for range n {
			home[i] = append(home[i], rng.IntN(len(catalog)))
		}
	}

	for range cfg.Contributions {
		dev := rng.IntN(cfg.Developers)
		p := catalog[home[dev][rng.IntN(len(home[dev]))]]
		ds.Contributions = append(ds.Contributions, contribution(rng, now, ds.Developers[dev], p))
	}

	for range cfg.Reviews {
		reviewer := rng.IntN(cfg.Developers)
		author := rng.IntN(cfg.Developers)
		p := catalog[rng.IntN(len(catalog))]
		ds.Reviews = append(ds.Reviews, review(rng, now, ds.Developers[reviewer], ds.Developers[author], p))
	}
	return ds
}

func contribution(rng *rand.Rand, now time.Time, dev string, p project) model.Contribution {
	c := model.Contribution{
		ID:         uuid.NewString(),
		Developer:  dev,
		Repo:       p.repo.FullName,
		Kind:       model.KindCommit,
		AuthoredAt: now.Add(-time.Duration(rng.IntN(maxAgeDays*24)) * time.Hour).UTC(),
		Message:    fmt.Sprintf(messages[rng.IntN(len(messages))], subjects[rng.IntN(len(subjects))]),
		Additions:  rng.IntN(400),
		Deletions:  rng.IntN(150),
	}

	n := 1 + rng.IntN(min(maxPathsPerEntry, len(p.paths)))
	for _, i := range rng.Perm(len(p.paths))[:n] {
		c.FilePaths = append(c.FilePaths, p.paths[i])
	}
	c.FilesChanged = len(c.FilePaths)

	if rng.Float64() < docShare {
		c.Kind = model.KindDocumentation
		c.FilePaths = append(c.FilePaths, "docs/README.md")
		c.FilesChanged++
	}
	if rng.Float64() < typedShare {
		c.Type = model.ContributionTypes[rng.IntN(len(model.ContributionTypes))]
	}
	if rng.Float64() < signalShare {
		cx := rng.Float64()*20 - 5
		en := rng.Float64() * 3
		tc := model.MinTestCorrelation + rng.Float64()*(model.MaxTestCorrelation-model.MinTestCorrelation)
		c.ComplexityDelta, c.Entropy, c.TestCorrelation = &cx, &en, &tc
	}
	return c
}

func review(rng *rand.Rand, now time.Time, reviewer, author string, p project) model.Review {
	comments := rng.IntN(12)
	return model.Review{
		ID:             uuid.NewString(),
		Reviewer:       reviewer,
		Repo:           p.repo.FullName,
		PRNumber:       1 + rng.IntN(maxPRNumber),
		PRAuthor:       author,
		State:          reviewStates[rng.IntN(len(reviewStates))],
		CommentCount:   comments,
		CommentLength:  comments * (20 + rng.IntN(300)),
		ReferencesCode: comments > 0 && rng.IntN(2) == 0,
		SubmittedAt:    now.Add(-time.Duration(rng.IntN(maxAgeDays*24)) * time.Hour).UTC(),
	}
}

// Active returns the developers that own at least one record.
func (d Dataset) Active() map[string]struct{} {
	out := make(map[string]struct{}, len(d.Developers))
	for _, c := range d.Contributions {
		out[c.Developer] = struct{}{}
	}
	for _, r := range d.Reviews {
		out[r.Reviewer] = struct{}{}
	}
	return out
}

// Size is the total record count.
func (d Dataset) Size() int { return len(d.Contributions) + len(d.Reviews) }
