// Package service composes the classification and scoring pipeline behind
// the operations the HTTP API exposes.
//
// Ingestion validates and deduplicates records, stores the raw form, and
// queues a job per record. Workers classify, score, persist the derived
// result, and rebuild the developer's profile from the full record set.
// Reads (search, profiles, domains) go straight to the store.
package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/devmatch/internal/adapters/mq/queue"
	"github.com/okian/devmatch/internal/adapters/mq/worker"
	"github.com/okian/devmatch/internal/adapters/repository"
	"github.com/okian/devmatch/internal/domain/classify"
	"github.com/okian/devmatch/internal/domain/dedupe"
	"github.com/okian/devmatch/internal/domain/match"
	"github.com/okian/devmatch/internal/domain/model"
	"github.com/okian/devmatch/internal/domain/profile"
	"github.com/okian/devmatch/internal/domain/scoring"
	"github.com/okian/devmatch/internal/domain/types"
	"github.com/okian/devmatch/pkg/logger"
	"github.com/okian/devmatch/pkg/metrics"
)

// Service implements the API dependencies for the matching pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	store        repository.Store
	deduper      dedupe.Deduper
	queue        *queue.InMemoryQueue
	pool         *worker.Pool
	classifier   *classify.Classifier
	scorer       *scoring.ContributionScorer
	reviewScorer *scoring.ReviewScorer
	aggregator   *profile.Aggregator
	engine       *match.Engine

	// Configuration
	workerCount        int
	queueSize          int
	dedupeSize         int
	parallelism        int
	reaggregateOnStart bool

	// devLocks serializes profile rebuilds per developer.
	devLocks sync.Map

	// State
	started bool

	logger logger.Logger
}

// New constructs a new Service. Components not supplied through options get
// in-memory defaults with the AI fallback disabled.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   10_000,
		dedupeSize:  50_000,
		parallelism: runtime.NumCPU(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.classifier == nil {
		s.classifier = classify.New(nil)
	}
	if s.scorer == nil {
		s.scorer = scoring.NewContributionScorer()
	}
	if s.reviewScorer == nil {
		s.reviewScorer = scoring.NewReviewScorer()
	}
	if s.aggregator == nil {
		s.aggregator = profile.NewAggregator(profile.WithReviewScorer(s.reviewScorer))
	}
	if s.engine == nil {
		s.engine = match.New(s.classifier)
	}
	return s
}

// Start builds the queue and worker pool, restores dedupe state and pending
// jobs from the store, and starts processing.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting pipeline service...")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	if s.reaggregateOnStart {
		n, err := s.ReaggregateAll(ctx)
		if err != nil {
			return fmt.Errorf("rebuild profiles: %w", err)
		}
		s.logger.Info(ctx, "profiles rebuilt", logger.Int("developers", n))
	}

	seeded, pending, err := s.restore(ctx)
	if err != nil {
		return fmt.Errorf("restore pipeline state: %w", err)
	}

	s.pool = worker.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(ctx)

	s.started = true
	metrics.UpdateTotalDevelopers(s.store.Count(ctx))
	s.logger.Info(ctx, "pipeline service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("restoredKeys", seeded),
		logger.Int("pendingJobs", pending),
		logger.Bool("classifierReady", s.classifier.Ready()),
	)
	return nil
}

// restore seeds the deduper with every stored record id and re-queues
// records that were accepted but never scored. Contributions left
// unclassified by a failed classifier are re-queued when one is available.
func (s *Service) restore(ctx context.Context) (seeded, pending int, err error) {
	devs, err := s.store.Developers(ctx)
	if err != nil {
		return 0, 0, err
	}

	requeue := func(key string, job model.Job) {
		job.EnqueuedAt = time.Now()
		if s.queue.Enqueue(ctx, job) {
			pending++
			return
		}
		s.deduper.Unrecord(ctx, key)
		s.logger.Warn(ctx, "pending record not requeued", logger.String("key", key))
	}

	retryUnclassified := s.classifier.Ready()
	for _, dev := range devs {
		recs, err := s.store.DeveloperRecords(ctx, dev)
		if err != nil {
			return seeded, pending, err
		}
		for i := range recs.Contributions {
			c := recs.Contributions[i]
			key := dedupe.Key(string(model.JobContribution), c.ID)
			s.deduper.Seed(ctx, key)
			seeded++
			if !c.IsScored() || (retryUnclassified && !c.Result.Classified) {
				raw := c.Contribution
				requeue(key, model.Job{Kind: model.JobContribution, Contribution: &raw})
			}
		}
		for i := range recs.Reviews {
			r := recs.Reviews[i]
			key := dedupe.Key(string(model.JobReview), r.ID)
			s.deduper.Seed(ctx, key)
			seeded++
			if !r.IsScored() {
				raw := r.Review
				requeue(key, model.Job{Kind: model.JobReview, Review: &raw})
			}
		}
	}
	return seeded, pending, nil
}

// Stop drains the queue, stops the workers, and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping pipeline service...")

	var errs []error
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("worker pool: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "pipeline service stopped")
	return errors.Join(errs...)
}

// IngestContributions admits a batch of contributions together with the
// metadata of their repositories. Invalid records are rejected with their
// violations; known ids are acknowledged as duplicates; records refused by a
// full queue are rejected and may be resubmitted. Store failures abort the
// batch.
func (s *Service) IngestContributions(ctx context.Context, repos []model.Repository, batch []model.Contribution) (types.IngestAck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ack := types.NewIngestAck()
	if !s.started {
		return ack, ErrNotStarted
	}
	if len(batch) == 0 {
		return ack, ErrEmptyBatch
	}
	if err := s.saveRepositories(ctx, repos, &ack); err != nil {
		return ack, err
	}

	kind := string(model.JobContribution)
	for i := range batch {
		c := batch[i]
		c.Normalize()
		if err := c.Validate(); err != nil {
			ack.Reject(c.ID, err.Error())
			metrics.RecordRejected(kind, "invalid")
			continue
		}
		save := func(ctx context.Context) error {
			return s.store.SaveContribution(ctx, model.ScoredContribution{Contribution: c})
		}
		job := model.Job{Kind: model.JobContribution, Contribution: &c}
		if err := s.admit(ctx, job, save, &ack); err != nil {
			return ack, fmt.Errorf("ingest contribution %s: %w", c.ID, err)
		}
	}
	return ack, nil
}

// IngestReviews admits a batch of reviews. See IngestContributions.
func (s *Service) IngestReviews(ctx context.Context, repos []model.Repository, batch []model.Review) (types.IngestAck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ack := types.NewIngestAck()
	if !s.started {
		return ack, ErrNotStarted
	}
	if len(batch) == 0 {
		return ack, ErrEmptyBatch
	}
	if err := s.saveRepositories(ctx, repos, &ack); err != nil {
		return ack, err
	}

	kind := string(model.JobReview)
	for i := range batch {
		r := batch[i]
		r.Normalize()
		if err := r.Validate(); err != nil {
			ack.Reject(r.ID, err.Error())
			metrics.RecordRejected(kind, "invalid")
			continue
		}
		save := func(ctx context.Context) error {
			return s.store.SaveReview(ctx, model.ScoredReview{Review: r})
		}
		job := model.Job{Kind: model.JobReview, Review: &r}
		if err := s.admit(ctx, job, save, &ack); err != nil {
			return ack, fmt.Errorf("ingest review %s: %w", r.ID, err)
		}
	}
	return ack, nil
}

func (s *Service) saveRepositories(ctx context.Context, repos []model.Repository, ack *types.IngestAck) error {
	for _, r := range repos {
		if err := r.Validate(); err != nil {
			ack.Reject(r.FullName, err.Error())
			metrics.RecordRejected("repository", "invalid")
			continue
		}
		if err := s.store.SaveRepository(ctx, r); err != nil {
			return fmt.Errorf("save repository %s: %w", r.FullName, err)
		}
	}
	return nil
}

// admit dedupes, stores, and enqueues one valid record. The dedupe mark is
// rolled back whenever the record does not make it onto the queue.
func (s *Service) admit(ctx context.Context, job model.Job, save func(context.Context) error, ack *types.IngestAck) error {
	kind := string(job.Kind)
	key := dedupe.Key(kind, job.ID())

	if s.deduper.SeenAndRecord(ctx, key) {
		ack.Duplicates++
		metrics.RecordDuplicate(kind)
		s.logger.Debug(ctx, "duplicate record", logger.String("key", key))
		return nil
	}

	if err := save(ctx); err != nil {
		s.deduper.Unrecord(ctx, key)
		return err
	}

	job.EnqueuedAt = time.Now()
	if !s.queue.Enqueue(ctx, job) {
		s.deduper.Unrecord(ctx, key)
		ack.Throttled++
		ack.Reject(job.ID(), types.ReasonBackpressure)
		metrics.RecordRejected(kind, "backpressure")
		return nil
	}

	ack.Accepted++
	metrics.RecordIngested(kind)
	return nil
}

// Process runs one pipeline job. It is the worker pool's handler.
func (s *Service) Process(ctx context.Context, job model.Job) error { //nolint:gocritic // hugeParam: matches worker.Handler
	switch {
	case job.Contribution != nil:
		return s.processContribution(ctx, *job.Contribution)
	case job.Review != nil:
		return s.processReview(ctx, *job.Review)
	}
	return fmt.Errorf("job %q carries no record", job.Kind)
}

func (s *Service) processContribution(ctx context.Context, c model.Contribution) error { //nolint:gocritic // hugeParam: value copy is intended
	var repo *model.Repository
	r, err := s.store.Repository(ctx, c.Repo)
	switch {
	case err == nil:
		repo = &r
	case !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("load repository %s: %w", c.Repo, err)
	}

	in := classify.Input{Message: c.Message, FilePaths: c.FilePaths}
	var topics []string
	if repo != nil {
		topics = repo.Topics
		in.RepoDescription = repo.Description
	}
	res := s.classifier.Classify(ctx, topics, in)
	metrics.RecordClassification(string(res.Source))
	if res.Err != nil {
		s.logger.Warn(ctx, "classification degraded to empty tags",
			logger.String("id", c.ID),
			logger.String("repo", c.Repo),
			logger.Error(res.Err),
		)
	}

	typed := c
	if typed.Type == "" {
		typed.Type = classify.ContributionType(c.Kind, c.Message, c.FilePaths)
	}
	qm := scoring.Metrics(typed, repo)
	sc := s.scorer.Score(typed, qm)

	domains := res.Tags
	if domains == nil {
		domains = []string{}
	}
	result := model.ContributionResult{
		Type:         typed.Type,
		DomainTags:   domains,
		LanguageTags: classify.DetectLanguages(c.FilePaths, c.Languages),
		QualityScore: ptr(sc.Quality),
		RecencyScore: ptr(sc.Recency),
		RepoWeight:   qm.RepoWeight,
		Classified:   res.Settled(),
		Scored:       true,
	}
	if err := s.store.SaveContribution(ctx, model.ScoredContribution{Contribution: c, Result: result}); err != nil {
		return fmt.Errorf("save scored contribution: %w", err)
	}
	metrics.RecordContributionScored()

	return s.Reaggregate(ctx, c.Developer)
}

func (s *Service) processReview(ctx context.Context, r model.Review) error { //nolint:gocritic // hugeParam: value copy is intended
	depth := s.reviewScorer.Score(r)
	result := model.ReviewResult{DepthScore: ptr(depth), Scored: true}
	if err := s.store.SaveReview(ctx, model.ScoredReview{Review: r, Result: result}); err != nil {
		return fmt.Errorf("save scored review: %w", err)
	}
	metrics.RecordReviewScored()

	return s.Reaggregate(ctx, r.Reviewer)
}

func (s *Service) lockFor(developer string) *sync.Mutex {
	mu, _ := s.devLocks.LoadOrStore(developer, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Reaggregate rebuilds the developer's profile from a snapshot of all its
// records. Recency scores are recomputed against the current time so that
// decay keeps progressing between rebuilds.
func (s *Service) Reaggregate(ctx context.Context, developer string) error {
	mu := s.lockFor(developer)
	mu.Lock()
	defer mu.Unlock()

	recs, err := s.store.DeveloperRecords(ctx, developer)
	if err != nil {
		metrics.RecordAggregationError()
		return fmt.Errorf("load records of %s: %w", developer, err)
	}
	for i := range recs.Contributions {
		c := &recs.Contributions[i]
		if c.IsScored() {
			c.Result.RecencyScore = ptr(s.scorer.Recency(*c.Result.QualityScore, c.AuthoredAt))
		}
	}

	p := s.aggregator.Aggregate(developer, recs.Contributions, recs.Reviews)
	if err := s.store.SaveProfile(ctx, p); err != nil {
		metrics.RecordAggregationError()
		return fmt.Errorf("save profile of %s: %w", developer, err)
	}
	metrics.RecordProfileAggregated()
	metrics.UpdateTotalDevelopers(s.store.Count(ctx))
	return nil
}

// ReaggregateAll rebuilds every developer's profile and returns how many
// were rebuilt.
func (s *Service) ReaggregateAll(ctx context.Context) (int, error) {
	devs, err := s.store.Developers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list developers: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, dev := range devs {
		g.Go(func() error {
			return s.Reaggregate(gctx, dev)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(devs), nil
}

// Search ranks every stored profile against q. Reads are served from the
// store and do not require Start.
func (s *Service) Search(ctx context.Context, q model.Query) ([]model.MatchResult, error) {
	start := time.Now()

	profiles, err := s.store.Profiles(ctx)
	if err != nil {
		metrics.RecordSearchFailure()
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	results, err := s.engine.Match(ctx, q, profiles)
	if err != nil {
		metrics.RecordSearchFailure()
		return nil, err
	}

	elapsed := time.Since(start)
	metrics.RecordSearch(len(results), float64(elapsed.Microseconds())/1000)
	s.logger.Debug(ctx, "search completed",
		logger.Int("candidates", len(profiles)),
		logger.Int("results", len(results)),
		logger.Duration("elapsed", elapsed),
	)
	return results, nil
}

// Developer returns the profile of username with its impact rank.
func (s *Service) Developer(ctx context.Context, username string) (model.RankedProfile, error) {
	p, err := s.store.Profile(ctx, username)
	if err != nil {
		return model.RankedProfile{}, err
	}
	entry, err := s.store.Rank(ctx, username)
	if err != nil {
		return model.RankedProfile{}, err
	}
	return model.RankedProfile{DeveloperProfile: p, Rank: entry.Rank}, nil
}

// Domains summarizes every domain across all profiles, sorted by developer
// count desc, then domain asc.
func (s *Service) Domains(ctx context.Context) ([]model.DomainSummary, error) {
	profiles, err := s.store.Profiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	type acc struct {
		count int
		sum   float64
	}
	byDomain := make(map[string]*acc)
	for _, p := range profiles {
		for _, d := range p.Domains {
			a, ok := byDomain[d.Domain]
			if !ok {
				a = &acc{}
				byDomain[d.Domain] = a
			}
			a.count++
			a.sum += d.Score
		}
	}

	out := make([]model.DomainSummary, 0, len(byDomain))
	for domain, a := range byDomain {
		out = append(out, model.DomainSummary{
			Domain:         domain,
			DeveloperCount: a.count,
			AvgScore:       math.Round(a.sum/float64(a.count)*100) / 100,
		})
	}
	slices.SortFunc(out, func(a, b model.DomainSummary) int {
		if c := cmp.Compare(b.DeveloperCount, a.DeveloperCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Domain, b.Domain)
	})
	return out, nil
}

// TopDevelopers returns the n highest-impact developers.
func (s *Service) TopDevelopers(ctx context.Context, n int) ([]types.Entry, error) {
	return s.store.TopN(ctx, n)
}

// Rank returns the impact rank of username.
func (s *Service) Rank(ctx context.Context, username string) (types.Entry, error) {
	return s.store.Rank(ctx, username)
}

// Vocabulary returns the current style-guide vocabulary.
func (s *Service) Vocabulary(_ context.Context) []string {
	return s.classifier.Vocabulary().Snapshot()
}

// RefreshVocabulary reloads the vocabulary from its source and returns its
// new size.
func (s *Service) RefreshVocabulary(ctx context.Context) (int, error) {
	v := s.classifier.Vocabulary()
	if err := v.Refresh(ctx); err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "vocabulary refreshed", logger.Int("size", v.Len()))
	return v.Len(), nil
}

// AppendVocabulary adds tags to the vocabulary and returns the ones that
// were new.
func (s *Service) AppendVocabulary(ctx context.Context, tags []string) ([]string, error) {
	added, err := s.classifier.Vocabulary().Append(ctx, tags...)
	if err != nil {
		return nil, err
	}
	if len(added) > 0 {
		s.logger.Info(ctx, "vocabulary extended", logger.Any("added", added))
	}
	return added, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := types.Stats{
		Started:         s.started,
		WorkerCount:     s.workerCount,
		QueueCapacity:   s.queueSize,
		VocabularySize:  s.classifier.Vocabulary().Len(),
		ClassifierReady: s.classifier.Ready(),
	}

	if s.started {
		stats.QueueLength = s.queue.Len(ctx)
		stats.DeveloperCount = s.store.Count(ctx)
		stats.DedupeSize = s.deduper.Size()
		stats.WorkerCount = s.pool.Size()

		metrics.UpdateTotalDevelopers(stats.DeveloperCount)
		metrics.UpdateWorkerCount(stats.WorkerCount)
	}

	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

func ptr(v float64) *float64 { return &v }
