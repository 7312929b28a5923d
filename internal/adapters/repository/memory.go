package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/devmatch/internal/domain/model"
	"github.com/okian/devmatch/internal/domain/types"
	"github.com/okian/devmatch/pkg/metrics"
)

// MemoryStore keeps all state in process memory.
type MemoryStore struct {
	mu            sync.RWMutex
	contributions map[string]map[string]model.ScoredContribution
	reviews       map[string]map[string]model.ScoredReview
	repositories  map[string]model.Repository
	profiles      map[string]model.DeveloperProfile
	index         *ImpactIndex
	closed        bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contributions: make(map[string]map[string]model.ScoredContribution),
		reviews:       make(map[string]map[string]model.ScoredReview),
		repositories:  make(map[string]model.Repository),
		profiles:      make(map[string]model.DeveloperProfile),
		index:         NewImpactIndex(),
	}
}

func (s *MemoryStore) SaveContribution(_ context.Context, c model.ScoredContribution) error {
	defer observe("save_contribution", time.Now())
	if c.Developer == "" || c.ID == "" {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	byID, ok := s.contributions[c.Developer]
	if !ok {
		byID = make(map[string]model.ScoredContribution)
		s.contributions[c.Developer] = byID
	}
	byID[c.ID] = cloneContribution(c)
	return nil
}

func (s *MemoryStore) SaveReview(_ context.Context, r model.ScoredReview) error {
	defer observe("save_review", time.Now())
	if r.Reviewer == "" || r.ID == "" {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	byID, ok := s.reviews[r.Reviewer]
	if !ok {
		byID = make(map[string]model.ScoredReview)
		s.reviews[r.Reviewer] = byID
	}
	byID[r.ID] = r
	return nil
}

func (s *MemoryStore) SaveRepository(_ context.Context, r model.Repository) error {
	if r.FullName == "" {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	r.Topics = slices.Clone(r.Topics)
	s.repositories[strings.ToLower(r.FullName)] = r
	return nil
}

func (s *MemoryStore) Repository(_ context.Context, fullName string) (model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.repositories[strings.ToLower(fullName)]
	if !ok {
		return model.Repository{}, ErrNotFound
	}
	r.Topics = slices.Clone(r.Topics)
	return r, nil
}

func (s *MemoryStore) DeveloperRecords(_ context.Context, developer string) (Records, error) {
	defer observe("developer_records", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out Records
	for _, c := range s.contributions[developer] {
		out.Contributions = append(out.Contributions, cloneContribution(c))
	}
	for _, r := range s.reviews[developer] {
		out.Reviews = append(out.Reviews, r)
	}
	sortRecords(&out)
	return out, nil
}

func (s *MemoryStore) Developers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.contributions)+len(s.reviews))
	for d := range s.contributions {
		seen[d] = struct{}{}
	}
	for d := range s.reviews {
		seen[d] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	slices.Sort(out)
	return out, nil
}

func (s *MemoryStore) SaveProfile(_ context.Context, p model.DeveloperProfile) error {
	defer observe("save_profile", time.Now())
	if p.Developer == "" {
		return ErrInvalidKey
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.profiles[p.Developer] = p
	s.mu.Unlock()

	s.index.Upsert(p.Developer, p.OverallImpact)
	return nil
}

func (s *MemoryStore) Profile(_ context.Context, developer string) (model.DeveloperProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[developer]
	if !ok {
		return model.DeveloperProfile{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) Profiles(_ context.Context) ([]model.DeveloperProfile, error) {
	defer observe("profiles", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DeveloperProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b model.DeveloperProfile) int { return strings.Compare(a.Developer, b.Developer) })
	return out, nil
}

func (s *MemoryStore) Rank(_ context.Context, developer string) (types.Entry, error) {
	return s.index.Rank(developer)
}

func (s *MemoryStore) TopN(_ context.Context, n int) ([]types.Entry, error) {
	return s.index.TopN(n)
}

func (s *MemoryStore) Count(_ context.Context) int {
	return s.index.Count()
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneContribution(c model.ScoredContribution) model.ScoredContribution {
	c.FilePaths = slices.Clone(c.FilePaths)
	c.Languages = slices.Clone(c.Languages)
	c.Result.DomainTags = slices.Clone(c.Result.DomainTags)
	c.Result.LanguageTags = slices.Clone(c.Result.LanguageTags)
	return c
}

func sortRecords(r *Records) {
	slices.SortFunc(r.Contributions, func(a, b model.ScoredContribution) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(r.Reviews, func(a, b model.ScoredReview) int { return strings.Compare(a.ID, b.ID) })
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}
