package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/okian/devmatch/internal/domain/model"
	"github.com/okian/devmatch/internal/domain/types"
)

// Bucket names.
var (
	bucketContributions = []byte("contributions")
	bucketReviews       = []byte("reviews")
	bucketRepositories  = []byte("repositories")
	bucketProfiles      = []byte("profiles")
)

// keySep separates the developer from the record id in record keys, so a
// prefix scan over "developer\x00" finds all of a developer's records.
const keySep = 0x00

const defaultOpenTimeout = time.Second

// BoltStore persists state in a single bbolt file. The impact ranking is
// kept in memory and rebuilt from stored profiles on open.
type BoltStore struct {
	db    *bolt.DB
	index *ImpactIndex
}

var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the database at path.
func OpenBoltStore(path string, opts ...Option) (*BoltStore, error) {
	cfg := boltOptions{timeout: defaultOpenTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: cfg.timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketContributions, bucketReviews, bucketRepositories, bucketProfiles} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &BoltStore{db: db, index: NewImpactIndex()}
	profiles, err := s.Profiles(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, p := range profiles {
		s.index.Upsert(p.Developer, p.OverallImpact)
	}
	return s, nil
}

func recordKey(developer, id string) []byte {
	k := make([]byte, 0, len(developer)+len(id)+1)
	k = append(k, developer...)
	k = append(k, keySep)
	return append(k, id...)
}

func (s *BoltStore) put(bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", bucket, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, data)
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", bucket, err)
	}
	return nil
}

func (s *BoltStore) get(bucket, key []byte, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get(key)
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, v)
	})
}

func (s *BoltStore) SaveContribution(_ context.Context, c model.ScoredContribution) error {
	defer observe("save_contribution", time.Now())
	if c.Developer == "" || c.ID == "" {
		return ErrInvalidKey
	}
	return s.put(bucketContributions, recordKey(c.Developer, c.ID), c)
}

func (s *BoltStore) SaveReview(_ context.Context, r model.ScoredReview) error {
	defer observe("save_review", time.Now())
	if r.Reviewer == "" || r.ID == "" {
		return ErrInvalidKey
	}
	return s.put(bucketReviews, recordKey(r.Reviewer, r.ID), r)
}

func (s *BoltStore) SaveRepository(_ context.Context, r model.Repository) error {
	if r.FullName == "" {
		return ErrInvalidKey
	}
	return s.put(bucketRepositories, []byte(strings.ToLower(r.FullName)), r)
}

func (s *BoltStore) Repository(_ context.Context, fullName string) (model.Repository, error) {
	var r model.Repository
	if err := s.get(bucketRepositories, []byte(strings.ToLower(fullName)), &r); err != nil {
		return model.Repository{}, err
	}
	return r, nil
}

func (s *BoltStore) DeveloperRecords(_ context.Context, developer string) (Records, error) {
	defer observe("developer_records", time.Now())

	var out Records
	prefix := recordKey(developer, "")
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := scanPrefix(tx.Bucket(bucketContributions), prefix, func(v []byte) error {
			var c model.ScoredContribution
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			out.Contributions = append(out.Contributions, c)
			return nil
		}); err != nil {
			return err
		}
		return scanPrefix(tx.Bucket(bucketReviews), prefix, func(v []byte) error {
			var r model.ScoredReview
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out.Reviews = append(out.Reviews, r)
			return nil
		})
	})
	if err != nil {
		return Records{}, fmt.Errorf("read records of %s: %w", developer, err)
	}
	sortRecords(&out)
	return out, nil
}

func scanPrefix(b *bolt.Bucket, prefix []byte, fn func(v []byte) error) error {
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

func (s *BoltStore) Developers(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketContributions, bucketReviews} {
			err := tx.Bucket(name).ForEach(func(k, _ []byte) error {
				if i := bytes.IndexByte(k, keySep); i > 0 {
					seen[string(k[:i])] = struct{}{}
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list developers: %w", err)
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	slices.Sort(out)
	return out, nil
}

func (s *BoltStore) SaveProfile(_ context.Context, p model.DeveloperProfile) error {
	defer observe("save_profile", time.Now())
	if p.Developer == "" {
		return ErrInvalidKey
	}
	if err := s.put(bucketProfiles, []byte(p.Developer), p); err != nil {
		return err
	}
	s.index.Upsert(p.Developer, p.OverallImpact)
	return nil
}

func (s *BoltStore) Profile(_ context.Context, developer string) (model.DeveloperProfile, error) {
	var p model.DeveloperProfile
	if err := s.get(bucketProfiles, []byte(developer), &p); err != nil {
		return model.DeveloperProfile{}, err
	}
	return p, nil
}

// Profiles iterates in key order, which is developer order.
func (s *BoltStore) Profiles(_ context.Context) ([]model.DeveloperProfile, error) {
	defer observe("profiles", time.Now())

	var out []model.DeveloperProfile
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProfiles).ForEach(func(_, v []byte) error {
			var p model.DeveloperProfile
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	if out == nil {
		out = []model.DeveloperProfile{}
	}
	return out, nil
}

func (s *BoltStore) Rank(_ context.Context, developer string) (types.Entry, error) {
	return s.index.Rank(developer)
}

func (s *BoltStore) TopN(_ context.Context, n int) ([]types.Entry, error) {
	return s.index.TopN(n)
}

func (s *BoltStore) Count(_ context.Context) int {
	return s.index.Count()
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
