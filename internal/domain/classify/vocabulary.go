package classify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/okian/devmatch/internal/domain/tags"
)

// seedVocabulary is used when no vocabulary file is configured or the file
// does not exist yet.
var seedVocabulary = []string{
	"api-design", "authentication", "caching", "ci-cd", "cloud-infrastructure",
	"compilers", "computer-vision", "concurrency", "containers", "cryptography",
	"data-engineering", "databases", "developer-tooling", "distributed-systems",
	"embedded-systems", "frontend", "game-development", "graphics",
	"kubernetes", "machine-learning", "messaging", "mobile", "networking",
	"nlp", "observability", "operating-systems", "payments", "performance",
	"search", "security", "serialization", "storage", "stream-processing",
	"testing-infrastructure", "web-backend",
}

// vocabularyFile is the on-disk YAML shape.
type vocabularyFile struct {
	Tags []string `yaml:"tags"`
}

// Vocabulary is the append-only style-guide taxonomy shown to the
// Completer. It loads lazily on first read; readers get immutable snapshots
// while Refresh and Append swap in new ones.
type Vocabulary struct {
	path string
	seed []string

	loadOnce sync.Once
	mu       sync.Mutex
	current  atomic.Pointer[[]string]
}

// VocabularyOption configures a Vocabulary.
type VocabularyOption func(*Vocabulary)

// WithVocabularyPath persists the vocabulary as YAML at path.
func WithVocabularyPath(path string) VocabularyOption {
	return func(v *Vocabulary) { v.path = path }
}

// WithSeed replaces the built-in seed list.
func WithSeed(seed []string) VocabularyOption {
	return func(v *Vocabulary) { v.seed = seed }
}

// NewVocabulary creates a lazily loaded vocabulary.
func NewVocabulary(opts ...VocabularyOption) *Vocabulary {
	v := &Vocabulary{seed: seedVocabulary}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Snapshot returns the current sorted tag list. The slice must not be modified.
// A load failure falls back to the seed list.
func (v *Vocabulary) Snapshot() []string {
	v.ensureLoaded()
	return *v.current.Load()
}

// Len returns the number of tags in the current snapshot.
func (v *Vocabulary) Len() int { return len(v.Snapshot()) }

// Refresh reloads the vocabulary from its source.
func (v *Vocabulary) Refresh(_ context.Context) error {
	v.ensureLoaded()

	v.mu.Lock()
	defer v.mu.Unlock()

	loaded, err := v.load()
	if err != nil {
		return err
	}
	v.current.Store(&loaded)
	return nil
}

// Append normalizes the given tags, adds the ones not yet known and persists
// the result when a path is configured. It returns the tags actually added.
func (v *Vocabulary) Append(_ context.Context, in ...string) ([]string, error) {
	v.ensureLoaded()

	v.mu.Lock()
	defer v.mu.Unlock()

	cur := *v.current.Load()
	var added []string
	for _, t := range tags.NormalizeAll(in) {
		if _, found := slices.BinarySearch(cur, t); !found {
			added = append(added, t)
		}
	}
	if len(added) == 0 {
		return nil, nil
	}

	next := make([]string, 0, len(cur)+len(added))
	next = append(next, cur...)
	next = append(next, added...)
	slices.Sort(next)

	if err := v.persist(next); err != nil {
		return nil, err
	}
	v.current.Store(&next)
	return added, nil
}

func (v *Vocabulary) ensureLoaded() {
	v.loadOnce.Do(func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		loaded, err := v.load()
		if err != nil {
			loaded = canonical(v.seed)
		}
		v.current.Store(&loaded)
	})
}

func (v *Vocabulary) load() ([]string, error) {
	if v.path == "" {
		return canonical(v.seed), nil
	}
	raw, err := os.ReadFile(v.path)
	if errors.Is(err, fs.ErrNotExist) {
		return canonical(v.seed), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVocabularyLoad, err)
	}

	var doc vocabularyFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		var list []string
		if yaml.Unmarshal(raw, &list) != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrVocabularyLoad, v.path, err)
		}
		doc.Tags = list
	}
	return canonical(doc.Tags), nil
}

func (v *Vocabulary) persist(list []string) error {
	if v.path == "" {
		return nil
	}
	raw, err := yaml.Marshal(vocabularyFile{Tags: list})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVocabularyPersist, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(v.path), ".vocabulary-*.yaml")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVocabularyPersist, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", ErrVocabularyPersist, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrVocabularyPersist, err)
	}
	if err := os.Rename(tmp.Name(), v.path); err != nil {
		return fmt.Errorf("%w: %w", ErrVocabularyPersist, err)
	}
	return nil
}

// canonical normalizes, deduplicates and sorts a tag list.
func canonical(in []string) []string {
	out := tags.NormalizeAll(in)
	slices.Sort(out)
	return out
}
