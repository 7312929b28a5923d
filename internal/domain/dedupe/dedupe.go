// Package dedupe tracks ingested record IDs so that re-submitting a record is
// acknowledged as a duplicate instead of being processed twice.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 50_000

// Deduper records seen record keys.
type Deduper interface {
	// SeenAndRecord atomically checks whether key was seen and records it if
	// not. It returns true when key was already present.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so a rejected record can be resubmitted.
	Unrecord(ctx context.Context, key string)

	// Seed records keys known to be processed, e.g. loaded from a store at
	// startup. Already present keys are left in place.
	Seed(ctx context.Context, keys ...string)

	Size() int64
}

// Key scopes a record id by its kind, so a review and a contribution may
// share an id.
func Key(kind, id string) string {
	return kind + ":" + id
}

// inMemoryDeduper keeps keys in insertion order and evicts the oldest first
// once maxSize is reached. maxSize <= 0 disables eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		seen:    make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	d.record(key)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

func (d *inMemoryDeduper) Seed(_ context.Context, keys ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, key := range keys {
		if _, ok := d.seen[key]; !ok {
			d.record(key)
		}
	}
}

// record must be called with d.mu held.
func (d *inMemoryDeduper) record(key string) {
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		if oldest := d.order.Front(); oldest != nil {
			d.order.Remove(oldest)
			delete(d.seen, oldest.Value.(string))
			d.size.Add(-1)
		}
	}
	d.seen[key] = d.order.PushBack(key)
	d.size.Add(1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
