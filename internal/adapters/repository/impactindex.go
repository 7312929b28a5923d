package repository

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/okian/devmatch/internal/domain/types"
)

// ImpactIndex is an in-memory order-statistics treap over developer overall
// impact. Ordering: impact DESC, then username ASC; developers without an
// impact score sort last.
//
// In-order traversal yields the ranking from best to worst, and subtree
// sizes make Rank O(log n).
type ImpactIndex struct {
	mu     sync.RWMutex
	root   *node
	byName map[string]impactFP
}

// impactScale is the fixed-point precision of stored impact values.
const impactScale = 1_000_000_000

type impactFP int64

// noImpact ranks below every real score.
const noImpact = impactFP(math.MinInt64)

func toFixedPoint(v *float64) impactFP {
	if v == nil || math.IsNaN(*v) {
		return noImpact
	}
	scaled := math.Round(*v * impactScale)
	switch {
	case scaled >= math.MaxInt64:
		return impactFP(math.MaxInt64)
	case scaled <= math.MinInt64+1:
		return noImpact + 1
	}
	return impactFP(scaled)
}

func toImpact(x impactFP) *float64 {
	if x == noImpact {
		return nil
	}
	v := float64(x) / impactScale
	return &v
}

type node struct {
	name  string
	score impactFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aScore, aName) ranks before (bScore, bName).
func less(aScore impactFP, aName string, bScore impactFP, bName string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aName < bName
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, name string, score impactFP, prio uint64) *node {
	if n == nil {
		return &node{name: name, score: score, prio: prio, size: 1}
	}
	if less(score, name, n.score, n.name) {
		n.left = insert(n.left, name, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, name, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, name string, score impactFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && name == n.name:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, name, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, name, score)
		}
	case less(score, name, n.score, n.name):
		n.left = deleteNode(n.left, name, score)
	default:
		n.right = deleteNode(n.right, name, score)
	}
	fix(n)
	return n
}

// countBefore returns how many nodes rank strictly before (score, name).
func countBefore(n *node, score impactFP, name string) int {
	count := 0
	for n != nil {
		if less(n.score, n.name, score, name) {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit nodes in rank order.
func collectTopN(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// NewImpactIndex returns an empty index.
func NewImpactIndex() *ImpactIndex {
	return &ImpactIndex{byName: make(map[string]impactFP)}
}

// Upsert sets the impact of username, replacing any previous value.
func (x *ImpactIndex) Upsert(username string, impact *float64) {
	ns := toFixedPoint(impact)

	x.mu.Lock()
	defer x.mu.Unlock()

	if old, ok := x.byName[username]; ok {
		if old == ns {
			return
		}
		x.root = deleteNode(x.root, username, old)
	}
	x.byName[username] = ns
	x.root = insert(x.root, username, ns, rand.Uint64())
}

// Remove drops username from the index.
func (x *ImpactIndex) Remove(username string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if old, ok := x.byName[username]; ok {
		x.root = deleteNode(x.root, username, old)
		delete(x.byName, username)
	}
}

// Rank returns the position of username. Developers with equal impact share
// a rank (1, 2, 2, 4).
func (x *ImpactIndex) Rank(username string) (types.Entry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	score, ok := x.byName[username]
	if !ok {
		return types.Entry{}, ErrNotFound
	}
	// "" sorts before every username, so this counts strictly higher scores.
	return types.Entry{
		Rank:          countBefore(x.root, score, "") + 1,
		Username:      username,
		OverallImpact: toImpact(score),
	}, nil
}

// TopN returns the n best-ranked developers.
func (x *ImpactIndex) TopN(n int) ([]types.Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	nodes := make([]*node, 0, min(n, len(x.byName)))
	collectTopN(x.root, n, &nodes)

	out := make([]types.Entry, len(nodes))
	rank := 0
	for i, nd := range nodes {
		if i == 0 || nd.score != nodes[i-1].score {
			rank = i + 1
		}
		out[i] = types.Entry{Rank: rank, Username: nd.name, OverallImpact: toImpact(nd.score)}
	}
	return out, nil
}

// Count returns the number of indexed developers.
func (x *ImpactIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byName)
}
