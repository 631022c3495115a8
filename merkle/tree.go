package merkle

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/eth2030/merkledrop/core/types"
	"github.com/eth2030/merkledrop/log"
	"github.com/eth2030/merkledrop/metrics"
)

var (
	ErrEmptyEntitlements = errors.New("merkle: no entitlements")
	ErrNilAmount         = errors.New("merkle: entitlement amount is nil")
	ErrDuplicateAccount  = errors.New("merkle: duplicate account")
	ErrIndexOutOfRange   = errors.New("merkle: leaf index out of range")
)

// OddPolicy decides what happens to the unpaired last node of a level.
type OddPolicy uint8

const (
	// CarryOdd promotes the unpaired node to the next level unchanged.
	CarryOdd OddPolicy = iota
	// DuplicateOdd pairs the unpaired node with itself.
	DuplicateOdd
)

// String implements fmt.Stringer.
func (p OddPolicy) String() string {
	switch p {
	case CarryOdd:
		return "carry"
	case DuplicateOdd:
		return "duplicate"
	default:
		return fmt.Sprintf("OddPolicy(%d)", uint8(p))
	}
}

type buildConfig struct {
	odd     OddPolicy
	workers int
	unique  bool
}

// Option configures Build.
type Option func(*buildConfig)

// WithOddPolicy selects how unpaired nodes are handled.
func WithOddPolicy(p OddPolicy) Option {
	return func(c *buildConfig) { c.odd = p }
}

// WithWorkers bounds the number of goroutines used for hashing. Values below
// one fall back to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *buildConfig) { c.workers = n }
}

// WithUniqueAccounts makes Build reject lists in which an account appears
// more than once.
func WithUniqueAccounts() Option {
	return func(c *buildConfig) { c.unique = true }
}

// parallelThreshold is the leaf count below which hashing stays on the
// calling goroutine.
const parallelThreshold = 256

// Tree is an immutable Merkle commitment over an ordered entitlement list.
type Tree struct {
	entitlements []types.Entitlement
	levels       [][]types.Hash // levels[0] are the leaves, last level is the root
	proofs       [][]types.Hash
	index        map[types.Address]int // first occurrence of each account
	odd          OddPolicy
}

// Build hashes every entitlement, folds the levels into a root and derives a
// proof for every leaf. Identical input and options always produce the same
// tree, regardless of the worker count.
func Build(entitlements []types.Entitlement, opts ...Option) (*Tree, error) {
	cfg := buildConfig{odd: CarryOdd, workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = runtime.GOMAXPROCS(0)
	}
	if len(entitlements) == 0 {
		return nil, ErrEmptyEntitlements
	}
	timer := metrics.NewTimer(metrics.MerkleBuildTime)

	t := &Tree{
		entitlements: make([]types.Entitlement, len(entitlements)),
		index:        make(map[types.Address]int, len(entitlements)),
		odd:          cfg.odd,
	}
	for i, e := range entitlements {
		if e.Amount == nil {
			return nil, fmt.Errorf("%w: index %d (%s)", ErrNilAmount, i, e.Account.Hex())
		}
		if first, seen := t.index[e.Account]; seen {
			if cfg.unique {
				return nil, fmt.Errorf("%w: %s at index %d and %d", ErrDuplicateAccount, e.Account.Hex(), first, i)
			}
		} else {
			t.index[e.Account] = i
		}
		t.entitlements[i] = types.NewEntitlement(e.Account, e.Amount)
	}

	leaves := make([]types.Hash, len(t.entitlements))
	parallelFor(len(leaves), cfg.workers, func(i int) {
		leaves[i] = EntitlementLeaf(t.entitlements[i])
	})
	t.levels = foldLevels(leaves, cfg.odd)

	t.proofs = make([][]types.Hash, len(leaves))
	parallelFor(len(leaves), cfg.workers, func(i int) {
		t.proofs[i] = t.buildProof(i)
	})

	elapsed := timer.Stop()
	metrics.MerkleBuilds.Inc()
	metrics.MerkleLeaves.Add(int64(len(leaves)))
	log.Default().Module("merkle").Debug("Built commitment",
		"leaves", len(leaves), "depth", len(t.levels)-1, "odd", cfg.odd.String(),
		"root", t.Root().Hex(), "elapsed", elapsed)
	return t, nil
}

// foldLevels pairs adjacent nodes level by level until one remains.
func foldLevels(leaves []types.Hash, odd OddPolicy) [][]types.Hash {
	levels := [][]types.Hash{leaves}
	cur := leaves
	for len(cur) > 1 {
		next := make([]types.Hash, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			if i+1 < len(cur) {
				next = append(next, HashPair(cur[i], cur[i+1]))
				continue
			}
			if odd == DuplicateOdd {
				next = append(next, HashPair(cur[i], cur[i]))
			} else {
				next = append(next, cur[i])
			}
		}
		levels = append(levels, next)
		cur = next
	}
	return levels
}

// buildProof collects the sibling digests on the path from leaf i to the root.
func (t *Tree) buildProof(i int) []types.Hash {
	proof := make([]types.Hash, 0, len(t.levels)-1)
	pos := i
	for _, level := range t.levels[:len(t.levels)-1] {
		sib := pos ^ 1
		switch {
		case sib < len(level):
			proof = append(proof, level[sib])
		case t.odd == DuplicateOdd:
			proof = append(proof, level[pos])
		}
		pos /= 2
	}
	return proof
}

// parallelFor runs fn(i) for i in [0, n), splitting the range into
// contiguous chunks across at most workers goroutines. Each index is
// written by exactly one goroutine.
func parallelFor(n, workers int, fn func(i int)) {
	if n < parallelThreshold || workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		lo, hi := start, min(start+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Root returns the commitment root.
func (t *Tree) Root() types.Hash {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Len returns the number of leaves.
func (t *Tree) Len() int { return len(t.entitlements) }

// Depth returns the number of levels above the leaves.
func (t *Tree) Depth() int { return len(t.levels) - 1 }

// OddPolicy returns the pairing policy the tree was built with.
func (t *Tree) OddPolicy() OddPolicy { return t.odd }

// Leaf returns the digest of leaf i.
func (t *Tree) Leaf(i int) (types.Hash, error) {
	if i < 0 || i >= len(t.entitlements) {
		return types.Hash{}, ErrIndexOutOfRange
	}
	return t.levels[0][i], nil
}

// Entitlement returns a copy of entitlement i.
func (t *Tree) Entitlement(i int) (types.Entitlement, error) {
	if i < 0 || i >= len(t.entitlements) {
		return types.Entitlement{}, ErrIndexOutOfRange
	}
	e := t.entitlements[i]
	return types.NewEntitlement(e.Account, e.Amount), nil
}

// Proof returns a copy of the proof for leaf i.
func (t *Tree) Proof(i int) ([]types.Hash, error) {
	if i < 0 || i >= len(t.entitlements) {
		return nil, ErrIndexOutOfRange
	}
	return append([]types.Hash(nil), t.proofs[i]...), nil
}

// IndexOf returns the leaf index of the first entitlement for account.
func (t *Tree) IndexOf(account types.Address) (int, bool) {
	i, ok := t.index[account]
	return i, ok
}

// ProofFor returns the proof of the first entitlement for account.
func (t *Tree) ProofFor(account types.Address) ([]types.Hash, bool) {
	i, ok := t.IndexOf(account)
	if !ok {
		return nil, false
	}
	return append([]types.Hash(nil), t.proofs[i]...), true
}

// Proofs returns account -> proof for the first entitlement of every account.
func (t *Tree) Proofs() map[types.Address][]types.Hash {
	out := make(map[types.Address][]types.Hash, len(t.index))
	for account, i := range t.index {
		out[account] = append([]types.Hash(nil), t.proofs[i]...)
	}
	return out
}
