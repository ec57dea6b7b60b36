package verifier

import (
	"bytes"
	"context"
	"slices"

	"github.com/vocdoni/zkvote-node/log"
	"github.com/vocdoni/zkvote-node/types"
)

// RootSet rejects proofs made against census roots that are not accepted by
// the node, before running the wrapped verifier. The set is fixed at
// creation.
type RootSet struct {
	next  Verifier
	roots map[types.CensusRoot]struct{}
}

var _ Verifier = (*RootSet)(nil)

// NewRootSet wraps next accepting only the given roots.
func NewRootSet(next Verifier, roots ...types.CensusRoot) *RootSet {
	rs := &RootSet{next: next, roots: make(map[types.CensusRoot]struct{}, len(roots))}
	for _, r := range roots {
		rs.roots[r] = struct{}{}
	}
	return rs
}

// Contains reports whether root is accepted.
func (rs *RootSet) Contains(root types.CensusRoot) bool {
	_, ok := rs.roots[root]
	return ok
}

// Roots returns the accepted roots in ascending byte order.
func (rs *RootSet) Roots() []types.CensusRoot {
	roots := make([]types.CensusRoot, 0, len(rs.roots))
	for r := range rs.roots {
		roots = append(roots, r)
	}
	slices.SortFunc(roots, func(a, b types.CensusRoot) int {
		return bytes.Compare(a[:], b[:])
	})
	return roots
}

// Verify implements Verifier.
func (rs *RootSet) Verify(ctx context.Context, proof []byte, root types.CensusRoot, nullifier types.Nullifier) (bool, error) {
	if !rs.Contains(root) {
		log.Debugw("proof made against unknown census root", "root", root.Hex())
		return false, nil
	}
	return rs.next.Verify(ctx, proof, root, nullifier)
}
