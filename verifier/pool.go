package verifier

import (
	"context"
	"runtime"

	"github.com/vocdoni/zkvote-node/types"
	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of verifications running at the same time. Callers
// beyond the limit wait for a free slot or for their context to end.
type Pool struct {
	next Verifier
	sem  *semaphore.Weighted
}

var _ Verifier = (*Pool)(nil)

// NewPool wraps next allowing at most workers concurrent verifications. A
// non-positive value uses the number of CPUs.
func NewPool(next Verifier, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{next: next, sem: semaphore.NewWeighted(int64(workers))}
}

// Verify implements Verifier.
func (p *Pool) Verify(ctx context.Context, proof []byte, root types.CensusRoot, nullifier types.Nullifier) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer p.sem.Release(1)
	return p.next.Verify(ctx, proof, root, nullifier)
}
