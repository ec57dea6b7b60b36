// Package verifier holds the proof verification contract used by the voting
// engine and its implementations: a groth16 membership verifier and a set of
// decorators (root pinning, verdict caching, bounded concurrency).
package verifier

import (
	"context"

	"github.com/vocdoni/zkvote-node/types"
)

// Verifier decides whether proof shows that its holder is a member of the
// census committed to by root and that nullifier was correctly derived for
// this election.
//
// Implementations must be deterministic and free of side effects. A false
// verdict with a nil error means the proof is invalid. A non-nil error means
// the verifier could not reach a verdict (for example, the context was
// cancelled).
type Verifier interface {
	Verify(ctx context.Context, proof []byte, root types.CensusRoot, nullifier types.Nullifier) (bool, error)
}

// Func adapts a plain function to the Verifier interface.
type Func func(ctx context.Context, proof []byte, root types.CensusRoot, nullifier types.Nullifier) (bool, error)

// Verify calls f.
func (f Func) Verify(ctx context.Context, proof []byte, root types.CensusRoot, nullifier types.Nullifier) (bool, error) {
	return f(ctx, proof, root, nullifier)
}
