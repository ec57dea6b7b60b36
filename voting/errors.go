package voting

import (
	"errors"
	"fmt"

	"github.com/vocdoni/zkvote-node/storage"
)

// Gate names the step of a request that rejected it.
type Gate string

const (
	GateEligibility Gate = "eligibility"
	GateNullifier   Gate = "nullifier"
	GateProof       Gate = "proof"
	GateCandidate   Gate = "candidate"
	GateCommit      Gate = "commit"
	GateRegistry    Gate = "registry"
)

var (
	ErrDuplicateCandidate = storage.ErrDuplicateCandidate
	ErrDuplicateVoter     = storage.ErrDuplicateVoter
	ErrVoterNotFound      = storage.ErrVoterNotFound
	ErrCandidateNotFound  = storage.ErrCandidateNotFound
	ErrAlreadyVoted       = storage.ErrAlreadyVoted
	ErrInsufficientVotes  = storage.ErrInsufficientVotes

	ErrDuplicateNullifier = errors.New("nullifier already used")
	ErrInvalidProof       = errors.New("invalid proof")
	ErrCommitFailure      = errors.New("commit failed")
	ErrInvalidRequest     = errors.New("invalid request")
)

// Rejection is the error returned when a request is refused. Nothing was
// written to the ledger.
type Rejection struct {
	Gate Gate
	Err  error
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("rejected at %s gate: %v", r.Gate, r.Err)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

func reject(gate Gate, err error) *Rejection {
	return &Rejection{Gate: gate, Err: err}
}

// GateOf returns the gate that rejected the request, or an empty string if
// err is not a Rejection.
func GateOf(err error) Gate {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Gate
	}
	return ""
}

// IsPermanent reports whether retrying the same request can never succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrAlreadyVoted) || errors.Is(err, ErrDuplicateNullifier)
}
