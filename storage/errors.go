package storage

import "errors"

// ErrNotFound is returned by internal lookups of missing records.
var ErrNotFound = errors.New("not found")

var (
	ErrDuplicateCandidate    = errors.New("candidate already registered")
	ErrCandidateNotFound     = errors.New("candidate not found")
	ErrInsufficientVotes     = errors.New("insufficient votes")
	ErrDuplicateVoter        = errors.New("voter already registered")
	ErrVoterNotFound         = errors.New("voter not found")
	ErrAlreadyVoted          = errors.New("voter already voted")
	ErrNullifierAlreadySpent = errors.New("nullifier already spent")
)
