package storage

import (
	"errors"
	"fmt"
	"math"

	"github.com/vocdoni/zkvote-node/types"
)

// CandidateRegistry stores the candidates and their vote counters.
// Candidates are never deleted and their IDs are never reused.
type CandidateRegistry struct {
	s *Storage
}

// Register adds a candidate with the next sequential ID, starting at 1.
func (r *CandidateRegistry) Register(name, affiliation string) (types.CandidateID, error) {
	var id types.CandidateID
	err := r.s.Update(func(tx *Tx) error {
		c, err := tx.AddCandidate(name, affiliation)
		if err != nil {
			return err
		}
		id = c.ID
		return nil
	})
	return id, err
}

// Get returns the candidate with the given ID.
func (r *CandidateRegistry) Get(id types.CandidateID) (*types.Candidate, error) {
	var c *types.Candidate
	err := r.s.View(func(tx *Tx) error {
		var err error
		c, err = tx.Candidate(id)
		return err
	})
	return c, err
}

// List returns every candidate, ordered by ID.
func (r *CandidateRegistry) List() ([]*types.Candidate, error) {
	var list []*types.Candidate
	err := r.s.View(func(tx *Tx) error {
		var err error
		list, err = tx.Candidates()
		return err
	})
	return list, err
}

// Increment adds one vote to the candidate.
func (r *CandidateRegistry) Increment(id types.CandidateID) error {
	return r.s.Update(func(tx *Tx) error {
		return tx.IncrementVotes(id)
	})
}

// Transfer moves count votes from one candidate to another, atomically.
func (r *CandidateRegistry) Transfer(from, to types.CandidateID, count uint64) error {
	return r.s.Update(func(tx *Tx) error {
		return tx.TransferVotes(from, to, count)
	})
}

// Candidate returns the candidate with the given ID, or ErrCandidateNotFound.
func (tx *Tx) Candidate(id types.CandidateID) (*types.Candidate, error) {
	c := &types.Candidate{}
	if err := tx.getArtifact(candidatePrefix, candidateKey(id), c); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrCandidateNotFound, id)
		}
		return nil, err
	}
	return c, nil
}

// Candidates returns every candidate ordered by ID.
func (tx *Tx) Candidates() ([]*types.Candidate, error) {
	var (
		list      []*types.Candidate
		decodeErr error
	)
	if err := tx.prefixed(candidatePrefix).Iterate(nil, func(_, v []byte) bool {
		c := &types.Candidate{}
		if decodeErr = DecodeArtifact(v, c); decodeErr != nil {
			return false
		}
		list = append(list, c)
		return true
	}); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return list, nil
}

// AddCandidate registers a candidate under the next sequential ID.
func (tx *Tx) AddCandidate(name, affiliation string) (*types.Candidate, error) {
	last := uint64(0)
	raw, err := tx.prefixed(metadataPrefix).Get(lastCandidateIDKey)
	switch {
	case err == nil:
		if last, err = decodeUint64(raw); err != nil {
			return nil, fmt.Errorf("corrupted candidate sequence: %w", err)
		}
	case !isNotFound(err):
		return nil, err
	}
	if last == math.MaxUint64 {
		return nil, fmt.Errorf("candidate id space exhausted")
	}
	id := types.CandidateID(last + 1)

	exists, err := tx.has(candidatePrefix, candidateKey(id))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateCandidate, id)
	}

	c := &types.Candidate{ID: id, Name: name, Affiliation: affiliation}
	if err := tx.setArtifact(candidatePrefix, candidateKey(id), c); err != nil {
		return nil, err
	}
	if err := tx.prefixed(metadataPrefix).Set(lastCandidateIDKey, encodeUint64(uint64(id))); err != nil {
		return nil, err
	}
	return c, nil
}

// IncrementVotes adds one vote to the candidate.
func (tx *Tx) IncrementVotes(id types.CandidateID) error {
	c, err := tx.Candidate(id)
	if err != nil {
		return err
	}
	if c.Votes == math.MaxUint64 {
		return fmt.Errorf("vote counter overflow for candidate %d", id)
	}
	c.Votes++
	return tx.setArtifact(candidatePrefix, candidateKey(id), c)
}

// TransferVotes moves count votes from one candidate to another. Both
// candidates must exist and the source must hold at least count votes.
// Transferring to the same candidate leaves the tally unchanged.
func (tx *Tx) TransferVotes(from, to types.CandidateID, count uint64) error {
	src, err := tx.Candidate(from)
	if err != nil {
		return err
	}
	dst, err := tx.Candidate(to)
	if err != nil {
		return err
	}
	if count > src.Votes {
		return fmt.Errorf("%w: candidate %d has %d votes, %d requested", ErrInsufficientVotes, from, src.Votes, count)
	}
	if from == to || count == 0 {
		return nil
	}
	if dst.Votes > math.MaxUint64-count {
		return fmt.Errorf("vote counter overflow for candidate %d", to)
	}
	src.Votes -= count
	dst.Votes += count
	if err := tx.setArtifact(candidatePrefix, candidateKey(from), src); err != nil {
		return err
	}
	return tx.setArtifact(candidatePrefix, candidateKey(to), dst)
}
