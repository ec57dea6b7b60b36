package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/zkvote-node/types"
)

// VoterRegistry stores the eligible voters and whether they already voted.
type VoterRegistry struct {
	s *Storage
}

// Register adds an eligible voter that has not voted yet.
func (r *VoterRegistry) Register(address common.Address) error {
	return r.s.Update(func(tx *Tx) error {
		return tx.AddVoter(address)
	})
}

// Get returns the voter record.
func (r *VoterRegistry) Get(address common.Address) (*types.Voter, error) {
	var v *types.Voter
	err := r.s.View(func(tx *Tx) error {
		var err error
		v, err = tx.Voter(address)
		return err
	})
	return v, err
}

// HasVoted reports whether the voter already cast a vote.
func (r *VoterRegistry) HasVoted(address common.Address) (bool, error) {
	v, err := r.Get(address)
	if err != nil {
		return false, err
	}
	return v.HasVoted, nil
}

// List returns every registered voter, ordered by address.
func (r *VoterRegistry) List() ([]*types.Voter, error) {
	var list []*types.Voter
	err := r.s.View(func(tx *Tx) error {
		var err error
		list, err = tx.Voters()
		return err
	})
	return list, err
}

// MarkVoted records that the voter cast a vote. It fails if the voter is not
// registered or already voted.
func (r *VoterRegistry) MarkVoted(address common.Address) error {
	return r.s.Update(func(tx *Tx) error {
		return tx.MarkVoted(address)
	})
}

// Voter returns the voter record, or ErrVoterNotFound.
func (tx *Tx) Voter(address common.Address) (*types.Voter, error) {
	v := &types.Voter{}
	if err := tx.getArtifact(voterPrefix, address.Bytes(), v); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrVoterNotFound, address.Hex())
		}
		return nil, err
	}
	return v, nil
}

// AddVoter registers an eligible voter.
func (tx *Tx) AddVoter(address common.Address) error {
	exists, err := tx.has(voterPrefix, address.Bytes())
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateVoter, address.Hex())
	}
	return tx.setArtifact(voterPrefix, address.Bytes(), &types.Voter{Address: address})
}

// MarkVoted flips the voter's HasVoted flag.
func (tx *Tx) MarkVoted(address common.Address) error {
	v, err := tx.Voter(address)
	if err != nil {
		return err
	}
	if v.HasVoted {
		return fmt.Errorf("%w: %s", ErrAlreadyVoted, address.Hex())
	}
	v.HasVoted = true
	return tx.setArtifact(voterPrefix, address.Bytes(), v)
}

// Voters returns every registered voter, ordered by address.
func (tx *Tx) Voters() ([]*types.Voter, error) {
	var (
		list      []*types.Voter
		decodeErr error
	)
	if err := tx.prefixed(voterPrefix).Iterate(nil, func(_, v []byte) bool {
		voter := &types.Voter{}
		if decodeErr = DecodeArtifact(v, voter); decodeErr != nil {
			return false
		}
		list = append(list, voter)
		return true
	}); err != nil {
		return nil, err
	}
	return list, decodeErr
}
