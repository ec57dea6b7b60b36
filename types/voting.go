package types

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// CandidateID identifies a candidate. IDs are assigned sequentially starting
// at 1 and never reused.
type CandidateID uint64

// String returns the decimal representation of the id.
func (id CandidateID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseCandidateID parses a decimal candidate id.
func ParseCandidateID(s string) (CandidateID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid candidate id %q: %w", s, err)
	}
	return CandidateID(id), nil
}

// Nullifier is the one-time token derived from a voter secret and the
// election scope. A nullifier can back at most one accepted vote.
type Nullifier = common.Hash

// CensusRoot is the public commitment to the set of eligible voters that
// membership proofs are checked against.
type CensusRoot = common.Hash

// Candidate is a registered candidate and its current tally.
type Candidate struct {
	ID          CandidateID `json:"id" cbor:"0,keyasint"`
	Name        string      `json:"name" cbor:"1,keyasint"`
	Affiliation string      `json:"affiliation" cbor:"2,keyasint,omitempty"`
	Votes       uint64      `json:"votes" cbor:"3,keyasint"`
}

// Voter is an eligible voter. HasVoted flips from false to true exactly once.
type Voter struct {
	Address  common.Address `json:"address" cbor:"0,keyasint"`
	HasVoted bool           `json:"hasVoted" cbor:"1,keyasint"`
}

// Vote is a request to cast one vote for a candidate.
type Vote struct {
	Voter       common.Address `json:"voter"`
	CandidateID CandidateID    `json:"candidateId"`
	Proof       HexBytes       `json:"proof"`
	Root        CensusRoot     `json:"root"`
	Nullifier   Nullifier      `json:"nullifier"`
}

// String returns a short human readable description of the vote, for logs.
func (v *Vote) String() string {
	return fmt.Sprintf("voter=%s candidate=%d nullifier=%s", v.Voter.Hex(), v.CandidateID, v.Nullifier.TerminalString())
}

// Transfer is the audit record of an administrative reassignment of votes
// between two candidates.
type Transfer struct {
	ID        string      `json:"id" cbor:"0,keyasint"`
	From      CandidateID `json:"from" cbor:"1,keyasint"`
	To        CandidateID `json:"to" cbor:"2,keyasint"`
	Count     uint64      `json:"count" cbor:"3,keyasint"`
	Timestamp int64       `json:"timestamp" cbor:"4,keyasint"`
}
