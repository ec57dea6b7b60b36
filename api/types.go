package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/zkvote-node/types"
	"github.com/vocdoni/zkvote-node/voting"
)

// InfoResponse describes the election served by the node.
type InfoResponse struct {
	Election string             `json:"election,omitempty"`
	Scope    string             `json:"scope,omitempty"`
	Roots    []types.CensusRoot `json:"roots"`
	voting.Stats
}

// CandidatesResponse is the response returned by the candidates list
// endpoint.
type CandidatesResponse struct {
	Candidates []*types.Candidate `json:"candidates"`
	TotalVotes uint64             `json:"totalVotes"`
}

// RegisterCandidateRequest is the body of the candidate registration
// endpoint.
type RegisterCandidateRequest struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
}

// RegisterVoterRequest is the body of the voter registration endpoint.
type RegisterVoterRequest struct {
	Address common.Address `json:"address"`
}

// VoteResponse is the response returned by the vote submission endpoint.
type VoteResponse struct {
	CandidateID types.CandidateID `json:"candidateId"`
	Nullifier   types.Nullifier   `json:"nullifier"`
}

// VerifyProofRequest is the body of the proof verification endpoint.
type VerifyProofRequest struct {
	Proof     types.HexBytes   `json:"proof"`
	Root      types.CensusRoot `json:"root"`
	Nullifier types.Nullifier  `json:"nullifier"`
}

// VerifyProofResponse is the response returned by the proof verification
// endpoint.
type VerifyProofResponse struct {
	Valid bool `json:"valid"`
}

// TransferRequest is the body of the vote transfer endpoint.
type TransferRequest struct {
	From  types.CandidateID `json:"from"`
	To    types.CandidateID `json:"to"`
	Count uint64            `json:"count"`
}

// TransfersResponse is the response returned by the transfers list endpoint.
type TransfersResponse struct {
	Transfers []*types.Transfer `json:"transfers"`
}

// VotersResponse is the response returned by the voters list endpoint.
type VotersResponse struct {
	Voters []*types.Voter `json:"voters"`
}

// NullifierResponse is the response returned by the nullifier endpoint.
type NullifierResponse struct {
	Nullifier types.Nullifier `json:"nullifier"`
	Spent     bool            `json:"spent"`
}
