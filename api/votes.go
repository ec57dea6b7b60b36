package api

import (
	"net/http"

	"github.com/vocdoni/zkvote-node/log"
	"github.com/vocdoni/zkvote-node/types"
)

// newVote casts a vote
// POST /votes
func (a *API) newVote(w http.ResponseWriter, r *http.Request) {
	vote := &types.Vote{}
	if !decodeJSONBody(w, r, vote) {
		return
	}
	if err := a.engine.CastVote(r.Context(), vote); err != nil {
		votingError(err).Write(w)
		return
	}
	httpWriteJSON(w, &VoteResponse{
		CandidateID: vote.CandidateID,
		Nullifier:   vote.Nullifier,
	})
}

// verifyProof checks a proof without casting a vote
// POST /proofs/verify
func (a *API) verifyProof(w http.ResponseWriter, r *http.Request) {
	req := &VerifyProofRequest{}
	if !decodeJSONBody(w, r, req) {
		return
	}
	valid, err := a.engine.VerifyProof(r.Context(), req.Proof, req.Root, req.Nullifier)
	if err != nil {
		// a verifier error is not a verdict
		log.Debugw("proof verification failed", "root", req.Root.Hex(), "error", err)
		votingError(err).Write(w)
		return
	}
	httpWriteJSON(w, &VerifyProofResponse{Valid: valid})
}

// nullifier reports whether a nullifier already backs a vote
// GET /nullifiers/{nullifier}
func (a *API) nullifier(w http.ResponseWriter, r *http.Request) {
	n, ok := nullifierParam(w, r)
	if !ok {
		return
	}
	spent, err := a.engine.IsNullifierSpent(n)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &NullifierResponse{Nullifier: n, Spent: spent})
}
