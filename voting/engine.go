// Package voting implements the voting engine: it admits votes backed by a
// valid membership proof and an unused nullifier, and applies the
// administrative operations over the candidate and voter registries.
//
// A vote goes through the gates eligibility, nullifier, proof and candidate,
// and is then committed. The first two gates are checked against the
// committed state before the proof is verified, so that expensive
// verifications are skipped for requests that would be refused anyway. The
// proof is verified without holding the storage lock. Eligibility, nullifier
// and candidate are then checked again inside the commit transaction, where
// the vote counter, the nullifier and the voter flag are written together.
package voting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/vocdoni/zkvote-node/log"
	"github.com/vocdoni/zkvote-node/storage"
	"github.com/vocdoni/zkvote-node/types"
	"github.com/vocdoni/zkvote-node/verifier"
)

// Engine owns the ledger state and serves every voting operation.
type Engine struct {
	st       *storage.Storage
	verifier verifier.Verifier
	now      func() time.Time
}

// New returns an engine on top of st, verifying vote proofs with v.
func New(st *storage.Storage, v verifier.Verifier) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if v == nil {
		return nil, fmt.Errorf("proof verifier is required")
	}
	return &Engine{st: st, verifier: v, now: time.Now}, nil
}

// CastVote admits the vote if the voter is registered and has not voted, the
// nullifier was never used, the proof verifies against the root and nullifier
// and the candidate exists. On success the candidate gains one vote, the
// nullifier is spent and the voter is marked as voted, all at once. Any
// rejection is returned as a *Rejection and leaves the ledger untouched.
//
// If ctx is cancelled before the vote is committed, the context error is
// returned and nothing is written.
func (e *Engine) CastVote(ctx context.Context, vote *types.Vote) error {
	if vote == nil {
		return e.rejected(nil, reject(GateEligibility, ErrInvalidRequest))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.st.View(func(tx *storage.Tx) error {
		return checkVote(tx, vote, false)
	}); err != nil {
		return e.rejected(vote, err)
	}

	valid, err := e.verify(ctx, vote.Proof, vote.Root, vote.Nullifier)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return e.rejected(vote, reject(GateProof, fmt.Errorf("%w: %w", ErrInvalidProof, err)))
	}
	if !valid {
		return e.rejected(vote, reject(GateProof, ErrInvalidProof))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.st.Update(func(tx *storage.Tx) error {
		if err := checkVote(tx, vote, true); err != nil {
			return err
		}
		if err := tx.IncrementVotes(vote.CandidateID); err != nil {
			return err
		}
		if err := tx.SpendNullifier(vote.Nullifier); err != nil {
			return err
		}
		return tx.MarkVoted(vote.Voter)
	}); err != nil {
		return e.rejected(vote, classify(err))
	}

	VotesCast.Inc()
	log.Infow("vote cast",
		"voter", vote.Voter.Hex(),
		"candidate", vote.CandidateID,
		"nullifier", vote.Nullifier.Hex())
	return nil
}

// checkVote runs the eligibility and nullifier gates and, if withCandidate is
// set, the candidate gate.
func checkVote(tx *storage.Tx, vote *types.Vote, withCandidate bool) error {
	voter, err := tx.Voter(vote.Voter)
	if err != nil {
		return classify(err)
	}
	if voter.HasVoted {
		return reject(GateEligibility, fmt.Errorf("%w: %s", ErrAlreadyVoted, vote.Voter.Hex()))
	}
	spent, err := tx.IsNullifierSpent(vote.Nullifier)
	if err != nil {
		return err
	}
	if spent {
		return reject(GateNullifier, fmt.Errorf("%w: %s", ErrDuplicateNullifier, vote.Nullifier.Hex()))
	}
	if withCandidate {
		if _, err := tx.Candidate(vote.CandidateID); err != nil {
			return classify(err)
		}
	}
	return nil
}

// rejected records a refused request and returns the error to the caller.
func (e *Engine) rejected(vote *types.Vote, err error) error {
	gate := GateOf(err)
	if gate == "" {
		// a read failure before any write
		gate = GateCommit
		err = reject(GateCommit, fmt.Errorf("%w: %w", ErrCommitFailure, err))
	}
	VotesRejected.WithLabelValues(string(gate)).Inc()
	if gate == GateCommit {
		log.Errorw(err, "could not commit vote "+describe(vote))
		return err
	}
	log.Debugw("vote rejected", "gate", gate, "vote", describe(vote), "error", err.Error())
	return err
}

func describe(vote *types.Vote) string {
	if vote == nil {
		return "<nil>"
	}
	return vote.String()
}

// classify turns a storage error into a Rejection naming the gate it belongs
// to. Errors that are not ledger rejections become commit failures.
func classify(err error) error {
	var r *Rejection
	switch {
	case errors.As(err, &r):
		return err
	case errors.Is(err, ErrVoterNotFound), errors.Is(err, ErrAlreadyVoted):
		return reject(GateEligibility, err)
	case errors.Is(err, storage.ErrNullifierAlreadySpent):
		return reject(GateNullifier, fmt.Errorf("%w: %w", ErrDuplicateNullifier, err))
	case errors.Is(err, ErrCandidateNotFound):
		return reject(GateCandidate, err)
	case errors.Is(err, ErrDuplicateCandidate),
		errors.Is(err, ErrDuplicateVoter),
		errors.Is(err, ErrInsufficientVotes),
		errors.Is(err, ErrInvalidRequest):
		return reject(GateRegistry, err)
	default:
		return reject(GateCommit, fmt.Errorf("%w: %w", ErrCommitFailure, err))
	}
}

// VerifyProof checks a proof against the root and nullifier without casting
// a vote. It does not consult the ledger.
func (e *Engine) VerifyProof(ctx context.Context, proof []byte, root types.CensusRoot, nullifier types.Nullifier) (bool, error) {
	return e.verify(ctx, proof, root, nullifier)
}

func (e *Engine) verify(ctx context.Context, proof []byte, root types.CensusRoot, nullifier types.Nullifier) (bool, error) {
	start := time.Now()
	defer func() {
		ProofVerifyDuration.Observe(time.Since(start).Seconds())
	}()
	return e.verifier.Verify(ctx, proof, root, nullifier)
}

// TransferVotes moves count votes from one candidate to another and records
// the transfer in the audit trail. Voters and nullifiers are never touched.
// A transfer to the same candidate, or of zero votes, leaves the tallies
// unchanged but is still recorded.
func (e *Engine) TransferVotes(ctx context.Context, from, to types.CandidateID, count uint64) (*types.Transfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := &types.Transfer{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Count:     count,
		Timestamp: e.now().UnixNano(),
	}
	if err := e.st.Update(func(tx *storage.Tx) error {
		if err := tx.TransferVotes(from, to, count); err != nil {
			return err
		}
		return tx.RecordTransfer(t)
	}); err != nil {
		err = classify(err)
		if GateOf(err) == GateCommit {
			log.Errorw(err, fmt.Sprintf("could not commit transfer %s", t.ID))
		}
		return nil, err
	}

	if from != to {
		VotesTransferred.Add(float64(count))
	}
	log.Audit("votes transferred", map[string]any{
		"id":    t.ID,
		"from":  uint64(from),
		"to":    uint64(to),
		"count": count,
	})
	return t, nil
}

// RegisterCandidate adds a candidate under the next sequential ID.
func (e *Engine) RegisterCandidate(ctx context.Context, name, affiliation string) (*types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, reject(GateRegistry, fmt.Errorf("%w: empty candidate name", ErrInvalidRequest))
	}
	var c *types.Candidate
	if err := e.st.Update(func(tx *storage.Tx) error {
		var err error
		c, err = tx.AddCandidate(name, strings.TrimSpace(affiliation))
		return err
	}); err != nil {
		return nil, classify(err)
	}
	log.Infow("candidate registered", "id", c.ID, "name", c.Name, "affiliation", c.Affiliation)
	return c, nil
}

// RegisterVoter makes address eligible to vote.
func (e *Engine) RegisterVoter(ctx context.Context, address common.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if address == (common.Address{}) {
		return reject(GateRegistry, fmt.Errorf("%w: zero voter address", ErrInvalidRequest))
	}
	if err := e.st.Update(func(tx *storage.Tx) error {
		return tx.AddVoter(address)
	}); err != nil {
		return classify(err)
	}
	log.Infow("voter registered", "address", address.Hex())
	return nil
}

// Candidate returns the committed state of a candidate.
func (e *Engine) Candidate(id types.CandidateID) (*types.Candidate, error) {
	return e.st.Candidates().Get(id)
}

// ListCandidates returns every candidate with its committed tally, ordered
// by ID.
func (e *Engine) ListCandidates() ([]*types.Candidate, error) {
	list, err := e.st.Candidates().List()
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*types.Candidate{}
	}
	return list, nil
}

// TotalVotes returns the sum of all the candidate tallies, which equals the
// number of votes cast.
func (e *Engine) TotalVotes() (uint64, error) {
	list, err := e.st.Candidates().List()
	if err != nil {
		return 0, err
	}
	total := uint64(0)
	for _, c := range list {
		total += c.Votes
	}
	return total, nil
}

// Voter returns the registration of address.
func (e *Engine) Voter(address common.Address) (*types.Voter, error) {
	return e.st.Voters().Get(address)
}

// ListVoters returns every registered voter, ordered by address.
func (e *Engine) ListVoters() ([]*types.Voter, error) {
	list, err := e.st.Voters().List()
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*types.Voter{}
	}
	return list, nil
}

// HasVoted reports whether address already cast its vote.
func (e *Engine) HasVoted(address common.Address) (bool, error) {
	return e.st.Voters().HasVoted(address)
}

// IsNullifierSpent reports whether the nullifier already backs a vote.
func (e *Engine) IsNullifierSpent(nullifier types.Nullifier) (bool, error) {
	return e.st.Nullifiers().IsSpent(nullifier)
}

// Transfers returns the audit trail of vote transfers, oldest first.
func (e *Engine) Transfers() ([]*types.Transfer, error) {
	list, err := e.st.Transfers()
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*types.Transfer{}
	}
	return list, nil
}

// Stats summarizes the ledger.
type Stats struct {
	Candidates      int    `json:"candidates"`
	TotalVotes      uint64 `json:"totalVotes"`
	SpentNullifiers int    `json:"spentNullifiers"`
}

// Stats returns a summary of the committed ledger state.
func (e *Engine) Stats() (*Stats, error) {
	list, err := e.st.Candidates().List()
	if err != nil {
		return nil, err
	}
	spent, err := e.st.Nullifiers().Count()
	if err != nil {
		return nil, err
	}
	s := &Stats{Candidates: len(list), SpentNullifiers: spent}
	for _, c := range list {
		s.TotalVotes += c.Votes
	}
	return s, nil
}
