package voting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zkvote-node/db"
	"github.com/vocdoni/zkvote-node/db/inmemory"
	"github.com/vocdoni/zkvote-node/db/metadb"
	"github.com/vocdoni/zkvote-node/internal/testutil"
	"github.com/vocdoni/zkvote-node/storage"
	"github.com/vocdoni/zkvote-node/types"
	"github.com/vocdoni/zkvote-node/verifier"
)

// validProof is the only proof accepted by testVerifier for root and
// nullifier.
func validProof(root types.CensusRoot, nullifier types.Nullifier) []byte {
	return crypto.Keccak256(root.Bytes(), nullifier.Bytes())
}

var testVerifier = verifier.Func(func(_ context.Context, proof []byte, root types.CensusRoot, nullifier types.Nullifier) (bool, error) {
	return bytes.Equal(proof, validProof(root, nullifier)), nil
})

var testRoot = common.HexToHash("0x0badc0ffee")

func newVote(voter common.Address, candidate types.CandidateID, nullifier types.Nullifier) *types.Vote {
	return &types.Vote{
		Voter:       voter,
		CandidateID: candidate,
		Proof:       validProof(testRoot, nullifier),
		Root:        testRoot,
		Nullifier:   nullifier,
	}
}

func newTestEngine(t *testing.T, v verifier.Verifier) *Engine {
	t.Helper()
	e, err := New(storage.New(metadb.NewTest(t)), v)
	qt.Assert(t, err, qt.IsNil)
	return e
}

// snapshot captures every observable piece of ledger state.
type snapshot struct {
	Candidates []*types.Candidate
	Voted      map[common.Address]bool
	Nullifiers int
	Transfers  int
}

func takeSnapshot(c *qt.C, e *Engine, voters ...common.Address) snapshot {
	c.Helper()
	s := snapshot{Voted: map[common.Address]bool{}}
	var err error
	s.Candidates, err = e.ListCandidates()
	c.Assert(err, qt.IsNil)
	for _, v := range voters {
		s.Voted[v], err = e.HasVoted(v)
		c.Assert(err, qt.IsNil)
	}
	stats, err := e.Stats()
	c.Assert(err, qt.IsNil)
	s.Nullifiers = stats.SpentNullifiers
	transfers, err := e.Transfers()
	c.Assert(err, qt.IsNil)
	s.Transfers = len(transfers)
	return s
}

// setup registers two candidates and n voters.
func setup(c *qt.C, e *Engine, n int) []common.Address {
	c.Helper()
	ctx := context.Background()
	for _, name := range []string{"Alice", "Bob"} {
		_, err := e.RegisterCandidate(ctx, name, "Independent")
		c.Assert(err, qt.IsNil)
	}
	var voters []common.Address
	for i := range n {
		voter := testutil.DeterministicAddress(uint64(i + 1))
		c.Assert(e.RegisterVoter(ctx, voter), qt.IsNil)
		voters = append(voters, voter)
	}
	return voters
}

func nullifier(i int) types.Nullifier {
	return common.BytesToHash(crypto.Keccak256([]byte{byte(i >> 8), byte(i)}))
}

func TestNew(t *testing.T) {
	c := qt.New(t)
	_, err := New(nil, testVerifier)
	c.Assert(err, qt.IsNotNil)
	_, err = New(storage.New(metadb.NewTest(t)), nil)
	c.Assert(err, qt.IsNotNil)
}

func TestRegisterCandidate(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(t, testVerifier)
	ctx := context.Background()

	for i, name := range []string{"Alice", "Bob", "Carol"} {
		cand, err := e.RegisterCandidate(ctx, name, "Party")
		c.Assert(err, qt.IsNil)
		c.Assert(cand.ID, qt.Equals, types.CandidateID(i+1))
		c.Assert(cand.Votes, qt.Equals, uint64(0))
	}

	_, err := e.RegisterCandidate(ctx, "  ", "Party")
	c.Assert(err, qt.ErrorIs, ErrInvalidRequest)
	c.Assert(GateOf(err), qt.Equals, GateRegistry)

	list, err := e.ListCandidates()
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 3)
	c.Assert(list[2].Name, qt.Equals, "Carol")
}

func TestRegisterVoter(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(t, testVerifier)
	ctx := context.Background()
	voter := common.HexToAddress("0xa11ce")

	c.Assert(e.RegisterVoter(ctx, voter), qt.IsNil)
	err := e.RegisterVoter(ctx, voter)
	c.Assert(err, qt.ErrorIs, ErrDuplicateVoter)
	c.Assert(GateOf(err), qt.Equals, GateRegistry)

	c.Assert(e.RegisterVoter(ctx, common.Address{}), qt.ErrorIs, ErrInvalidRequest)

	_, err = e.HasVoted(common.HexToAddress("0xb0b"))
	c.Assert(err, qt.ErrorIs, ErrVoterNotFound)

	voters, err := e.ListVoters()
	c.Assert(err, qt.IsNil)
	c.Assert(voters, qt.HasLen, 1)
	c.Assert(voters[0].Address, qt.Equals, voter)
	c.Assert(voters[0].HasVoted, qt.IsFalse)
}

func TestCastVote(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(t, testVerifier)
	ctx := context.Background()
	voters := setup(c, e, 3)

	before, err := e.TotalVotes()
	c.Assert(err, qt.IsNil)

	c.Assert(e.CastVote(ctx, newVote(voters[0], 1, nullifier(1))), qt.IsNil)

	total, err := e.TotalVotes()
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, before+1)

	cand, err := e.Candidate(1)
	c.Assert(err, qt.IsNil)
	c.Assert(cand.Votes, qt.Equals, uint64(1))

	voted, err := e.HasVoted(voters[0])
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsTrue)

	spent, err := e.IsNullifierSpent(nullifier(1))
	c.Assert(err, qt.IsNil)
	c.Assert(spent, qt.IsTrue)

	stats, err := e.Stats()
	c.Assert(err, qt.IsNil)
	c.Assert(stats, qt.DeepEquals, &Stats{Candidates: 2, TotalVotes: 1, SpentNullifiers: 1})
}

func TestCastVoteRejections(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(t, testVerifier)
	ctx := context.Background()
	voters := setup(c, e, 3)
	c.Assert(e.CastVote(ctx, newVote(voters[0], 1, nullifier(1))), qt.IsNil)

	invalid := newVote(voters[1], 1, nullifier(2))
	invalid.Proof = []byte("not a proof")

	tests := []struct {
		name      string
		vote      *types.Vote
		err       error
		gate      Gate
		permanent bool
	}{
		{
			name:      "already voted",
			vote:      newVote(voters[0], 2, nullifier(2)),
			err:       ErrAlreadyVoted,
			gate:      GateEligibility,
			permanent: true,
		},
		{
			name: "unknown voter",
			vote: newVote(common.HexToAddress("0xdead"), 1, nullifier(3)),
			err:  ErrVoterNotFound,
			gate: GateEligibility,
		},
		{
			name:      "duplicate nullifier",
			vote:      newVote(voters[1], 1, nullifier(1)),
			err:       ErrDuplicateNullifier,
			gate:      GateNullifier,
			permanent: true,
		},
		{
			name: "invalid proof",
			vote: invalid,
			err:  ErrInvalidProof,
			gate: GateProof,
		},
		{
			name: "proof for another nullifier",
			vote: &types.Vote{
				Voter:       voters[1],
				CandidateID: 1,
				Proof:       validProof(testRoot, nullifier(9)),
				Root:        testRoot,
				Nullifier:   nullifier(4),
			},
			err:  ErrInvalidProof,
			gate: GateProof,
		},
		{
			name: "unknown candidate",
			vote: newVote(voters[1], 7, nullifier(5)),
			err:  ErrCandidateNotFound,
			gate: GateCandidate,
		},
		{
			name: "nil vote",
			vote: nil,
			err:  ErrInvalidRequest,
			gate: GateEligibility,
		},
	}
	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			before := takeSnapshot(c, e, voters...)
			err := e.CastVote(ctx, tt.vote)
			c.Assert(err, qt.ErrorIs, tt.err)
			c.Assert(GateOf(err), qt.Equals, tt.gate)
			c.Assert(IsPermanent(err), qt.Equals, tt.permanent)
			c.Assert(takeSnapshot(c, e, voters...), qt.DeepEquals, before)
		})
	}
}

func TestCastVoteVerifierFailure(t *testing.T) {
	c := qt.New(t)
	verifyErr := errors.New("verifier unavailable")
	e := newTestEngine(t, verifier.Func(func(ctx context.Context, _ []byte, _ types.CensusRoot, _ types.Nullifier) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		return false, verifyErr
	}))
	voters := setup(c, e, 1)
	before := takeSnapshot(c, e, voters...)

	err := e.CastVote(context.Background(), newVote(voters[0], 1, nullifier(1)))
	c.Assert(err, qt.ErrorIs, ErrInvalidProof)
	c.Assert(err, qt.ErrorIs, verifyErr)
	c.Assert(GateOf(err), qt.Equals, GateProof)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = e.CastVote(ctx, newVote(voters[0], 1, nullifier(1)))
	c.Assert(err, qt.ErrorIs, context.Canceled)
	c.Assert(GateOf(err), qt.Equals, Gate(""))

	c.Assert(takeSnapshot(c, e, voters...), qt.DeepEquals, before)
}

func TestCastVoteSkipsVerificationWhenIneligible(t *testing.T) {
	c := qt.New(t)
	var calls atomic.Int32
	e := newTestEngine(t, verifier.Func(func(ctx context.Context, proof []byte, root types.CensusRoot, n types.Nullifier) (bool, error) {
		calls.Add(1)
		return testVerifier(ctx, proof, root, n)
	}))
	voters := setup(c, e, 2)
	ctx := context.Background()

	c.Assert(e.CastVote(ctx, newVote(voters[0], 1, nullifier(1))), qt.IsNil)
	c.Assert(e.CastVote(ctx, newVote(voters[0], 1, nullifier(2))), qt.ErrorIs, ErrAlreadyVoted)
	c.Assert(e.CastVote(ctx, newVote(voters[1], 1, nullifier(1))), qt.ErrorIs, ErrDuplicateNullifier)
	c.Assert(calls.Load(), qt.Equals, int32(1))
}

// toggleCommitDB makes commits fail while fail is set.
type toggleCommitDB struct {
	db.Database
	fail atomic.Bool
}

type toggleCommitTx struct {
	db.WriteTx
	fail bool
}

func (d *toggleCommitDB) WriteTx() db.WriteTx {
	return &toggleCommitTx{WriteTx: d.Database.WriteTx(), fail: d.fail.Load()}
}

func (tx *toggleCommitTx) Commit() error {
	if tx.fail {
		tx.WriteTx.Discard()
		return errors.New("disk full")
	}
	return tx.WriteTx.Commit()
}

func TestCastVoteCommitFailure(t *testing.T) {
	c := qt.New(t)
	mem, err := inmemory.New(db.Options{})
	c.Assert(err, qt.IsNil)
	database := &toggleCommitDB{Database: mem}
	e, err := New(storage.New(database), testVerifier)
	c.Assert(err, qt.IsNil)
	voters := setup(c, e, 1)
	ctx := context.Background()

	before := takeSnapshot(c, e, voters...)
	database.fail.Store(true)
	err = e.CastVote(ctx, newVote(voters[0], 1, nullifier(1)))
	c.Assert(err, qt.ErrorIs, ErrCommitFailure)
	c.Assert(err, qt.ErrorIs, storage.ErrCommit)
	c.Assert(GateOf(err), qt.Equals, GateCommit)
	c.Assert(IsPermanent(err), qt.IsFalse)
	c.Assert(takeSnapshot(c, e, voters...), qt.DeepEquals, before)

	_, err = e.TransferVotes(ctx, 1, 2, 0)
	c.Assert(err, qt.ErrorIs, ErrCommitFailure)

	// the same request succeeds once the database recovers
	database.fail.Store(false)
	c.Assert(e.CastVote(ctx, newVote(voters[0], 1, nullifier(1))), qt.IsNil)
}

func TestTransferVotes(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(t, testVerifier)
	ctx := context.Background()
	voters := setup(c, e, 3)
	for i, v := range voters {
		c.Assert(e.CastVote(ctx, newVote(v, 1, nullifier(i))), qt.IsNil)
	}

	before := takeSnapshot(c, e, voters...)
	_, err := e.TransferVotes(ctx, 1, 2, 4)
	c.Assert(err, qt.ErrorIs, ErrInsufficientVotes)
	c.Assert(GateOf(err), qt.Equals, GateRegistry)
	_, err = e.TransferVotes(ctx, 1, 9, 1)
	c.Assert(err, qt.ErrorIs, ErrCandidateNotFound)
	c.Assert(GateOf(err), qt.Equals, GateCandidate)
	c.Assert(takeSnapshot(c, e, voters...), qt.DeepEquals, before)

	tr, err := e.TransferVotes(ctx, 1, 2, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(tr.ID, qt.Not(qt.Equals), "")
	c.Assert(tr.From, qt.Equals, types.CandidateID(1))
	c.Assert(tr.To, qt.Equals, types.CandidateID(2))
	c.Assert(tr.Count, qt.Equals, uint64(3))

	alice, err := e.Candidate(1)
	c.Assert(err, qt.IsNil)
	bob, err := e.Candidate(2)
	c.Assert(err, qt.IsNil)
	c.Assert(alice.Votes, qt.Equals, uint64(0))
	c.Assert(bob.Votes, qt.Equals, uint64(3))

	// transfers are zero-sum and never touch voters or nullifiers
	after := takeSnapshot(c, e, voters...)
	c.Assert(after.Voted, qt.DeepEquals, before.Voted)
	c.Assert(after.Nullifiers, qt.Equals, before.Nullifiers)
	total, err := e.TotalVotes()
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, uint64(3))

	// a zero transfer is recorded but moves nothing
	_, err = e.TransferVotes(ctx, 2, 1, 0)
	c.Assert(err, qt.IsNil)

	transfers, err := e.Transfers()
	c.Assert(err, qt.IsNil)
	c.Assert(transfers, qt.HasLen, 2)
	c.Assert(transfers[0].ID, qt.Equals, tr.ID)
	c.Assert(transfers[1].Count, qt.Equals, uint64(0))
}

func TestConcurrentCastSameVoter(t *testing.T) {
	c := qt.New(t)
	// both requests pass the pre-checks before either commits
	var arrived sync.WaitGroup
	arrived.Add(2)
	e := newTestEngine(t, verifier.Func(func(ctx context.Context, proof []byte, root types.CensusRoot, n types.Nullifier) (bool, error) {
		arrived.Done()
		arrived.Wait()
		return testVerifier(ctx, proof, root, n)
	}))
	voters := setup(c, e, 1)

	errs := castConcurrently(e,
		newVote(voters[0], 1, nullifier(1)),
		newVote(voters[0], 2, nullifier(2)))

	committed, alreadyVoted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, ErrAlreadyVoted):
			alreadyVoted++
		default:
			c.Fatalf("unexpected error: %v", err)
		}
	}
	c.Assert(committed, qt.Equals, 1)
	c.Assert(alreadyVoted, qt.Equals, 1)

	total, err := e.TotalVotes()
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, uint64(1))
	stats, err := e.Stats()
	c.Assert(err, qt.IsNil)
	c.Assert(stats.SpentNullifiers, qt.Equals, 1)
}

func TestConcurrentCastSameNullifier(t *testing.T) {
	c := qt.New(t)
	var arrived sync.WaitGroup
	arrived.Add(2)
	e := newTestEngine(t, verifier.Func(func(ctx context.Context, proof []byte, root types.CensusRoot, n types.Nullifier) (bool, error) {
		arrived.Done()
		arrived.Wait()
		return testVerifier(ctx, proof, root, n)
	}))
	voters := setup(c, e, 2)

	errs := castConcurrently(e,
		newVote(voters[0], 1, nullifier(1)),
		newVote(voters[1], 1, nullifier(1)))

	committed, duplicated := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, ErrDuplicateNullifier):
			duplicated++
		default:
			c.Fatalf("unexpected error: %v", err)
		}
	}
	c.Assert(committed, qt.Equals, 1)
	c.Assert(duplicated, qt.Equals, 1)
}

func TestConcurrentCastManyVoters(t *testing.T) {
	c := qt.New(t)
	e := newTestEngine(t, verifier.NewPool(testVerifier, 4))
	voters := setup(c, e, 50)

	votes := make([]*types.Vote, len(voters))
	for i, v := range voters {
		votes[i] = newVote(v, types.CandidateID(i%2+1), nullifier(i))
	}
	for _, err := range castConcurrently(e, votes...) {
		c.Assert(err, qt.IsNil)
	}

	list, err := e.ListCandidates()
	c.Assert(err, qt.IsNil)
	c.Assert(list[0].Votes, qt.Equals, uint64(25))
	c.Assert(list[1].Votes, qt.Equals, uint64(25))
	stats, err := e.Stats()
	c.Assert(err, qt.IsNil)
	c.Assert(stats.SpentNullifiers, qt.Equals, 50)
}

func castConcurrently(e *Engine, votes ...*types.Vote) []error {
	errs := make([]error, len(votes))
	var wg sync.WaitGroup
	for i, v := range votes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = e.CastVote(context.Background(), v)
		}()
	}
	wg.Wait()
	return errs
}

func TestConcurrentTransferAndCast(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	e := newTestEngine(t, verifier.NewPool(testVerifier, 4))
	voters := setup(c, e, 40)
	alice, bob := types.CandidateID(1), types.CandidateID(2)

	for i := range 10 {
		c.Assert(e.CastVote(ctx, newVote(voters[i], alice, nullifier(i))), qt.IsNil)
	}

	// casts only add to alice and this is the only transfer source, so a
	// balance read before a transfer is always still available
	done := make(chan struct{})
	var (
		transferred uint64
		transfers   int
		transferErr error
	)
	go func() {
		defer close(done)
		for {
			a, err := e.Candidate(alice)
			if err != nil {
				transferErr = err
				return
			}
			if _, err := e.TransferVotes(ctx, alice, bob, a.Votes+1000); !errors.Is(err, ErrInsufficientVotes) {
				transferErr = fmt.Errorf("oversized transfer of %d: %v", a.Votes+1000, err)
				return
			}
			if _, err := e.TransferVotes(ctx, alice, bob, a.Votes); err != nil {
				transferErr = fmt.Errorf("transfer of %d: %w", a.Votes, err)
				return
			}
			transferred += a.Votes
			transfers++
			if transfers >= 20 {
				return
			}
		}
	}()

	votes := make([]*types.Vote, 0, 30)
	for i := 10; i < 40; i++ {
		votes = append(votes, newVote(voters[i], alice, nullifier(i)))
	}
	for _, err := range castConcurrently(e, votes...) {
		c.Assert(err, qt.IsNil)
	}
	<-done
	c.Assert(transferErr, qt.IsNil)

	a, err := e.Candidate(alice)
	c.Assert(err, qt.IsNil)
	b, err := e.Candidate(bob)
	c.Assert(err, qt.IsNil)
	c.Assert(a.Votes <= 40, qt.IsTrue, qt.Commentf("alice has %d votes", a.Votes))
	c.Assert(b.Votes, qt.Equals, transferred)
	c.Assert(a.Votes+b.Votes, qt.Equals, uint64(40))
	total, err := e.TotalVotes()
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, uint64(40))

	list, err := e.Transfers()
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, transfers)
}
