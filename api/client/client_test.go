package client

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zkvote-node/api"
	"github.com/vocdoni/zkvote-node/db/metadb"
	"github.com/vocdoni/zkvote-node/storage"
	"github.com/vocdoni/zkvote-node/types"
	"github.com/vocdoni/zkvote-node/verifier"
	"github.com/vocdoni/zkvote-node/voting"
)

const adminToken = "client-test-token"

func validProof(root types.CensusRoot, nullifier types.Nullifier) []byte {
	return crypto.Keccak256(root.Bytes(), nullifier.Bytes())
}

func newTestNode(c *qt.C) string {
	return newTestNodeWith(c, func(h http.Handler) http.Handler { return h })
}

// newTestNodeWith serves the node API wrapped by wrap.
func newTestNodeWith(c *qt.C, wrap func(http.Handler) http.Handler) string {
	v := verifier.Func(func(_ context.Context, proof []byte, root types.CensusRoot, n types.Nullifier) (bool, error) {
		return bytes.Equal(proof, validProof(root, n)), nil
	})
	engine, err := voting.New(storage.New(metadb.NewTest(c)), v)
	c.Assert(err, qt.IsNil)
	a, err := api.New(&api.APIConfig{Engine: engine, AdminToken: adminToken})
	c.Assert(err, qt.IsNil)
	srv := httptest.NewServer(wrap(a.Router()))
	c.Cleanup(srv.Close)
	return srv.URL
}

func TestClient(t *testing.T) {
	c := qt.New(t)
	cli, err := New(newTestNode(c))
	c.Assert(err, qt.IsNil)

	voter := common.HexToAddress("0xa11ce")
	root := common.HexToHash("0x1234")
	nullifier := common.HexToHash("0x5678")

	// admin calls without token are refused
	_, err = cli.RegisterCandidate("Alice", "Blue")
	c.Assert(IsAPIError(err, api.ErrUnauthorized), qt.IsTrue)

	cli.SetAdminToken(adminToken)
	alice, err := cli.RegisterCandidate("Alice", "Blue")
	c.Assert(err, qt.IsNil)
	c.Assert(alice.ID, qt.Equals, types.CandidateID(1))
	bob, err := cli.RegisterCandidate("Bob", "Green")
	c.Assert(err, qt.IsNil)
	_, err = cli.RegisterVoter(voter)
	c.Assert(err, qt.IsNil)

	valid, err := cli.VerifyProof(validProof(root, nullifier), root, nullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(valid, qt.IsTrue)

	vote := &types.Vote{
		Voter:       voter,
		CandidateID: alice.ID,
		Proof:       validProof(root, nullifier),
		Root:        root,
		Nullifier:   nullifier,
	}
	_, err = cli.CastVote(vote)
	c.Assert(err, qt.IsNil)
	_, err = cli.CastVote(vote)
	c.Assert(IsAPIError(err, api.ErrAlreadyVoted), qt.IsTrue)

	v, err := cli.Voter(voter)
	c.Assert(err, qt.IsNil)
	c.Assert(v.HasVoted, qt.IsTrue)

	voters, err := cli.Voters()
	c.Assert(err, qt.IsNil)
	c.Assert(voters, qt.DeepEquals, []*types.Voter{{Address: voter, HasVoted: true}})

	spent, err := cli.NullifierSpent(nullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(spent, qt.IsTrue)
	spent, err = cli.NullifierSpent(common.HexToHash("0x9999"))
	c.Assert(err, qt.IsNil)
	c.Assert(spent, qt.IsFalse)

	_, err = cli.TransferVotes(alice.ID, bob.ID, 1)
	c.Assert(err, qt.IsNil)
	transfers, err := cli.Transfers()
	c.Assert(err, qt.IsNil)
	c.Assert(transfers, qt.HasLen, 1)

	got, err := cli.Candidate(bob.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Votes, qt.Equals, uint64(1))

	list, err := cli.Candidates()
	c.Assert(err, qt.IsNil)
	c.Assert(list.TotalVotes, qt.Equals, uint64(1))

	_, err = cli.Candidate(9)
	c.Assert(IsAPIError(err, api.ErrCandidateNotFound), qt.IsTrue)

	info, err := cli.Info()
	c.Assert(err, qt.IsNil)
	c.Assert(info.Candidates, qt.Equals, 2)
}

func TestNewUnreachable(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	_, err := New(url)
	c.Assert(err, qt.IsNotNil)
}

func TestPostNotRetriedAfterTimeout(t *testing.T) {
	c := qt.New(t)
	var (
		posts   atomic.Int32
		applied = make(chan struct{}, 4)
	)
	// the first transfer is applied but its response arrives after the
	// client gave up
	host := newTestNodeWith(c, func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != api.TransfersEndpoint {
				h.ServeHTTP(w, r)
				return
			}
			slow := posts.Add(1) == 1
			h.ServeHTTP(w, r)
			applied <- struct{}{}
			if slow {
				time.Sleep(300 * time.Millisecond)
			}
		})
	})
	cli, err := New(host)
	c.Assert(err, qt.IsNil)
	cli.SetAdminToken(adminToken)
	alice, err := cli.RegisterCandidate("Alice", "")
	c.Assert(err, qt.IsNil)
	bob, err := cli.RegisterCandidate("Bob", "")
	c.Assert(err, qt.IsNil)

	cli.SetTimeout(100 * time.Millisecond)
	_, err = cli.TransferVotes(alice.ID, bob.ID, 0)
	c.Assert(err, qt.IsNotNil)
	<-applied

	cli.SetTimeout(DefaultTimeout)
	transfers, err := cli.Transfers()
	c.Assert(err, qt.IsNil)
	c.Assert(transfers, qt.HasLen, 1)
	c.Assert(posts.Load(), qt.Equals, int32(1))
}

func TestRetryable(t *testing.T) {
	c := qt.New(t)
	dialErr := &url.Error{Op: "Post", URL: "http://x", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}
	readErr := &url.Error{Op: "Post", URL: "http://x", Err: &net.OpError{Op: "read", Err: errors.New("connection reset")}}
	timeoutErr := &url.Error{Op: "Post", URL: "http://x", Err: context.DeadlineExceeded}

	c.Assert(retryable(HTTPGET, timeoutErr), qt.IsTrue)
	c.Assert(retryable(HTTPGET, readErr), qt.IsTrue)
	c.Assert(retryable(HTTPPOST, dialErr), qt.IsTrue)
	c.Assert(retryable(HTTPPOST, readErr), qt.IsFalse)
	c.Assert(retryable(HTTPPOST, timeoutErr), qt.IsFalse)
}
