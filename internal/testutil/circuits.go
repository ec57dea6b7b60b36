// Package testutil provides shared fixtures for tests: deterministic
// addresses, census trees with known members and a lazily generated set of
// membership circuit keys.
package testutil

import (
	"encoding/binary"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/zkvote-node/census"
	"github.com/vocdoni/zkvote-node/types"
	"github.com/vocdoni/zkvote-node/verifier"
)

// ElectionName is the election every fixture votes in.
const ElectionName = "zkvote-test-election"

var (
	keysOnce sync.Once
	keys     *verifier.Keys
	keysErr  error
)

// Keys returns membership circuit keys shared by every test of the process.
// The setup runs once, on first use.
func Keys(tb testing.TB) *verifier.Keys {
	tb.Helper()
	keysOnce.Do(func() {
		keys, keysErr = verifier.Setup()
	})
	if keysErr != nil {
		tb.Fatalf("membership circuit setup: %v", keysErr)
	}
	return keys
}

// Scope returns the scope of ElectionName.
func Scope() *big.Int {
	return census.Scope(ElectionName)
}

// DeterministicAddress returns an address derived from n.
func DeterministicAddress(n uint64) common.Address {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)

	prefix := []byte("deterministic-address:")
	h := crypto.Keccak256(append(prefix, b[:]...))
	return common.BytesToAddress(h[12:])
}

// Member is a census member whose secret is known to the test.
type Member struct {
	Address common.Address
	Secret  *big.Int
	Index   uint64
}

// Nullifier returns the member's nullifier for ElectionName.
func (m *Member) Nullifier() types.Nullifier {
	return census.Nullifier(m.Secret, Scope())
}

// Census is a census tree together with the secrets of its members.
type Census struct {
	Tree    *census.Tree
	Members []*Member
}

// NewCensus builds a census of n members with random secrets and
// deterministic addresses.
func NewCensus(tb testing.TB, n int) *Census {
	tb.Helper()
	c := &Census{Tree: census.NewTree()}
	for i := range n {
		secret := census.NewSecret()
		idx, err := c.Tree.Add(census.Commitment(secret))
		if err != nil {
			tb.Fatal(err)
		}
		c.Members = append(c.Members, &Member{
			Address: DeterministicAddress(uint64(i + 1)),
			Secret:  secret,
			Index:   idx,
		})
	}
	return c
}

// Root returns the census root.
func (c *Census) Root() types.CensusRoot {
	return c.Tree.Root()
}

// Vote builds a vote of member m for candidate, with a real membership proof
// generated with the shared keys.
func (c *Census) Vote(tb testing.TB, m *Member, candidate types.CandidateID) *types.Vote {
	tb.Helper()
	proof, err := c.Tree.Proof(m.Index)
	if err != nil {
		tb.Fatal(err)
	}
	zkProof, err := Keys(tb).Prove(m.Secret, Scope(), proof)
	if err != nil {
		tb.Fatal(err)
	}
	return &types.Vote{
		Voter:       m.Address,
		CandidateID: candidate,
		Proof:       zkProof,
		Root:        c.Root(),
		Nullifier:   m.Nullifier(),
	}
}
