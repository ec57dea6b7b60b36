package verifier_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zkvote-node/census"
	"github.com/vocdoni/zkvote-node/internal/testutil"
	"github.com/vocdoni/zkvote-node/verifier"
)

func TestGroth16(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping groth16 setup in short mode")
	}
	c := qt.New(t)
	ctx := context.Background()

	cs := testutil.NewCensus(t, 4)
	member := cs.Members[1]
	vote := cs.Vote(t, member, 1)
	v := verifier.NewGroth16(testutil.Keys(t).VK, testutil.Scope())

	c.Run("valid proof", func(c *qt.C) {
		ok, err := v.Verify(ctx, vote.Proof, vote.Root, vote.Nullifier)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsTrue)
	})

	c.Run("other nullifier", func(c *qt.C) {
		ok, err := v.Verify(ctx, vote.Proof, vote.Root, cs.Members[0].Nullifier())
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsFalse)
	})

	c.Run("other root", func(c *qt.C) {
		ok, err := v.Verify(ctx, vote.Proof, common.BigToHash(big.NewInt(42)), vote.Nullifier)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsFalse)
	})

	c.Run("other scope", func(c *qt.C) {
		other := verifier.NewGroth16(testutil.Keys(t).VK, census.Scope("another election"))
		ok, err := other.Verify(ctx, vote.Proof, vote.Root, vote.Nullifier)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsFalse)
	})

	c.Run("root out of field", func(c *qt.C) {
		ok, err := v.Verify(ctx, vote.Proof, common.BigToHash(fr.Modulus()), vote.Nullifier)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsFalse)
	})

	c.Run("malformed proof", func(c *qt.C) {
		for _, proof := range [][]byte{nil, {0x01, 0x02}, vote.Proof[:len(vote.Proof)/2]} {
			ok, err := v.Verify(ctx, proof, vote.Root, vote.Nullifier)
			c.Assert(err, qt.IsNil)
			c.Assert(ok, qt.IsFalse)
		}
	})

	c.Run("cancelled context", func(c *qt.C) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := v.Verify(cctx, vote.Proof, vote.Root, vote.Nullifier)
		c.Assert(err, qt.ErrorIs, context.Canceled)
	})
}

func TestKeysRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping groth16 setup in short mode")
	}
	c := qt.New(t)
	dir := t.TempDir()
	keys := testutil.Keys(t)
	c.Assert(keys.Write(dir), qt.IsNil)

	loaded, err := verifier.LoadKeys(dir)
	c.Assert(err, qt.IsNil)
	vk, err := verifier.LoadVerifyingKey(dir)
	c.Assert(err, qt.IsNil)

	// a proof made with the loaded proving key verifies with the loaded vk
	cs := testutil.NewCensus(t, 2)
	proof, err := cs.Tree.Proof(0)
	c.Assert(err, qt.IsNil)
	zkProof, err := loaded.Prove(cs.Members[0].Secret, testutil.Scope(), proof)
	c.Assert(err, qt.IsNil)

	ok, err := verifier.NewGroth16(vk, testutil.Scope()).Verify(context.Background(), zkProof, cs.Root(), cs.Members[0].Nullifier())
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	_, err = verifier.LoadVerifyingKey(t.TempDir())
	c.Assert(err, qt.ErrorMatches, "failed to read verifying key.*")
}
