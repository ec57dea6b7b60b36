package verifier

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/vocdoni/zkvote-node/census"
)

// MembershipCircuit proves knowledge of a secret whose commitment is a leaf
// of the census tree with the public Root, and whose nullifier for the public
// Scope is the public Nullifier.
type MembershipCircuit struct {
	Root      frontend.Variable `gnark:",public"`
	Nullifier frontend.Variable `gnark:",public"`
	Scope     frontend.Variable `gnark:",public"`

	Secret   frontend.Variable
	Siblings [census.Depth]frontend.Variable
	PathBits [census.Depth]frontend.Variable
}

// Define declares the circuit constraints.
func (c *MembershipCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	h.Write(c.Secret)
	node := h.Sum()
	h.Reset()
	for i := range census.Depth {
		api.AssertIsBoolean(c.PathBits[i])
		left := api.Select(c.PathBits[i], c.Siblings[i], node)
		right := api.Select(c.PathBits[i], node, c.Siblings[i])
		h.Write(left, right)
		node = h.Sum()
		h.Reset()
	}
	api.AssertIsEqual(node, c.Root)

	h.Write(c.Secret, c.Scope)
	api.AssertIsEqual(h.Sum(), c.Nullifier)
	return nil
}

// Assignment builds the full witness assignment for the voter holding secret,
// whose census inclusion proof is proof, voting in the election scope.
func Assignment(secret, scope *big.Int, proof *census.Proof) (*MembershipCircuit, error) {
	if proof == nil {
		return nil, fmt.Errorf("missing census proof")
	}
	root, err := proof.Root()
	if err != nil {
		return nil, fmt.Errorf("invalid census proof: %w", err)
	}
	a := &MembershipCircuit{
		Root:      root.Big(),
		Nullifier: census.Nullifier(secret, scope).Big(),
		Scope:     scope,
		Secret:    secret,
	}
	bits := proof.PathBits()
	for i := range census.Depth {
		a.Siblings[i] = proof.Siblings[i].Big()
		a.PathBits[i] = bits[i]
	}
	return a, nil
}
