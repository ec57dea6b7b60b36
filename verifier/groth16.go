package verifier

import (
	"bytes"
	"context"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/vocdoni/zkvote-node/census"
	"github.com/vocdoni/zkvote-node/log"
	"github.com/vocdoni/zkvote-node/types"
)

// Groth16 verifies membership proofs against a groth16 verifying key for a
// fixed election scope.
type Groth16 struct {
	vk    groth16.VerifyingKey
	scope *big.Int
}

var _ Verifier = (*Groth16)(nil)

// NewGroth16 returns a verifier for proofs generated with the proving key
// matching vk, binding nullifiers to scope.
func NewGroth16(vk groth16.VerifyingKey, scope *big.Int) *Groth16 {
	return &Groth16{vk: vk, scope: new(big.Int).Set(scope)}
}

// Verify implements Verifier. Malformed proofs and public inputs outside of
// the scalar field are reported as invalid.
func (g *Groth16) Verify(ctx context.Context, proof []byte, root types.CensusRoot, nullifier types.Nullifier) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := census.HashToElement(root); err != nil {
		return false, nil
	}
	if _, err := census.HashToElement(nullifier); err != nil {
		return false, nil
	}

	p := groth16.NewProof(ecc.BN254)
	if _, err := p.ReadFrom(bytes.NewReader(proof)); err != nil {
		log.Debugw("cannot decode proof", "error", err.Error())
		return false, nil
	}
	publicWitness, err := frontend.NewWitness(&MembershipCircuit{
		Root:      root.Big(),
		Nullifier: nullifier.Big(),
		Scope:     g.scope,
	}, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, nil
	}
	if err := groth16.Verify(p, g.vk, publicWitness); err != nil {
		log.Debugw("proof rejected", "root", root.Hex(), "nullifier", nullifier.Hex(), "error", err.Error())
		return false, nil
	}
	return true, nil
}
