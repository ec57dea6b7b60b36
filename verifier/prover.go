package verifier

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/vocdoni/zkvote-node/census"
)

// Prove generates the serialized groth16 membership proof of the voter
// holding secret, included in the census through proof, for the election
// scope. It requires the constraint system and the proving key.
func (k *Keys) Prove(secret, scope *big.Int, proof *census.Proof) ([]byte, error) {
	if k.CCS == nil || k.PK == nil {
		return nil, fmt.Errorf("proving keys not loaded")
	}
	assignment, err := Assignment(secret, scope, proof)
	if err != nil {
		return nil, err
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("failed to create witness: %w", err)
	}
	p, err := groth16.Prove(k.CCS, k.PK, w)
	if err != nil {
		return nil, fmt.Errorf("failed to generate proof: %w", err)
	}
	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize proof: %w", err)
	}
	return buf.Bytes(), nil
}
