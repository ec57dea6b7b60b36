package verifier

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/vocdoni/zkvote-node/log"
)

// File names of the circuit artifacts inside a keys directory.
const (
	ConstraintSystemFile = "membership.ccs"
	ProvingKeyFile       = "membership.pk"
	VerifyingKeyFile     = "membership.vk"
)

// Keys bundles the compiled membership circuit and its groth16 keys. The
// constraint system and proving key are only required to generate proofs.
type Keys struct {
	CCS constraint.ConstraintSystem
	PK  groth16.ProvingKey
	VK  groth16.VerifyingKey
}

// Compile compiles the membership circuit over BN254.
func Compile() (constraint.ConstraintSystem, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &MembershipCircuit{})
	if err != nil {
		return nil, fmt.Errorf("failed to compile membership circuit: %w", err)
	}
	return ccs, nil
}

// Setup compiles the circuit and runs a fresh groth16 setup. The resulting
// keys are only suitable for development and tests, since the setup toxic
// waste is not discarded through a ceremony.
func Setup() (*Keys, error) {
	ccs, err := Compile()
	if err != nil {
		return nil, err
	}
	log.Debugw("membership circuit compiled", "constraints", ccs.GetNbConstraints())
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("failed to setup keys: %w", err)
	}
	return &Keys{CCS: ccs, PK: pk, VK: vk}, nil
}

// Write stores the keys in dir, creating it if needed.
func (k *Keys) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	artifacts := map[string]io.WriterTo{
		ConstraintSystemFile: k.CCS,
		ProvingKeyFile:       k.PK,
		VerifyingKeyFile:     k.VK,
	}
	for name, artifact := range artifacts {
		if err := writeArtifact(filepath.Join(dir, name), artifact); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

// LoadKeys reads the full set of keys from dir.
func LoadKeys(dir string) (*Keys, error) {
	k := &Keys{
		CCS: groth16.NewCS(ecc.BN254),
		PK:  groth16.NewProvingKey(ecc.BN254),
		VK:  groth16.NewVerifyingKey(ecc.BN254),
	}
	artifacts := map[string]io.ReaderFrom{
		ConstraintSystemFile: k.CCS,
		ProvingKeyFile:       k.PK,
		VerifyingKeyFile:     k.VK,
	}
	for name, artifact := range artifacts {
		if err := readArtifact(filepath.Join(dir, name), artifact); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
	}
	return k, nil
}

// LoadVerifyingKey reads only the verifying key from dir, which is all a node
// needs to check votes.
func LoadVerifyingKey(dir string) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readArtifact(filepath.Join(dir, VerifyingKeyFile), vk); err != nil {
		return nil, fmt.Errorf("failed to read verifying key: %w", err)
	}
	return vk, nil
}

func writeArtifact(path string, artifact io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if _, err := artifact.WriteTo(w); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func readArtifact(path string, artifact io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = artifact.ReadFrom(bufio.NewReader(f))
	return err
}
