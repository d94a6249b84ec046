// Copyright 2025 Alpen Labs
//
// Groth16/BN254 verification for completed gnark-backend proving
// tasks, grounded on the teacher's BLSZKProver.VerifyProofLocally.
package prover

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
)

// GnarkProof is the serialized Groth16 proof and public inputs a
// gnark-backend worker submits alongside an EventCompleted transition.
type GnarkProof struct {
	Proof      groth16.Proof
	Context    *big.Int
	Commitment *big.Int
}

// GnarkVerifier verifies submitted proofs against a fixed verifying
// key, set up once out-of-band by the kernel operator (key generation
// itself is out of scope, per spec.md §1's non-goals).
type GnarkVerifier struct {
	vk groth16.VerifyingKey
}

// NewGnarkVerifier wraps an already-loaded verifying key.
func NewGnarkVerifier(vk groth16.VerifyingKey) *GnarkVerifier {
	return &GnarkVerifier{vk: vk}
}

// Verify checks that proof attests to its claimed context/commitment
// binding under the configured circuit.
func (v *GnarkVerifier) Verify(proof GnarkProof) (bool, error) {
	assignment := &ProofContextCircuit{
		Context:    proof.Context,
		Commitment: proof.Commitment,
	}

	publicWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("prover: build public witness: %w", err)
	}

	if err := groth16.Verify(proof.Proof, v.vk, publicWitness); err != nil {
		return false, nil
	}
	return true, nil
}

// VerifyAndComplete verifies proof for key under verifier, then
// applies the resulting EventCompleted or EventFailed transition.
func (t *TaskTracker) VerifyAndComplete(key ProofKey, proof GnarkProof, verifier *GnarkVerifier, maxRetry int) error {
	ok, err := verifier.Verify(proof)
	if err != nil {
		return fmt.Errorf("prover: verify proof for %s: %w", key, err)
	}
	if !ok {
		t.logger.Printf("⚠️ gnark proof for %s failed verification", key)
		return t.UpdateStatus(key, EventFailed, maxRetry)
	}
	return t.UpdateStatus(key, EventCompleted, maxRetry)
}
