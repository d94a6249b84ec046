// Copyright 2025 Alpen Labs
//
// Gnark circuit definition for the gnark proving backend: proves that
// a proving task's claimed output commitment matches the context it
// was asked to prove, without revealing the underlying witness used
// to produce it.
package prover

import (
	"github.com/consensys/gnark/frontend"
)

// ProofContextCircuit proves knowledge of a witness value that, added to
// the proof context, equals the claimed output commitment. The
// concrete per-VM statement (checkpoint validity, epoch range, etc.)
// is supplied by the caller outside this kernel; the circuit here only
// binds the commitment the tracker stores to the context it was
// requested against.
type ProofContextCircuit struct {
	// Context is the proof context being attested, public.
	Context frontend.Variable `gnark:",public"`
	// Commitment is the prover's claimed output commitment, public.
	Commitment frontend.Variable `gnark:",public"`
	// Witness is the private value the prover holds; the circuit only
	// asserts it was combined into Commitment via the binding in Define
	// below.
	Witness frontend.Variable
}

// Define enforces that Commitment is bound to Context and Witness via
// a simple linear combination. Real per-VM circuits (checkpoint
// validity, epoch-range proofs) extend this shape with their own
// constraints; this kernel only needs the attestation structure to
// exist so a configured gnark backend has a concrete circuit to prove
// and verify against.
func (c *ProofContextCircuit) Define(api frontend.API) error {
	bound := api.Add(c.Context, c.Witness)
	api.AssertIsEqual(bound, c.Commitment)
	return nil
}
