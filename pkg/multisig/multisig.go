// Copyright 2025 Alpen Labs
//
// Package multisig implements N-of-M authority configurations gating
// administrative actions: add/remove-member and threshold updates,
// and aggregated BLS12-381 vote verification over a role's current
// key set.
package multisig

import (
	"errors"
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// multisigDST is the domain-separation tag for the BLS hash-to-curve
// used by vote verification, scoping signatures to this protocol.
var multisigDST = []byte("ALPEN_ROLLUP_MULTISIG_V1")

// Sentinel errors for MultisigConfig construction and update validation.
var (
	ErrDuplicateKey          = errors.New("multisig: duplicate key")
	ErrDuplicateAddMember    = errors.New("multisig: duplicate add member")
	ErrDuplicateRemoveMember = errors.New("multisig: duplicate remove member")
	ErrMemberAlreadyExists   = errors.New("multisig: member already exists")
	ErrMemberNotFound        = errors.New("multisig: member not found")
	ErrZeroThreshold         = errors.New("multisig: threshold must be greater than zero")
	ErrInvalidThreshold      = errors.New("multisig: threshold exceeds available key count")
	ErrInsufficientSigners   = errors.New("multisig: vote has fewer signers than the threshold requires")
	ErrSignerIndexOutOfRange = errors.New("multisig: signer index out of range")
	ErrDuplicateSigner       = errors.New("multisig: duplicate signer index in vote")
)

// MultisigConfig is an N-of-M authority: a key set (pubkeys in G2) and
// a signer threshold.
type MultisigConfig struct {
	Keys      []bls12381.G2Affine
	Threshold uint8
}

// MultisigAuthority pairs a config with the role's replay-protection
// sequence number.
type MultisigAuthority struct {
	Config MultisigConfig
	Seqno  uint64
}

func keyEqual(a, b bls12381.G2Affine) bool {
	return a.Equal(&b)
}

func hasDuplicateKeys(keys []bls12381.G2Affine) bool {
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if keyEqual(keys[i], keys[j]) {
				return true
			}
		}
	}
	return false
}

func containsKey(keys []bls12381.G2Affine, k bls12381.G2Affine) bool {
	for _, existing := range keys {
		if keyEqual(existing, k) {
			return true
		}
	}
	return false
}

// NewMultisigConfig validates and constructs a MultisigConfig: keys
// has no duplicates, and 1 <= threshold <= len(keys).
func NewMultisigConfig(keys []bls12381.G2Affine, threshold uint8) (MultisigConfig, error) {
	if hasDuplicateKeys(keys) {
		return MultisigConfig{}, ErrDuplicateKey
	}
	if threshold == 0 {
		return MultisigConfig{}, ErrZeroThreshold
	}
	if int(threshold) > len(keys) {
		return MultisigConfig{}, fmt.Errorf("%w: threshold=%d total_keys=%d", ErrInvalidThreshold, threshold, len(keys))
	}
	cp := make([]bls12381.G2Affine, len(keys))
	copy(cp, keys)
	return MultisigConfig{Keys: cp, Threshold: threshold}, nil
}

// ConfigUpdate describes a proposed add/remove/threshold change.
type ConfigUpdate struct {
	AddMembers    []bls12381.G2Affine
	RemoveMembers []bls12381.G2Affine
	NewThreshold  uint8
}

// ValidateUpdate checks the six invariants from spec.md §4.8 without
// mutating the config.
func (c MultisigConfig) ValidateUpdate(u ConfigUpdate) error {
	if hasDuplicateKeys(u.AddMembers) {
		return ErrDuplicateAddMember
	}
	if hasDuplicateKeys(u.RemoveMembers) {
		return ErrDuplicateRemoveMember
	}
	for _, m := range u.AddMembers {
		if containsKey(c.Keys, m) {
			return ErrMemberAlreadyExists
		}
	}
	for _, m := range u.RemoveMembers {
		if !containsKey(c.Keys, m) {
			return ErrMemberNotFound
		}
	}
	if u.NewThreshold == 0 {
		return ErrZeroThreshold
	}
	total := len(c.Keys) + len(u.AddMembers) - len(u.RemoveMembers)
	if int(u.NewThreshold) > total {
		return fmt.Errorf("%w: threshold=%d total_keys=%d", ErrInvalidThreshold, u.NewThreshold, total)
	}
	return nil
}

// ApplyUpdate validates then mutates in order: remove, add, set threshold.
func (c *MultisigConfig) ApplyUpdate(u ConfigUpdate) error {
	if err := c.ValidateUpdate(u); err != nil {
		return err
	}

	kept := make([]bls12381.G2Affine, 0, len(c.Keys))
	for _, k := range c.Keys {
		if !containsKey(u.RemoveMembers, k) {
			kept = append(kept, k)
		}
	}
	kept = append(kept, u.AddMembers...)

	c.Keys = kept
	c.Threshold = u.NewThreshold
	return nil
}

// Vote is an aggregated BLS12-381 signature over a set of signer indices.
type Vote struct {
	SignerIndices []int
	Signature     bls12381.G1Affine
}

// ValidateVote checks that the vote meets threshold, references valid
// distinct signers, and carries a valid aggregated signature over msg
// under the config's current key set.
func (c MultisigConfig) ValidateVote(msg []byte, vote Vote) (bool, error) {
	if len(vote.SignerIndices) < int(c.Threshold) {
		return false, fmt.Errorf("%w: got %d, need %d", ErrInsufficientSigners, len(vote.SignerIndices), c.Threshold)
	}

	seen := make(map[int]struct{}, len(vote.SignerIndices))
	var aggPub bls12381.G2Jac
	for i, idx := range vote.SignerIndices {
		if idx < 0 || idx >= len(c.Keys) {
			return false, fmt.Errorf("%w: %d", ErrSignerIndexOutOfRange, idx)
		}
		if _, dup := seen[idx]; dup {
			return false, fmt.Errorf("%w: %d", ErrDuplicateSigner, idx)
		}
		seen[idx] = struct{}{}

		var pJac bls12381.G2Jac
		pJac.FromAffine(&c.Keys[idx])
		if i == 0 {
			aggPub = pJac
		} else {
			aggPub.AddAssign(&pJac)
		}
	}

	var aggPubAff bls12381.G2Affine
	aggPubAff.FromJacobian(&aggPub)

	msgPoint, err := bls12381.HashToG1(msg, multisigDST)
	if err != nil {
		return false, fmt.Errorf("multisig: hash message to curve: %w", err)
	}

	var negSig bls12381.G1Affine
	negSig.Neg(&vote.Signature)

	_, _, _, g2Gen := bls12381.Generators()

	// e(sig, g2) == e(H(m), aggPub)  <=>  e(-sig, g2) * e(H(m), aggPub) == 1
	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{negSig, msgPoint},
		[]bls12381.G2Affine{g2Gen, aggPubAff},
	)
	if err != nil {
		return false, fmt.Errorf("multisig: pairing check: %w", err)
	}
	return ok, nil
}
