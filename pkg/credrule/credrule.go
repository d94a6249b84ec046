// Copyright 2025 Alpen Labs
//
// Package credrule implements the checkpoint- and block-proposal
// signature rules: Unchecked (no authentication) and SchnorrKey, a
// single BIP340 Schnorr public key authenticating a lone sequencer.
package credrule

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// ErrInvalidSignatureLength is returned when a Schnorr signature blob
// isn't the expected 64 bytes.
var ErrInvalidSignatureLength = errors.New("credrule: invalid schnorr signature length")

// Kind discriminates the CredRule variants.
type Kind int

const (
	KindUnchecked Kind = iota
	KindSchnorrKey
)

func (k Kind) String() string {
	switch k {
	case KindUnchecked:
		return "Unchecked"
	case KindSchnorrKey:
		return "SchnorrKey"
	default:
		return "Unknown"
	}
}

// CredRule authenticates a signer over a message hash. Unchecked
// always accepts; SchnorrKey verifies a BIP340 signature against a
// fixed public key.
type CredRule struct {
	kind   Kind
	pubkey *btcec.PublicKey
}

// Unchecked builds the no-op credential rule — used for the genesis
// slot, which is unsigned per spec.
func Unchecked() CredRule {
	return CredRule{kind: KindUnchecked}
}

// SchnorrKey builds a credential rule bound to a single BIP340 public key.
func SchnorrKey(pubkey *btcec.PublicKey) CredRule {
	return CredRule{kind: KindSchnorrKey, pubkey: pubkey}
}

// Kind reports which variant this rule is.
func (c CredRule) Kind() Kind { return c.kind }

// Verify checks sig against msgHash per the rule's variant.
func (c CredRule) Verify(msgHash [32]byte, sig []byte) (bool, error) {
	switch c.kind {
	case KindUnchecked:
		return true, nil
	case KindSchnorrKey:
		if len(sig) != schnorr.SignatureSize {
			return false, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSignatureLength, len(sig), schnorr.SignatureSize)
		}
		parsed, err := schnorr.ParseSignature(sig)
		if err != nil {
			return false, fmt.Errorf("credrule: parse schnorr signature: %w", err)
		}
		if c.pubkey == nil {
			return false, errors.New("credrule: schnorr rule has no public key")
		}
		return parsed.Verify(msgHash[:], c.pubkey), nil
	default:
		return false, fmt.Errorf("credrule: unknown kind %v", c.kind)
	}
}
