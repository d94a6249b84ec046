// Copyright 2025 Alpen Labs
//
// Package mempool implements per-account transaction admission: slot
// attachment bounds, account existence, and sequence-number ordering
// for snark-account updates. Validation is a read-then-compare dance
// that callers must re-run under the account's lock immediately before
// insertion (spec.md §5) — this package exposes the pure check; the
// locking discipline lives with the caller's sharded lock table.
package mempool

import (
	"errors"
	"fmt"

	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

var (
	ErrTransactionExpired   = errors.New("mempool: transaction expired (max_slot < current slot)")
	ErrTransactionNotMature = errors.New("mempool: transaction not mature (min_slot > current slot)")
	ErrAccountDoesNotExist  = errors.New("mempool: account does not exist")
	ErrUsedSequenceNumber   = errors.New("mempool: sequence number already used")
	ErrSequenceNumberGap    = errors.New("mempool: sequence number gap")
	ErrAccountTypeMismatch  = errors.New("mempool: account type mismatch")
)

// AccountKind distinguishes accounts that admit sequenced snark
// updates from those that don't.
type AccountKind int

const (
	AccountKindSnark AccountKind = iota
	AccountKindOther
)

// Account is the subset of account state admission needs.
type Account struct {
	Kind      AccountKind
	Exists    bool
	NextSeqNo uint64
}

// AttachmentBounds are the transaction's optional slot-validity window.
type AttachmentBounds struct {
	MinSlot *rtypes.Slot
	MaxSlot *rtypes.Slot
}

// Transaction is the subset of an inbound transaction admission needs.
type Transaction struct {
	Target      rtypes.Hash
	Bounds      AttachmentBounds
	IsSnarkKind bool
	SeqNo       uint64
}

// PendingRange summarizes the sequence numbers of this account's other
// pending snark-update transactions already admitted to the pool.
type PendingRange struct {
	HasPending bool
	MinPending uint64
	MaxPending uint64
}

// Validate runs the three admission checks from spec.md §4.10 in
// order: attachment bounds, account existence, then (for snark-kind
// transactions) sequence-number admission.
func Validate(tx Transaction, account Account, pending PendingRange, currentSlot rtypes.Slot) error {
	if tx.Bounds.MaxSlot != nil && *tx.Bounds.MaxSlot < currentSlot {
		return ErrTransactionExpired
	}
	if tx.Bounds.MinSlot != nil && *tx.Bounds.MinSlot > currentSlot {
		return ErrTransactionNotMature
	}

	if !account.Exists {
		return ErrAccountDoesNotExist
	}

	if !tx.IsSnarkKind {
		return nil
	}
	if account.Kind != AccountKindSnark {
		return fmt.Errorf("%w: target=%s", ErrAccountTypeMismatch, tx.Target)
	}

	if pending.HasPending {
		if tx.SeqNo < pending.MinPending {
			return fmt.Errorf("%w: seq=%d min_pending=%d", ErrUsedSequenceNumber, tx.SeqNo, pending.MinPending)
		}
		if tx.SeqNo > pending.MaxPending+1 {
			return fmt.Errorf("%w: seq=%d max_pending=%d", ErrSequenceNumberGap, tx.SeqNo, pending.MaxPending)
		}
		return nil
	}

	if tx.SeqNo < account.NextSeqNo {
		return fmt.Errorf("%w: seq=%d next=%d", ErrUsedSequenceNumber, tx.SeqNo, account.NextSeqNo)
	}
	if tx.SeqNo > account.NextSeqNo {
		return fmt.Errorf("%w: seq=%d next=%d", ErrSequenceNumberGap, tx.SeqNo, account.NextSeqNo)
	}
	return nil
}
