// Copyright 2025 Alpen Labs
//
// Mempool Validation Tests

package mempool

import (
	"errors"
	"testing"

	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

func slotPtr(s rtypes.Slot) *rtypes.Slot { return &s }

func TestValidate_ExpiredTransactionRejected(t *testing.T) {
	tx := Transaction{Bounds: AttachmentBounds{MaxSlot: slotPtr(10)}}
	account := Account{Exists: true}
	err := Validate(tx, account, PendingRange{}, 11)
	if !errors.Is(err, ErrTransactionExpired) {
		t.Fatalf("err = %v, want ErrTransactionExpired", err)
	}
}

func TestValidate_ImmatureTransactionRejected(t *testing.T) {
	tx := Transaction{Bounds: AttachmentBounds{MinSlot: slotPtr(20)}}
	account := Account{Exists: true}
	err := Validate(tx, account, PendingRange{}, 10)
	if !errors.Is(err, ErrTransactionNotMature) {
		t.Fatalf("err = %v, want ErrTransactionNotMature", err)
	}
}

func TestValidate_MissingAccountRejected(t *testing.T) {
	tx := Transaction{}
	err := Validate(tx, Account{Exists: false}, PendingRange{}, 0)
	if !errors.Is(err, ErrAccountDoesNotExist) {
		t.Fatalf("err = %v, want ErrAccountDoesNotExist", err)
	}
}

func TestValidate_NonSnarkTransactionSkipsSequenceCheck(t *testing.T) {
	tx := Transaction{IsSnarkKind: false}
	account := Account{Exists: true, Kind: AccountKindOther, NextSeqNo: 5}
	if err := Validate(tx, account, PendingRange{}, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_AccountTypeMismatch(t *testing.T) {
	tx := Transaction{IsSnarkKind: true, SeqNo: 0}
	account := Account{Exists: true, Kind: AccountKindOther}
	err := Validate(tx, account, PendingRange{}, 0)
	if !errors.Is(err, ErrAccountTypeMismatch) {
		t.Fatalf("err = %v, want ErrAccountTypeMismatch", err)
	}
}

func TestValidate_SnarkUpdate_NoPending_ExactNextSeqNoAdmitted(t *testing.T) {
	tx := Transaction{IsSnarkKind: true, SeqNo: 5}
	account := Account{Exists: true, Kind: AccountKindSnark, NextSeqNo: 5}
	if err := Validate(tx, account, PendingRange{}, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_SnarkUpdate_NoPending_LowerSeqNoUsed(t *testing.T) {
	tx := Transaction{IsSnarkKind: true, SeqNo: 3}
	account := Account{Exists: true, Kind: AccountKindSnark, NextSeqNo: 5}
	err := Validate(tx, account, PendingRange{}, 0)
	if !errors.Is(err, ErrUsedSequenceNumber) {
		t.Fatalf("err = %v, want ErrUsedSequenceNumber", err)
	}
}

func TestValidate_SnarkUpdate_NoPending_HigherSeqNoGap(t *testing.T) {
	tx := Transaction{IsSnarkKind: true, SeqNo: 8}
	account := Account{Exists: true, Kind: AccountKindSnark, NextSeqNo: 5}
	err := Validate(tx, account, PendingRange{}, 0)
	if !errors.Is(err, ErrSequenceNumberGap) {
		t.Fatalf("err = %v, want ErrSequenceNumberGap", err)
	}
}

func TestValidate_SnarkUpdate_WithPending_WithinRangeAdmitted(t *testing.T) {
	tx := Transaction{IsSnarkKind: true, SeqNo: 7}
	account := Account{Exists: true, Kind: AccountKindSnark, NextSeqNo: 5}
	pending := PendingRange{HasPending: true, MinPending: 5, MaxPending: 7}
	if err := Validate(tx, account, pending, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_SnarkUpdate_WithPending_ImmediateNextAdmitted(t *testing.T) {
	tx := Transaction{IsSnarkKind: true, SeqNo: 8}
	account := Account{Exists: true, Kind: AccountKindSnark, NextSeqNo: 5}
	pending := PendingRange{HasPending: true, MinPending: 5, MaxPending: 7}
	if err := Validate(tx, account, pending, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_SnarkUpdate_WithPending_BelowMinUsed(t *testing.T) {
	tx := Transaction{IsSnarkKind: true, SeqNo: 4}
	account := Account{Exists: true, Kind: AccountKindSnark, NextSeqNo: 5}
	pending := PendingRange{HasPending: true, MinPending: 5, MaxPending: 7}
	err := Validate(tx, account, pending, 0)
	if !errors.Is(err, ErrUsedSequenceNumber) {
		t.Fatalf("err = %v, want ErrUsedSequenceNumber", err)
	}
}

func TestValidate_SnarkUpdate_WithPending_AboveMaxPlusOneGap(t *testing.T) {
	tx := Transaction{IsSnarkKind: true, SeqNo: 9}
	account := Account{Exists: true, Kind: AccountKindSnark, NextSeqNo: 5}
	pending := PendingRange{HasPending: true, MinPending: 5, MaxPending: 7}
	err := Validate(tx, account, pending, 0)
	if !errors.Is(err, ErrSequenceNumberGap) {
		t.Fatalf("err = %v, want ErrSequenceNumberGap", err)
	}
}
