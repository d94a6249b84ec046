// Copyright 2025 Alpen Labs
//
// Package rtypes holds the shared identifier and commitment types used
// across the rollup kernel: hashes, slots, heights, and the composite
// block/checkpoint commitments that tie the L1 and L2 chains together.
package rtypes

import (
	"encoding/hex"
	"fmt"
)

// Hash is a 32-byte opaque digest, the common currency of every
// identifier in the system.
type Hash [32]byte

// ZeroHash is the default, unset hash value.
var ZeroHash = Hash{}

// String renders the hash as a lowercase hex string.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// HashFromHex decodes a hex string into a Hash, erroring on the wrong length.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("decode hash hex: %w", err)
	}
	if len(b) != 32 {
		return Hash{}, fmt.Errorf("hash must be 32 bytes, got %d", len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// Slot is a monotonically assigned L2 (OL) block index.
type Slot uint64

// Epoch indexes a contiguous range of slots summarized by a checkpoint.
type Epoch uint64

// Height is an L1 block height.
type Height uint64

// L1BlockId identifies a Bitcoin block.
type L1BlockId Hash

func (id L1BlockId) String() string { return Hash(id).String() }

// OLBlockId identifies an orchestration-layer (L2) block.
type OLBlockId Hash

func (id OLBlockId) String() string { return Hash(id).String() }

// L1BlockCommitment pins an L1 block by height and id.
type L1BlockCommitment struct {
	Height Height
	Blkid  L1BlockId
}

func (c L1BlockCommitment) String() string {
	return fmt.Sprintf("L1(%d, %s)", c.Height, c.Blkid)
}

// OLBlockCommitment pins an L2 block by slot and id.
type OLBlockCommitment struct {
	Slot  Slot
	Blkid OLBlockId
}

func (c OLBlockCommitment) String() string {
	return fmt.Sprintf("OL(%d, %s)", c.Slot, c.Blkid)
}

// EpochCommitment pins a finalized epoch by its last slot/block.
type EpochCommitment struct {
	Epoch     Epoch
	LastSlot  Slot
	LastBlkid OLBlockId
}

func (c EpochCommitment) String() string {
	return fmt.Sprintf("Epoch(%d, last=%d/%s)", c.Epoch, c.LastSlot, c.LastBlkid)
}

// ChainItem abstracts anything that fits into a parent-pointer tree:
// the unfinalized chain tracker only ever needs these three fields.
type ChainItem[Id comparable] interface {
	ItemIndex() Slot
	ItemId() Id
	ItemParentId() Id
}

// ItemEntry is the internal, tracker-owned form of a ChainItem.
type ItemEntry[Id comparable] struct {
	Index    Slot
	Id       Id
	ParentId Id
}

// ItemIndex implements ChainItem.
func (e ItemEntry[Id]) ItemIndex() Slot { return e.Index }

// ItemId implements ChainItem.
func (e ItemEntry[Id]) ItemId() Id { return e.Id }

// ItemParentId implements ChainItem.
func (e ItemEntry[Id]) ItemParentId() Id { return e.ParentId }

// EntryFrom converts any ChainItem into the tracker's internal ItemEntry form.
func EntryFrom[Id comparable](item ChainItem[Id]) ItemEntry[Id] {
	return ItemEntry[Id]{
		Index:    item.ItemIndex(),
		Id:       item.ItemId(),
		ParentId: item.ItemParentId(),
	}
}
