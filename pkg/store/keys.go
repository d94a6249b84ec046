// Copyright 2025 Alpen Labs
//
// Package store implements the ordered key-value persistence layer
// and the transactional multi-tree commit primitive the kernel's
// components write through: MMR node/meta trees, client-state-by-commitment,
// OL blocks, and checkpoints-by-epoch.
package store

import (
	"encoding/binary"

	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

// ====== KV Key Layout ======
//
// nodes:        mmrNode   | mmr_id(8) | pos(8)        -> hash(32)
// meta:         mmrMeta   | mmr_id(8)                 -> encoded MmrMetadata
// hash_pos:     mmrHashPos| mmr_id(8) | hash(32)       -> pos(8)
// client-state: clientState | height(8) | blkid(32)   -> encoded ClientState
// ol-block:     olBlock   | blkid(32)                 -> encoded OLBlock
// slot-index:   slotIndex | slot(8) | blkid(32)        -> presence marker
// checkpoint:   checkpoint | epoch(8)                  -> encoded L1Checkpoint

const (
	prefixMmrNode     byte = 0x01
	prefixMmrMeta     byte = 0x02
	prefixMmrHashPos  byte = 0x03
	prefixClientState byte = 0x04
	prefixOLBlock     byte = 0x05
	prefixSlotIndex   byte = 0x06
	prefixCheckpoint  byte = 0x07
)

// MmrId names a logical MMR instance (one per L1-manifest tree, one per
// account inbox, etc).
type MmrId uint64

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// MmrNodeKey addresses a single MMR node by (instance, post-order position).
func MmrNodeKey(id MmrId, pos uint64) []byte {
	k := make([]byte, 0, 17)
	k = append(k, prefixMmrNode)
	k = append(k, be64(uint64(id))...)
	k = append(k, be64(pos)...)
	return k
}

// MmrMetaKey addresses an MMR instance's metadata record.
func MmrMetaKey(id MmrId) []byte {
	k := make([]byte, 0, 9)
	k = append(k, prefixMmrMeta)
	k = append(k, be64(uint64(id))...)
	return k
}

// MmrHashPosKey addresses the reverse index from leaf hash to position.
func MmrHashPosKey(id MmrId, h rtypes.Hash) []byte {
	k := make([]byte, 0, 41)
	k = append(k, prefixMmrHashPos)
	k = append(k, be64(uint64(id))...)
	k = append(k, h[:]...)
	return k
}

// ClientStateKey addresses a client-state snapshot by the L1 block
// commitment it was computed at.
func ClientStateKey(c rtypes.L1BlockCommitment) []byte {
	k := make([]byte, 0, 41)
	k = append(k, prefixClientState)
	k = append(k, be64(uint64(c.Height))...)
	k = append(k, c.Blkid[:]...)
	return k
}

// OLBlockKey addresses a stored OL block by its id.
func OLBlockKey(id rtypes.OLBlockId) []byte {
	k := make([]byte, 0, 33)
	k = append(k, prefixOLBlock)
	k = append(k, id[:]...)
	return k
}

// SlotIndexKey addresses the secondary slot -> {blkid} index entry.
func SlotIndexKey(slot rtypes.Slot, id rtypes.OLBlockId) []byte {
	k := make([]byte, 0, 41)
	k = append(k, prefixSlotIndex)
	k = append(k, be64(uint64(slot))...)
	k = append(k, id[:]...)
	return k
}

// SlotIndexPrefix returns the key prefix covering every block id
// indexed under slot, for range iteration.
func SlotIndexPrefix(slot rtypes.Slot) []byte {
	k := make([]byte, 0, 9)
	k = append(k, prefixSlotIndex)
	k = append(k, be64(uint64(slot))...)
	return k
}

// CheckpointKey addresses a committed checkpoint by epoch.
func CheckpointKey(epoch rtypes.Epoch) []byte {
	k := make([]byte, 0, 9)
	k = append(k, prefixCheckpoint)
	k = append(k, be64(uint64(epoch))...)
	return k
}
