// Copyright 2025 Alpen Labs
//
// Package mmr implements a position-addressed Merkle Mountain Range:
// an append-only accumulator supporting O(1) appends/pops and
// O(log n) inclusion proofs, using the post-order MMR layout for L1
// manifests and account-level inboxes.
package mmr

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math/bits"

	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

// Sentinel errors for MMR operations.
var (
	ErrNodeNotFound   = errors.New("mmr: node not found in store")
	ErrLeafOutOfRange = errors.New("mmr: leaf index out of range")
	ErrEmptyMmr       = errors.New("mmr: tree has no leaves")
)

const internalNodeTag = 0x01

// hashInternal computes the domain-separated hash of an internal node
// from its two children. Leaf hashing policy is the caller's concern.
func hashInternal(left, right rtypes.Hash) rtypes.Hash {
	h := sha256.New()
	h.Write([]byte{internalNodeTag})
	h.Write(left[:])
	h.Write(right[:])
	var out rtypes.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// NodeReader resolves a post-order position to its stored hash.
type NodeReader interface {
	GetNode(pos uint64) (rtypes.Hash, bool)
}

// mapReader is a NodeReader backed by an in-memory overlay, falling
// back to a base reader. Used internally to answer lookups against
// nodes written earlier in the same append/pop call.
type mapReader struct {
	overlay map[uint64]rtypes.Hash
	base    NodeReader
}

func (m mapReader) GetNode(pos uint64) (rtypes.Hash, bool) {
	if h, ok := m.overlay[pos]; ok {
		return h, true
	}
	if m.base != nil {
		return m.base.GetNode(pos)
	}
	return rtypes.Hash{}, false
}

// Meta is the per-instance MMR state: how many leaves have been
// appended and the current peak hashes, ordered ascending by height
// (one hash per set bit of NumLeaves, lowest bit first).
type Meta struct {
	NumLeaves uint64
	Peaks     []rtypes.Hash
}

// Size returns the total node count: 2*NumLeaves - popcount(NumLeaves).
func (m Meta) Size() uint64 {
	return mmrSizeForLeaves(m.NumLeaves)
}

func mmrSizeForLeaves(n uint64) uint64 {
	return 2*n - uint64(bits.OnesCount64(n))
}

// leafPos returns the post-order position of the i-th leaf (0-indexed).
// This equals the tree's size immediately before that leaf was appended.
func leafPos(i uint64) uint64 {
	return mmrSizeForLeaves(i)
}

// heightAt returns the height of the node at post-order position pos,
// a pure function of position independent of how many leaves currently
// exist.
func heightAt(pos uint64) uint64 {
	pos1 := pos + 1
	for !allOnes(pos1) {
		h := uint64(bits.Len64(pos1) - 1)
		pos1 -= (uint64(1) << h) - 1
	}
	return uint64(bits.Len64(pos1) - 1)
}

// allOnes reports whether x's binary representation is all 1 bits
// (i.e. x == 2^k - 1 for some k), the terminal condition of heightAt's walk.
func allOnes(x uint64) bool {
	return x != 0 && bits.OnesCount64(x) == bits.Len64(x)
}

// familyOf returns the sibling and parent positions of pos (whose
// height is h), and whether pos is its parent's left child. Pure
// position arithmetic per spec: parent = p + 2^(h+1) if left sibling,
// else p + 1; sibling = p ± (2^(h+1) - 1).
func familyOf(pos, h uint64) (sibling, parent uint64, isLeft bool) {
	span := uint64(1) << (h + 1)
	candidateParent := pos + span
	if heightAt(candidateParent) == h+1 {
		return pos + (span - 1), candidateParent, true
	}
	return pos - (span - 1), pos + 1, false
}

// peakPositions returns the post-order positions of the peaks implied
// by numLeaves, ordered ascending by height (bit 0 of numLeaves first).
func peakPositions(numLeaves uint64) []uint64 {
	var peaks []uint64
	var sumSize uint64
	for h := 63; h >= 0; h-- {
		if numLeaves&(uint64(1)<<uint(h)) == 0 {
			continue
		}
		subtreeLeaves := uint64(1) << uint(h)
		subtreeSize := 2*subtreeLeaves - 1
		sumSize += subtreeSize
		peaks = append(peaks, sumSize-1)
	}
	for i, j := 0, len(peaks)-1; i < j; i, j = i+1, j-1 {
		peaks[i], peaks[j] = peaks[j], peaks[i]
	}
	return peaks
}

// peakIndexForHeight selects which peak slot corresponds to a subtree
// of the given height, per spec's verify() hint: popcount of the bits
// of numLeaves below `height`.
func peakIndexForHeight(numLeaves, height uint64) int {
	mask := (uint64(1) << height) - 1
	return bits.OnesCount64(numLeaves & mask)
}

// NodeWrite is a single (position, hash) pair produced by a mutation.
type NodeWrite struct {
	Pos  uint64
	Hash rtypes.Hash
}

// AppendResult carries everything a caller needs to persist an append.
type AppendResult struct {
	LeafIndex    uint64
	NodesToWrite []NodeWrite
	NewMeta      Meta
}

// AppendLeaf appends a leaf hash, merging with already-stored left
// siblings while the freshly written position is a right child.
func AppendLeaf(leafHash rtypes.Hash, meta Meta, getNode NodeReader) (AppendResult, error) {
	leafIndex := meta.NumLeaves
	pos := leafPos(leafIndex)

	overlay := map[uint64]rtypes.Hash{pos: leafHash}
	var writes []NodeWrite
	writes = append(writes, NodeWrite{Pos: pos, Hash: leafHash})

	reader := mapReader{overlay: overlay, base: getNode}

	curHash := leafHash
	curPos := pos
	curHeight := uint64(0)
	for {
		sib, parent, isLeft := familyOf(curPos, curHeight)
		if isLeft {
			break
		}
		leftHash, ok := reader.GetNode(sib)
		if !ok {
			return AppendResult{}, fmt.Errorf("%w: left sibling at pos %d", ErrNodeNotFound, sib)
		}
		parentHash := hashInternal(leftHash, curHash)
		overlay[parent] = parentHash
		writes = append(writes, NodeWrite{Pos: parent, Hash: parentHash})

		curHash = parentHash
		curPos = parent
		curHeight++
	}

	newNumLeaves := meta.NumLeaves + 1
	newPeaks, err := resolvePeaks(newNumLeaves, meta, overlay, getNode)
	if err != nil {
		return AppendResult{}, err
	}

	return AppendResult{
		LeafIndex:    leafIndex,
		NodesToWrite: writes,
		NewMeta:      Meta{NumLeaves: newNumLeaves, Peaks: newPeaks},
	}, nil
}

// PopResult carries the effect of removing the most recently appended leaf.
type PopResult struct {
	LeafHash      rtypes.Hash
	NodesToRemove []uint64
	NewMeta       Meta
}

// PopLeaf removes the tail contiguous block of positions left behind
// by the most recent append, returning nil if the tree is empty.
func PopLeaf(meta Meta, getNode NodeReader) (*PopResult, error) {
	if meta.NumLeaves == 0 {
		return nil, nil
	}

	oldSize := meta.Size()
	lastLeafPos := leafPos(meta.NumLeaves - 1)
	leafHash, ok := getNode.GetNode(lastLeafPos)
	if !ok {
		return nil, fmt.Errorf("%w: leaf at pos %d", ErrNodeNotFound, lastLeafPos)
	}

	newNumLeaves := meta.NumLeaves - 1
	newSize := mmrSizeForLeaves(newNumLeaves)

	var toRemove []uint64
	for p := newSize; p < oldSize; p++ {
		toRemove = append(toRemove, p)
	}

	newPeaks, err := resolvePeaks(newNumLeaves, meta, nil, getNode)
	if err != nil {
		return nil, err
	}

	return &PopResult{
		LeafHash:      leafHash,
		NodesToRemove: toRemove,
		NewMeta:       Meta{NumLeaves: newNumLeaves, Peaks: newPeaks},
	}, nil
}

// resolvePeaks computes the peak hash list for newNumLeaves, preferring
// freshly-written overlay entries, then the prior meta's known peaks,
// then falling back to the node store.
func resolvePeaks(newNumLeaves uint64, oldMeta Meta, overlay map[uint64]rtypes.Hash, getNode NodeReader) ([]rtypes.Hash, error) {
	oldPeakPos := peakPositions(oldMeta.NumLeaves)
	oldPeakHash := make(map[uint64]rtypes.Hash, len(oldPeakPos))
	for i, p := range oldPeakPos {
		if i < len(oldMeta.Peaks) {
			oldPeakHash[p] = oldMeta.Peaks[i]
		}
	}

	newPeakPos := peakPositions(newNumLeaves)
	peaks := make([]rtypes.Hash, 0, len(newPeakPos))
	for _, p := range newPeakPos {
		if h, ok := overlay[p]; ok {
			peaks = append(peaks, h)
			continue
		}
		if h, ok := oldPeakHash[p]; ok {
			peaks = append(peaks, h)
			continue
		}
		if getNode != nil {
			if h, ok := getNode.GetNode(p); ok {
				peaks = append(peaks, h)
				continue
			}
		}
		return nil, fmt.Errorf("%w: peak at pos %d", ErrNodeNotFound, p)
	}
	return peaks, nil
}

// MerkleProof is an inclusion proof for a single leaf: the sibling
// hashes encountered walking from the leaf to its containing peak.
type MerkleProof struct {
	Cohashes  []rtypes.Hash
	LeafIndex uint64
}

// GenerateProof walks from leaf i's position to its containing peak,
// collecting sibling hashes.
func GenerateProof(meta Meta, i uint64, getNode NodeReader) (*MerkleProof, error) {
	if i >= meta.NumLeaves {
		return nil, ErrLeafOutOfRange
	}

	peakSet := make(map[uint64]struct{})
	for _, p := range peakPositions(meta.NumLeaves) {
		peakSet[p] = struct{}{}
	}

	pos := leafPos(i)
	height := uint64(0)
	var cohashes []rtypes.Hash
	for {
		if _, isPeak := peakSet[pos]; isPeak {
			break
		}
		sib, parent, _ := familyOf(pos, height)
		sibHash, ok := getNode.GetNode(sib)
		if !ok {
			return nil, fmt.Errorf("%w: sibling at pos %d", ErrNodeNotFound, sib)
		}
		cohashes = append(cohashes, sibHash)
		pos = parent
		height++
	}

	return &MerkleProof{Cohashes: cohashes, LeafIndex: i}, nil
}

// Verify recomputes the peak hash implied by proof and leafHash and
// checks it against the corresponding entry in meta.Peaks.
func Verify(meta Meta, proof *MerkleProof, leafHash rtypes.Hash) (bool, error) {
	if proof.LeafIndex >= meta.NumLeaves {
		return false, ErrLeafOutOfRange
	}

	pos := leafPos(proof.LeafIndex)
	height := uint64(0)
	cur := leafHash
	for _, cohash := range proof.Cohashes {
		_, parent, isLeft := familyOf(pos, height)
		if isLeft {
			cur = hashInternal(cur, cohash)
		} else {
			cur = hashInternal(cohash, cur)
		}
		pos = parent
		height++
	}

	idx := peakIndexForHeight(meta.NumLeaves, height)
	if idx < 0 || idx >= len(meta.Peaks) {
		return false, fmt.Errorf("mmr: no peak at height %d", height)
	}
	return cur == meta.Peaks[idx], nil
}
