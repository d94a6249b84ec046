// Copyright 2025 Alpen Labs
//
// MMR Engine Tests

package mmr

import (
	"crypto/sha256"
	"testing"

	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

// memStore is a trivial in-memory NodeReader used by the tests, backed
// by a plain map keyed on post-order position.
type memStore struct {
	nodes map[uint64]rtypes.Hash
}

func newMemStore() *memStore {
	return &memStore{nodes: make(map[uint64]rtypes.Hash)}
}

func (m *memStore) GetNode(pos uint64) (rtypes.Hash, bool) {
	h, ok := m.nodes[pos]
	return h, ok
}

func (m *memStore) apply(writes []NodeWrite) {
	for _, w := range writes {
		m.nodes[w.Pos] = w.Hash
	}
}

func (m *memStore) remove(positions []uint64) {
	for _, p := range positions {
		delete(m.nodes, p)
	}
}

func leafHash(i int) rtypes.Hash {
	return sha256.Sum256([]byte{byte(i), byte(i >> 8)})
}

func buildMmr(t *testing.T, n int) (*memStore, Meta) {
	t.Helper()
	store := newMemStore()
	meta := Meta{}
	for i := 0; i < n; i++ {
		res, err := AppendLeaf(leafHash(i), meta, store)
		if err != nil {
			t.Fatalf("append leaf %d: %v", i, err)
		}
		store.apply(res.NodesToWrite)
		meta = res.NewMeta
	}
	return store, meta
}

func TestAppendLeaf_SingleLeaf(t *testing.T) {
	store, meta := buildMmr(t, 1)

	if meta.NumLeaves != 1 {
		t.Fatalf("num leaves mismatch: got %d, want 1", meta.NumLeaves)
	}
	if len(meta.Peaks) != 1 {
		t.Fatalf("peak count mismatch: got %d, want 1", len(meta.Peaks))
	}
	if meta.Peaks[0] != leafHash(0) {
		t.Errorf("single leaf peak should equal the leaf hash")
	}
	if meta.Size() != 1 {
		t.Errorf("size mismatch: got %d, want 1", meta.Size())
	}
	_ = store
}

func TestAppendLeaf_MergesPairs(t *testing.T) {
	store, meta := buildMmr(t, 2)

	if meta.NumLeaves != 2 {
		t.Fatalf("num leaves mismatch: got %d, want 2", meta.NumLeaves)
	}
	if len(meta.Peaks) != 1 {
		t.Fatalf("peak count mismatch: got %d, want 1 (a single height-1 peak)", len(meta.Peaks))
	}

	expected := hashInternal(leafHash(0), leafHash(1))
	if meta.Peaks[0] != expected {
		t.Errorf("peak mismatch after merge: got %x, want %x", meta.Peaks[0], expected)
	}

	if _, ok := store.GetNode(2); !ok {
		t.Error("expected internal node at position 2 to be written")
	}
}

func TestAppendLeaf_SevenLeaves_PeakShape(t *testing.T) {
	// 7 = 0b111, so three peaks at heights 2, 1, 0.
	_, meta := buildMmr(t, 7)

	if meta.NumLeaves != 7 {
		t.Fatalf("num leaves mismatch: got %d, want 7", meta.NumLeaves)
	}
	if len(meta.Peaks) != 3 {
		t.Fatalf("peak count mismatch: got %d, want 3", len(meta.Peaks))
	}
	if meta.Size() != mmrSizeForLeaves(7) {
		t.Errorf("size mismatch: got %d, want %d", meta.Size(), mmrSizeForLeaves(7))
	}
}

func TestGenerateProofAndVerify_AllLeaves(t *testing.T) {
	const n = 11
	store, meta := buildMmr(t, n)

	for i := 0; i < n; i++ {
		proof, err := GenerateProof(meta, uint64(i), store)
		if err != nil {
			t.Fatalf("leaf %d: generate proof: %v", i, err)
		}
		if proof.LeafIndex != uint64(i) {
			t.Errorf("leaf %d: proof leaf index mismatch: got %d", i, proof.LeafIndex)
		}

		ok, err := Verify(meta, proof, leafHash(i))
		if err != nil {
			t.Fatalf("leaf %d: verify: %v", i, err)
		}
		if !ok {
			t.Errorf("leaf %d: proof did not verify", i)
		}
	}
}

func TestVerify_WrongLeafFails(t *testing.T) {
	_, meta := buildMmr(t, 5)
	store, _ := buildMmr(t, 5)

	proof, err := GenerateProof(meta, 2, store)
	if err != nil {
		t.Fatalf("generate proof: %v", err)
	}

	ok, err := Verify(meta, proof, leafHash(3))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Error("proof should not verify against the wrong leaf")
	}
}

func TestGenerateProof_OutOfRange(t *testing.T) {
	_, meta := buildMmr(t, 3)
	store := newMemStore()

	_, err := GenerateProof(meta, 3, store)
	if err != ErrLeafOutOfRange {
		t.Errorf("expected ErrLeafOutOfRange, got %v", err)
	}
}

func TestPopLeaf_UndoesAppend(t *testing.T) {
	store, metaAfterFour := buildMmr(t, 4)

	before := Meta{NumLeaves: 3}
	// Recompute what the 3-leaf peaks should have been independently.
	store3, meta3 := buildMmr(t, 3)
	before.Peaks = meta3.Peaks
	_ = store3

	res, err := PopLeaf(metaAfterFour, store)
	if err != nil {
		t.Fatalf("pop leaf: %v", err)
	}
	if res == nil {
		t.Fatal("expected non-nil pop result")
	}
	if res.LeafHash != leafHash(3) {
		t.Errorf("popped leaf hash mismatch: got %x, want %x", res.LeafHash, leafHash(3))
	}
	if res.NewMeta.NumLeaves != 3 {
		t.Fatalf("num leaves after pop mismatch: got %d, want 3", res.NewMeta.NumLeaves)
	}
	if len(res.NewMeta.Peaks) != len(before.Peaks) {
		t.Fatalf("peak count after pop mismatch: got %d, want %d", len(res.NewMeta.Peaks), len(before.Peaks))
	}
	for i := range before.Peaks {
		if res.NewMeta.Peaks[i] != before.Peaks[i] {
			t.Errorf("peak %d mismatch after pop: got %x, want %x", i, res.NewMeta.Peaks[i], before.Peaks[i])
		}
	}

	store.apply(nil)
	store.remove(res.NodesToRemove)

	// The rolled-back tree should still support proofs for the remaining leaves.
	proof, err := GenerateProof(res.NewMeta, 1, store)
	if err != nil {
		t.Fatalf("generate proof after pop: %v", err)
	}
	ok, err := Verify(res.NewMeta, proof, leafHash(1))
	if err != nil {
		t.Fatalf("verify after pop: %v", err)
	}
	if !ok {
		t.Error("proof should verify after popping the tail leaf")
	}
}

func TestPopLeaf_EmptyTreeReturnsNil(t *testing.T) {
	store := newMemStore()
	res, err := PopLeaf(Meta{}, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Error("expected nil result popping an empty tree")
	}
}

func TestHeightAt_KnownPositions(t *testing.T) {
	cases := []struct {
		pos    uint64
		height uint64
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 0},
		{4, 0},
		{5, 1},
		{6, 2},
	}
	for _, c := range cases {
		if got := heightAt(c.pos); got != c.height {
			t.Errorf("heightAt(%d) = %d, want %d", c.pos, got, c.height)
		}
	}
}

func TestLeafPos_MatchesMmrSize(t *testing.T) {
	for i := uint64(0); i < 20; i++ {
		if got := leafPos(i); got != mmrSizeForLeaves(i) {
			t.Errorf("leafPos(%d) = %d, want %d", i, got, mmrSizeForLeaves(i))
		}
	}
}
