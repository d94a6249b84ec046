// Copyright 2025 Alpen Labs
//
// Tip-update Engine Tests

package forkchoice

import (
	"reflect"
	"testing"
)

type mapLookup map[byte]byte

func (m mapLookup) GetParent(id byte) (byte, bool) {
	p, ok := m[id]
	return p, ok
}

// Chain: 0 -> 1 -> 2 -> 3 -> 4 (linear).
func linearLookup() mapLookup {
	return mapLookup{1: 0, 2: 1, 3: 2, 4: 3}
}

func TestComputeTipUpdate_Identity(t *testing.T) {
	u, err := ComputeTipUpdate[byte](2, 2, 10, linearLookup())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u != nil {
		t.Errorf("expected no update for identical tips, got %+v", u)
	}
}

func TestComputeTipUpdate_Extend(t *testing.T) {
	u, err := ComputeTipUpdate[byte](2, 3, 10, linearLookup())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil || u.Kind != UpdateExtend {
		t.Fatalf("expected Extend, got %+v", u)
	}
	if u.OldTip != 2 || u.NewTip != 3 {
		t.Errorf("old/new tip mismatch: %+v", u)
	}
}

// Fork: 0 -> 1 -> 2 (chain A), 0 -> 1 -> 3 (chain B). Reorg from 2 to 3.
func forkLookup() mapLookup {
	return mapLookup{1: 0, 2: 1, 3: 1}
}

func TestComputeTipUpdate_ShallowReorg(t *testing.T) {
	u, err := ComputeTipUpdate[byte](2, 3, 10, forkLookup())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil || u.Kind != UpdateReorg {
		t.Fatalf("expected Reorg, got %+v", u)
	}
	if u.Pivot != 1 {
		t.Errorf("pivot = %v, want 1", u.Pivot)
	}
	if !reflect.DeepEqual(u.Down, []byte{2}) {
		t.Errorf("down = %v, want [2]", u.Down)
	}
	if !reflect.DeepEqual(u.Up, []byte{3}) {
		t.Errorf("up = %v, want [3]", u.Up)
	}
	if u.OldTip != 2 || u.NewTip != 3 {
		t.Errorf("old/new tip mismatch: %+v", u)
	}
}

// Deep fork with unequal branch lengths: 0 -> 1 -> 2 -> 3 (chain A, len 3
// past root), 0 -> 1 -> 4 (chain B, len 2 past root). Start is deeper.
func deepForkLookup() mapLookup {
	return mapLookup{1: 0, 2: 1, 3: 2, 4: 1}
}

func TestComputeTipUpdate_UnequalDepthReorg(t *testing.T) {
	u, err := ComputeTipUpdate[byte](3, 4, 10, deepForkLookup())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil || u.Kind != UpdateReorg {
		t.Fatalf("expected Reorg, got %+v", u)
	}
	if u.Pivot != 1 {
		t.Errorf("pivot = %v, want 1", u.Pivot)
	}
	if !reflect.DeepEqual(u.Down, []byte{3, 2}) {
		t.Errorf("down = %v, want [3 2]", u.Down)
	}
	if !reflect.DeepEqual(u.Up, []byte{4}) {
		t.Errorf("up = %v, want [4]", u.Up)
	}
}

func TestComputeTipUpdate_NoCommonAncestorWithinDepth(t *testing.T) {
	lookup := forkLookup()
	_, err := ComputeTipUpdate[byte](2, 3, 0, lookup)
	if err == nil {
		t.Fatal("expected an error when depth limit excludes the common ancestor")
	}
}

func TestRevert_BuildsExplicitRollback(t *testing.T) {
	u := Revert[byte](3, 1)
	if u.Kind != UpdateRevert {
		t.Errorf("kind = %v, want Revert", u.Kind)
	}
	if u.OldTip != 3 || u.NewTip != 1 {
		t.Errorf("old/new tip mismatch: %+v", u)
	}
}

// Invariant 4: reorg well-formedness.
func TestInvariant_ReorgWellFormedness(t *testing.T) {
	cases := []struct {
		name       string
		start, end byte
		lookup     mapLookup
	}{
		{"extend", 2, 3, linearLookup()},
		{"shallow reorg", 2, 3, forkLookup()},
		{"deep reorg", 3, 4, deepForkLookup()},
	}
	for _, c := range cases {
		u, err := ComputeTipUpdate[byte](c.start, c.end, 10, c.lookup)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.name, err)
		}
		if u == nil {
			t.Fatalf("%s: expected an update", c.name)
		}
		if u.NewTip != c.end {
			t.Errorf("%s: new tip = %v, want %v", c.name, u.NewTip, c.end)
		}
		if u.OldTip != c.start {
			t.Errorf("%s: old tip = %v, want %v", c.name, u.OldTip, c.start)
		}
	}
}
