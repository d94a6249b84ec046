// Copyright 2025 Alpen Labs
//
// Package forkchoice implements the tip-update engine: given a current
// tip and a newly selected best tip, it computes the minimal
// transition path between them (extend, reorg, or revert) over a
// caller-supplied parent lookup. Pure algorithm, no I/O.
package forkchoice

import (
	"errors"
	"fmt"
)

// ErrNoCommonAncestor is returned when no shared ancestor is found
// within limitDepth steps from both start and dest.
var ErrNoCommonAncestor = errors.New("forkchoice: no common ancestor within depth limit")

// ParentLookup resolves an id to its parent id. The tracker satisfies
// this directly.
type ParentLookup[Id comparable] interface {
	GetParent(id Id) (Id, bool)
}

// UpdateKind distinguishes the shape of a computed tip update.
type UpdateKind int

const (
	UpdateExtend UpdateKind = iota
	UpdateReorg
	UpdateRevert
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateExtend:
		return "Extend"
	case UpdateReorg:
		return "Reorg"
	case UpdateRevert:
		return "Revert"
	default:
		return "Unknown"
	}
}

// TipUpdate describes the path from OldTip to NewTip. Down/Pivot/Up
// are only populated for UpdateReorg.
type TipUpdate[Id comparable] struct {
	Kind   UpdateKind
	OldTip Id
	NewTip Id

	// Down is [start..pivot), newest-first (nearest to start first).
	Down []Id
	// Pivot is the deepest common ancestor.
	Pivot Id
	// Up is (pivot..dest], oldest-first (nearest to pivot first, ending at dest).
	Up []Id
}

// ancestorChain walks parents from id up to limitDepth steps,
// returning [id, parent(id), grandparent(id), ...].
func ancestorChain[Id comparable](id Id, limitDepth int, lookup ParentLookup[Id]) []Id {
	chain := []Id{id}
	cur := id
	for i := 0; i < limitDepth; i++ {
		p, ok := lookup.GetParent(cur)
		if !ok {
			break
		}
		chain = append(chain, p)
		cur = p
	}
	return chain
}

func indexOf[Id comparable](chain []Id, target Id) int {
	for i, id := range chain {
		if id == target {
			return i
		}
	}
	return -1
}

// ComputeTipUpdate computes the transition from start to dest. Returns
// (nil, nil) when start == dest (no update needed). Returns
// ErrNoCommonAncestor if no shared ancestor is found within
// limitDepth hops of either side.
func ComputeTipUpdate[Id comparable](start, dest Id, limitDepth int, lookup ParentLookup[Id]) (*TipUpdate[Id], error) {
	if start == dest {
		return nil, nil
	}

	if parent, ok := lookup.GetParent(dest); ok && parent == start {
		return &TipUpdate[Id]{Kind: UpdateExtend, OldTip: start, NewTip: dest}, nil
	}

	fullStart := ancestorChain(start, limitDepth, lookup)
	fullDest := ancestorChain(dest, limitDepth, lookup)

	alignedStart := fullStart
	alignedDest := fullDest
	switch {
	case len(alignedStart) > len(alignedDest):
		alignedStart = alignedStart[len(alignedStart)-len(alignedDest):]
	case len(alignedDest) > len(alignedStart):
		alignedDest = alignedDest[len(alignedDest)-len(alignedStart):]
	}

	n := len(alignedStart)
	pivotAlignedIdx := -1
	for i := n - 1; i >= 0; i-- {
		if alignedStart[i] == alignedDest[i] {
			pivotAlignedIdx = i
		} else {
			break
		}
	}
	if pivotAlignedIdx == -1 {
		return nil, fmt.Errorf("%w: start=%v dest=%v depth=%d", ErrNoCommonAncestor, start, dest, limitDepth)
	}
	pivot := alignedStart[pivotAlignedIdx]

	startPivotIdx := indexOf(fullStart, pivot)
	destPivotIdx := indexOf(fullDest, pivot)

	down := append([]Id{}, fullStart[:startPivotIdx]...)
	up := make([]Id, 0, destPivotIdx)
	for i := destPivotIdx - 1; i >= 0; i-- {
		up = append(up, fullDest[i])
	}

	return &TipUpdate[Id]{
		Kind:   UpdateReorg,
		OldTip: start,
		NewTip: dest,
		Down:   down,
		Pivot:  pivot,
		Up:     up,
	}, nil
}

// Revert builds an explicit rollback update, independent of reorg
// detection — the caller has already decided to roll back to a prior tip.
func Revert[Id comparable](cur, newTip Id) *TipUpdate[Id] {
	return &TipUpdate[Id]{Kind: UpdateRevert, OldTip: cur, NewTip: newTip}
}
