// Copyright 2025 Alpen Labs
//
// Package chaintracker implements the in-memory tree of unfinalized
// blocks: entries keyed by ID with parent pointers, a tip set, a
// canonical-chain cache, an orphan buffer for blocks whose parent
// hasn't arrived yet, and finalization-driven pruning.
package chaintracker

import (
	"errors"
	"fmt"
	"sort"

	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

// ErrUnknownItem is returned by PruneTo when the new finalized id is
// not present in the tracker.
var ErrUnknownItem = errors.New("chaintracker: unknown item")

// ErrInvalidState flags a broken bookkeeping invariant: the walk from
// the new finalized entry back to the old root did not reach it.
var ErrInvalidState = errors.New("chaintracker: invalid state")

// AttachKind enumerates the outcome of a single attach call.
type AttachKind int

const (
	AttachAttached AttachKind = iota
	AttachExisting
	AttachBelowFinalized
	AttachOrphan
)

func (k AttachKind) String() string {
	switch k {
	case AttachAttached:
		return "Attached"
	case AttachExisting:
		return "Existing"
	case AttachBelowFinalized:
		return "BelowFinalized"
	case AttachOrphan:
		return "Orphan"
	default:
		return "Unknown"
	}
}

// AttachResult is the outcome of UnfinalizedTracker.Attach. NewBest is
// only meaningful when Kind == AttachAttached.
type AttachResult[Id comparable] struct {
	Kind    AttachKind
	NewBest Id
}

// PruneReport carries the ids finalized and the ids pruned by a
// PruneTo call.
type PruneReport[Id comparable] struct {
	Finalized []Id
	Pruned    []Id
}

// UnfinalizedTracker is a tree of entries spanning from a finalized
// root to one or more competing tips.
type UnfinalizedTracker[Id comparable] struct {
	entries      map[Id]rtypes.ItemEntry[Id]
	tips         map[Id]struct{}
	best         Id
	finalized    rtypes.ItemEntry[Id]
	canonical    []Id
	canonicalSet map[Id]struct{}
}

// NewUnfinalizedTracker constructs a tracker with best == finalized == root.
func NewUnfinalizedTracker[Id comparable](root rtypes.ItemEntry[Id]) *UnfinalizedTracker[Id] {
	return &UnfinalizedTracker[Id]{
		entries:      map[Id]rtypes.ItemEntry[Id]{root.Id: root},
		tips:         map[Id]struct{}{root.Id: {}},
		best:         root.Id,
		finalized:    root,
		canonical:    nil,
		canonicalSet: map[Id]struct{}{},
	}
}

// Best returns the current best tip id.
func (t *UnfinalizedTracker[Id]) Best() Id { return t.best }

// FinalizedIndex returns the root entry's index.
func (t *UnfinalizedTracker[Id]) FinalizedIndex() rtypes.Slot { return t.finalized.Index }

// FinalizedId returns the root entry's id.
func (t *UnfinalizedTracker[Id]) FinalizedId() Id { return t.finalized.Id }

// CanonicalChain returns the ordered id sequence from the root's child
// up to best (exclusive of root, inclusive of best).
func (t *UnfinalizedTracker[Id]) CanonicalChain() []Id {
	out := make([]Id, len(t.canonical))
	copy(out, t.canonical)
	return out
}

// IsCanonical reports whether id is on the current canonical chain.
func (t *UnfinalizedTracker[Id]) IsCanonical(id Id) bool {
	_, ok := t.canonicalSet[id]
	return ok
}

// Contains reports whether id is a known entry.
func (t *UnfinalizedTracker[Id]) Contains(id Id) bool {
	_, ok := t.entries[id]
	return ok
}

// Get returns the entry for id, if known.
func (t *UnfinalizedTracker[Id]) Get(id Id) (rtypes.ItemEntry[Id], bool) {
	e, ok := t.entries[id]
	return e, ok
}

// GetParent implements the minimal ParentLookup surface the tip-update
// engine needs.
func (t *UnfinalizedTracker[Id]) GetParent(id Id) (Id, bool) {
	e, ok := t.entries[id]
	if !ok {
		var zero Id
		return zero, false
	}
	return e.ParentId, true
}

// Attach inserts entry per the spec's five-way dispatch.
func (t *UnfinalizedTracker[Id]) Attach(item rtypes.ChainItem[Id]) AttachResult[Id] {
	e := rtypes.EntryFrom(item)

	if _, ok := t.entries[e.Id]; ok {
		return AttachResult[Id]{Kind: AttachExisting}
	}
	if e.Index < t.finalized.Index {
		return AttachResult[Id]{Kind: AttachBelowFinalized}
	}

	_, parentIsTip := t.tips[e.ParentId]
	_, parentExists := t.entries[e.ParentId]
	if !parentIsTip && !parentExists {
		return AttachResult[Id]{Kind: AttachOrphan}
	}

	t.entries[e.Id] = e
	if parentIsTip {
		delete(t.tips, e.ParentId)
	}
	t.tips[e.Id] = struct{}{}

	t.maybeUpdateBest(e)

	return AttachResult[Id]{Kind: AttachAttached, NewBest: t.best}
}

// maybeUpdateBest applies the "strictly greater index supersedes,
// ties resolved by first-seen" rule and rebuilds the canonical chain
// only when best actually moves.
func (t *UnfinalizedTracker[Id]) maybeUpdateBest(e rtypes.ItemEntry[Id]) {
	if e.Index > t.entries[t.best].Index {
		t.best = e.Id
		t.rebuildCanonical()
	}
}

func (t *UnfinalizedTracker[Id]) rebuildCanonical() {
	var ids []Id
	cur := t.best
	for cur != t.finalized.Id {
		ids = append(ids, cur)
		e := t.entries[cur]
		cur = e.ParentId
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	t.canonical = ids
	set := make(map[Id]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	t.canonicalSet = set
}

// PruneTo advances the finalized root to newFinalizedId, discarding
// everything not descended from it and rebuilding tips/best/canonical
// from the surviving entries.
func (t *UnfinalizedTracker[Id]) PruneTo(newFinalizedId Id) (PruneReport[Id], error) {
	newFinalized, ok := t.entries[newFinalizedId]
	if !ok {
		return PruneReport[Id]{}, fmt.Errorf("%w: %v", ErrUnknownItem, newFinalizedId)
	}

	var finalizedChain []Id
	cur := newFinalized.ParentId
	reachedRoot := newFinalized.Id == t.finalized.Id
	for !reachedRoot {
		if cur == t.finalized.Id {
			reachedRoot = true
			break
		}
		e, ok := t.entries[cur]
		if !ok {
			return PruneReport[Id]{}, fmt.Errorf("%w: walk did not reach old root", ErrInvalidState)
		}
		finalizedChain = append(finalizedChain, cur)
		cur = e.ParentId
	}
	for i, j := 0, len(finalizedChain)-1; i < j; i, j = i+1, j-1 {
		finalizedChain[i], finalizedChain[j] = finalizedChain[j], finalizedChain[i]
	}

	type idxEntry struct {
		idx rtypes.Slot
		id  Id
	}
	skip := make(map[Id]struct{}, len(finalizedChain)+2)
	skip[t.finalized.Id] = struct{}{}
	skip[newFinalizedId] = struct{}{}
	for _, id := range finalizedChain {
		skip[id] = struct{}{}
	}

	rest := make([]idxEntry, 0, len(t.entries))
	for id, e := range t.entries {
		if _, ok := skip[id]; ok {
			continue
		}
		rest = append(rest, idxEntry{e.Index, id})
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].idx < rest[j].idx })

	newTracker := NewUnfinalizedTracker[Id](newFinalized)
	var pruned []Id
	for _, re := range rest {
		e := t.entries[re.id]
		res := newTracker.Attach(e)
		if res.Kind != AttachAttached && res.Kind != AttachExisting {
			pruned = append(pruned, re.id)
		}
	}

	*t = *newTracker
	return PruneReport[Id]{Finalized: finalizedChain, Pruned: pruned}, nil
}
