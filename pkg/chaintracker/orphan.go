// Copyright 2025 Alpen Labs

package chaintracker

import "github.com/alpenlabs/alpen-rollup/pkg/rtypes"

// OrphanTracker buffers entries whose parent is not yet known,
// indexed by parent id for cascading re-attachment and by id for
// O(1) membership/removal.
type OrphanTracker[Id comparable] struct {
	byParent map[Id]map[Id]rtypes.ItemEntry[Id]
	byId     map[Id]rtypes.ItemEntry[Id]
}

// NewOrphanTracker constructs an empty orphan buffer.
func NewOrphanTracker[Id comparable]() *OrphanTracker[Id] {
	return &OrphanTracker[Id]{
		byParent: make(map[Id]map[Id]rtypes.ItemEntry[Id]),
		byId:     make(map[Id]rtypes.ItemEntry[Id]),
	}
}

// Insert buffers entry under its parent id.
func (o *OrphanTracker[Id]) Insert(entry rtypes.ItemEntry[Id]) {
	set, ok := o.byParent[entry.ParentId]
	if !ok {
		set = make(map[Id]rtypes.ItemEntry[Id])
		o.byParent[entry.ParentId] = set
	}
	set[entry.Id] = entry
	o.byId[entry.Id] = entry
}

// TakeChildren removes and returns every buffered entry whose parent
// is parentId.
func (o *OrphanTracker[Id]) TakeChildren(parentId Id) []rtypes.ItemEntry[Id] {
	set, ok := o.byParent[parentId]
	if !ok {
		return nil
	}
	out := make([]rtypes.ItemEntry[Id], 0, len(set))
	for id, e := range set {
		out = append(out, e)
		delete(o.byId, id)
	}
	delete(o.byParent, parentId)
	return out
}

// Contains reports whether id is currently buffered.
func (o *OrphanTracker[Id]) Contains(id Id) bool {
	_, ok := o.byId[id]
	return ok
}

// PurgeUpToIndex discards every buffered entry with index <= h,
// returning the discarded ids.
func (o *OrphanTracker[Id]) PurgeUpToIndex(h rtypes.Slot) []Id {
	var purged []Id
	for id, e := range o.byId {
		if e.Index > h {
			continue
		}
		purged = append(purged, id)
		delete(o.byId, id)
		if set, ok := o.byParent[e.ParentId]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(o.byParent, e.ParentId)
			}
		}
	}
	return purged
}
