// Copyright 2025 Alpen Labs

package chaintracker

import "github.com/alpenlabs/alpen-rollup/pkg/rtypes"

// AppendResult is the outcome of ChainTracker.Append.
type AppendResult[Id comparable] struct {
	Kind AttachKind
	Tip  Id // meaningful only when Kind == AttachAttached
}

// ChainTracker composes an UnfinalizedTracker with an OrphanTracker:
// appends cascade orphan resolution, and prune_to purges both the
// finalized-side entries and any now-unreachable orphans.
type ChainTracker[Id comparable] struct {
	Unfinalized *UnfinalizedTracker[Id]
	Orphans     *OrphanTracker[Id]
}

// NewChainTracker constructs a tracker rooted at root with an empty
// orphan buffer.
func NewChainTracker[Id comparable](root rtypes.ItemEntry[Id]) *ChainTracker[Id] {
	return &ChainTracker[Id]{
		Unfinalized: NewUnfinalizedTracker[Id](root),
		Orphans:     NewOrphanTracker[Id](),
	}
}

// Append attaches item, cascading through any buffered orphans whose
// parent just became known.
func (c *ChainTracker[Id]) Append(item rtypes.ChainItem[Id]) AppendResult[Id] {
	res := c.Unfinalized.Attach(item)

	switch res.Kind {
	case AttachAttached:
		best := res.NewBest
		queue := []Id{rtypes.EntryFrom(item).Id}
		for len(queue) > 0 {
			parentId := queue[0]
			queue = queue[1:]

			children := c.Orphans.TakeChildren(parentId)
			for _, child := range children {
				cres := c.Unfinalized.Attach(child)
				if cres.Kind == AttachAttached {
					best = cres.NewBest
					queue = append(queue, child.Id)
				}
			}
		}
		return AppendResult[Id]{Kind: AttachAttached, Tip: best}

	case AttachOrphan:
		c.Orphans.Insert(rtypes.EntryFrom(item))
		return AppendResult[Id]{Kind: AttachOrphan}

	default:
		return AppendResult[Id]{Kind: res.Kind}
	}
}

// PruneTo advances the finalized root, merging any orphans purged as
// a side effect into the returned report's Pruned list.
func (c *ChainTracker[Id]) PruneTo(id Id) (PruneReport[Id], error) {
	report, err := c.Unfinalized.PruneTo(id)
	if err != nil {
		return PruneReport[Id]{}, err
	}
	purgedOrphans := c.Orphans.PurgeUpToIndex(c.Unfinalized.FinalizedIndex())
	report.Pruned = append(report.Pruned, purgedOrphans...)
	return report, nil
}

// TipId returns the current best tip id.
func (c *ChainTracker[Id]) TipId() Id {
	return c.Unfinalized.Best()
}

// CanonicalChain returns the current canonical chain.
func (c *ChainTracker[Id]) CanonicalChain() []Id {
	return c.Unfinalized.CanonicalChain()
}
