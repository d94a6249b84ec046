// Copyright 2025 Alpen Labs
//
// Package l1reader names the collaborator that feeds L1 block
// manifests to the client-state machine. Wiring to a real Bitcoin
// node (RPC polling, ZMQ, or an indexer) is out of the kernel's scope.
package l1reader

import (
	"context"

	"github.com/alpenlabs/alpen-rollup/pkg/csm"
	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

// Reader supplies L1 block manifests in height order, with follow
// blocking until the next manifest is available or ctx is canceled.
type Reader interface {
	// ManifestAt fetches the manifest for a specific L1 height, used
	// for historical lookups during reorg rebasing and the
	// finalization window.
	ManifestAt(ctx context.Context, height rtypes.Height) (csm.L1BlockManifest, bool, error)
	// Follow blocks until the next L1 block after the given height is
	// available, then returns its manifest.
	Follow(ctx context.Context, afterHeight rtypes.Height) (csm.L1BlockManifest, error)
}
