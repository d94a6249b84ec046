// Copyright 2025 Alpen Labs
//
// Package eeclient names the RPC surface the fork-choice service uses
// to drive the execution engine. It is an external collaborator: this
// package defines the contract only, wiring to an actual EVM-compatible
// execution engine is out of the kernel's scope.
package eeclient

import (
	"context"

	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

// Client is the execution-engine RPC surface. Its first three methods
// match pkg/fcm's ExecutionEngine interface; ExecuteBlock is extra.
type Client interface {
	// LoadTipState instructs the engine to adopt blockId as its tip.
	LoadTipState(ctx context.Context, blockId rtypes.OLBlockId) error
	// RollbackTo instructs the engine to roll its state back to blockId.
	RollbackTo(ctx context.Context, blockId rtypes.OLBlockId) error
	// Finalize informs the engine that blockId's state is now finalized
	// and may be pruned from its working set.
	Finalize(ctx context.Context, blockId rtypes.OLBlockId) error
	// ExecuteBlock runs the block's state transition, surfacing
	// deterministic execution failures as an error.
	ExecuteBlock(ctx context.Context, blockId rtypes.OLBlockId) error
}
