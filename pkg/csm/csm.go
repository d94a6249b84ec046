// Copyright 2025 Alpen Labs
//
// Package csm implements the client-state machine's transition
// function: a pure (ClientState, L1BlockManifest, TransitionContext,
// RollupParams) -> (ClientState, []SyncAction, error) step driven once
// per L1 block, plus checkpoint extraction and finalization tracking.
package csm

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/alpenlabs/alpen-rollup/pkg/credrule"
	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

var ErrHistoricalStateUnavailable = errors.New("csm: historical client state unavailable for reorg base")

// CheckpointL1Ref pins a checkpoint to the L1 transaction that carried it.
type CheckpointL1Ref struct {
	Commitment rtypes.L1BlockCommitment
	Txid       rtypes.Hash
	Wtxid      rtypes.Hash
}

// Checkpoint is a signed batch of L2 state-root transitions anchored
// on L1. The proof payload itself is outside this kernel's scope.
type Checkpoint struct {
	Epoch     rtypes.Epoch
	SigHash   [32]byte
	Signature []byte
}

// L1Checkpoint pairs an accepted checkpoint with its L1 reference.
type L1Checkpoint struct {
	Checkpoint Checkpoint
	L1Ref      CheckpointL1Ref
}

// ProtocolOperationKind discriminates envelope payload operations.
type ProtocolOperationKind int

const (
	OpCheckpoint ProtocolOperationKind = iota
)

// ProtocolOperation is a single decoded operation from an L1Tx's
// envelope payload.
type ProtocolOperation struct {
	Kind       ProtocolOperationKind
	Checkpoint Checkpoint
}

// L1Tx is an L1 transaction carrying zero or more protocol operations.
type L1Tx struct {
	Txid       rtypes.Hash
	Wtxid      rtypes.Hash
	Operations []ProtocolOperation
}

// L1BlockManifest is the subset of an L1 block the transition function needs.
type L1BlockManifest struct {
	Height    rtypes.Height
	Blkid     rtypes.L1BlockId
	PrevBlkid rtypes.L1BlockId
	Txs       []L1Tx
}

// RollupParams configures transition behavior.
type RollupParams struct {
	GenesisL1Height  rtypes.Height
	L1ReorgSafeDepth rtypes.Height
	CredRule         credrule.CredRule
}

// ClientState is the rollup's view of consensus progress as of a
// given L1 block.
type ClientState struct {
	TipHeight          rtypes.Height
	TipBlkid           rtypes.L1BlockId
	LastCheckpoint     *L1Checkpoint
	LastFinalized      *rtypes.EpochCommitment
	DeclaredFinalEpoch rtypes.Epoch
}

// CheckpointVerifier validates a checkpoint's proof and state-root
// continuity against the previous checkpoint.
type CheckpointVerifier interface {
	VerifyCheckpoint(ckpt Checkpoint, prev *Checkpoint, params RollupParams) error
}

// TransitionContext is the named external collaborator for historical
// client-state and manifest lookups needed by reorg handling and the
// finalization window.
type TransitionContext interface {
	CheckpointVerifier
	ClientStateAt(height rtypes.Height, blkid rtypes.L1BlockId) (ClientState, bool)
	ManifestAt(height rtypes.Height) (L1BlockManifest, bool)
}

// SyncActionKind discriminates the actions emitted by Transition.
type SyncActionKind int

const (
	ActionL2Genesis SyncActionKind = iota
	ActionUpdateCheckpointInclusion
	ActionFinalizeEpoch
	ActionWriteClientState
)

func (k SyncActionKind) String() string {
	switch k {
	case ActionL2Genesis:
		return "L2Genesis"
	case ActionUpdateCheckpointInclusion:
		return "UpdateCheckpointInclusion"
	case ActionFinalizeEpoch:
		return "FinalizeEpoch"
	case ActionWriteClientState:
		return "WriteClientState"
	default:
		return "Unknown"
	}
}

// SyncAction is a single emitted side effect of a client-state transition.
type SyncAction struct {
	Kind            SyncActionKind
	GenesisBlkid    rtypes.OLBlockId
	Checkpoint      *L1Checkpoint
	EpochCommitment *rtypes.EpochCommitment
	ClientState     *ClientState
}

var defaultLogger = log.New(os.Stdout, "[CSM] ", log.LstdFlags|log.Lmicroseconds)

// Transition runs a single L1-block step of the client-state machine
// per spec.md §4.5, rules 1-6.
func Transition(
	cur ClientState,
	curCommitment rtypes.L1BlockCommitment,
	next L1BlockManifest,
	ctx TransitionContext,
	params RollupParams,
) (ClientState, []SyncAction, error) {
	// Rule 1: pre-horizon.
	if next.Height < params.GenesisL1Height {
		return cur, nil, nil
	}

	// Rule 2: genesis.
	if next.Height == params.GenesisL1Height {
		state := ClientState{TipHeight: next.Height, TipBlkid: next.Blkid}
		return state, []SyncAction{
			{Kind: ActionL2Genesis, GenesisBlkid: rtypes.OLBlockId(next.Blkid)},
			{Kind: ActionWriteClientState, ClientState: &state},
		}, nil
	}

	// Rule 3: actualization.
	base := cur
	switch {
	case next.Height < curCommitment.Height+1:
		loaded, ok := ctx.ClientStateAt(next.Height-1, rtypes.L1BlockId(next.PrevBlkid))
		if !ok {
			return cur, nil, fmt.Errorf("%w: height=%d prev=%s", ErrHistoricalStateUnavailable, next.Height-1, next.PrevBlkid)
		}
		base = loaded
	case next.Height > curCommitment.Height+1:
		panic(fmt.Sprintf("csm: bookkeeping invariant broken: next.height=%d cur.height=%d", next.Height, curCommitment.Height))
	}

	state := base
	state.TipHeight = next.Height
	state.TipBlkid = next.Blkid

	var actions []SyncAction

	// Rule 4: finalization window.
	if next.Height >= params.L1ReorgSafeDepth {
		buriedHeight := next.Height - params.L1ReorgSafeDepth
		if manifest, ok := ctx.ManifestAt(buriedHeight); ok {
			if buriedState, ok := ctx.ClientStateAt(manifest.Height, manifest.Blkid); ok && buriedState.LastCheckpoint != nil {
				epoch := rtypes.EpochCommitment{Epoch: buriedState.LastCheckpoint.Checkpoint.Epoch}
				state.LastFinalized = &epoch
			}
		}
	}

	// Rule 5: checkpoint extraction.
	for _, tx := range next.Txs {
		for _, op := range tx.Operations {
			if op.Kind != OpCheckpoint {
				continue
			}
			ckpt := op.Checkpoint

			ok, err := params.CredRule.Verify(ckpt.SigHash, ckpt.Signature)
			if err != nil || !ok {
				defaultLogger.Printf("⚠️ checkpoint signature rejected: epoch=%d err=%v", ckpt.Epoch, err)
				continue
			}

			var prev *Checkpoint
			if state.LastCheckpoint != nil {
				prev = &state.LastCheckpoint.Checkpoint
			}
			if err := ctx.VerifyCheckpoint(ckpt, prev, params); err != nil {
				defaultLogger.Printf("⚠️ checkpoint rejected: epoch=%d err=%v", ckpt.Epoch, err)
				continue
			}

			l1Checkpoint := L1Checkpoint{
				Checkpoint: ckpt,
				L1Ref: CheckpointL1Ref{
					Commitment: rtypes.L1BlockCommitment{Height: next.Height, Blkid: next.Blkid},
					Txid:       tx.Txid,
					Wtxid:      tx.Wtxid,
				},
			}
			state.LastCheckpoint = &l1Checkpoint
			actions = append(actions, SyncAction{Kind: ActionUpdateCheckpointInclusion, Checkpoint: &l1Checkpoint})
		}
	}

	// Rule 6: epoch declaration.
	if state.LastFinalized != nil && state.LastFinalized.Epoch > state.DeclaredFinalEpoch {
		state.DeclaredFinalEpoch = state.LastFinalized.Epoch
		actions = append(actions, SyncAction{Kind: ActionFinalizeEpoch, EpochCommitment: state.LastFinalized})
	}

	actions = append(actions, SyncAction{Kind: ActionWriteClientState, ClientState: &state})

	return state, actions, nil
}
