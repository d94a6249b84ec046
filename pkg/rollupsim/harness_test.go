// Copyright 2025 Alpen Labs
//
// End-to-end scenario tests wiring csm.Transition and the fork-choice
// service the way a running node would.

package rollupsim

import (
	"context"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/alpenlabs/alpen-rollup/pkg/credrule"
	"github.com/alpenlabs/alpen-rollup/pkg/csm"
	"github.com/alpenlabs/alpen-rollup/pkg/fcm"
	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

func l1id(b byte) rtypes.L1BlockId {
	var h rtypes.Hash
	h[0] = b
	return rtypes.L1BlockId(h)
}

func signCheckpoint(t *testing.T, priv *btcec.PrivateKey, epoch rtypes.Epoch) csm.Checkpoint {
	t.Helper()
	sigHash := sha256.Sum256([]byte{byte(epoch)})
	sig, err := schnorr.Sign(priv, sigHash[:])
	if err != nil {
		t.Fatalf("sign checkpoint: %v", err)
	}
	return csm.Checkpoint{Epoch: epoch, SigHash: sigHash, Signature: sig.Serialize()}
}

func TestHarness_GenesisThroughCheckpointAndFinalization(t *testing.T) {
	priv, _ := btcec.NewPrivateKey()
	params := csm.RollupParams{
		GenesisL1Height:  100,
		L1ReorgSafeDepth: 3,
		CredRule:         credrule.SchnorrKey(priv.PubKey()),
	}
	h := NewHarness(params, nil)

	genesis := csm.L1BlockManifest{Height: 100, Blkid: l1id(1)}
	actions, err := h.Feed(genesis)
	if err != nil {
		t.Fatalf("genesis feed: %v", err)
	}
	if actions[0].Kind != csm.ActionL2Genesis {
		t.Fatalf("expected L2Genesis action, got %v", actions[0].Kind)
	}

	ckpt := signCheckpoint(t, priv, 1)
	withCkpt := csm.L1BlockManifest{
		Height:    101,
		Blkid:     l1id(2),
		PrevBlkid: l1id(1),
		Txs: []csm.L1Tx{{
			Txid:       rtypes.Hash{0x02},
			Operations: []csm.ProtocolOperation{{Kind: csm.OpCheckpoint, Checkpoint: ckpt}},
		}},
	}
	actions, err = h.Feed(withCkpt)
	if err != nil {
		t.Fatalf("checkpoint feed: %v", err)
	}
	sawInclusion := false
	for _, a := range actions {
		if a.Kind == csm.ActionUpdateCheckpointInclusion {
			sawInclusion = true
		}
	}
	if !sawInclusion {
		t.Error("expected a checkpoint-inclusion action")
	}

	// Advance past the reorg-safe depth so the checkpointed block is
	// buried and its epoch finalizes.
	prev := l1id(2)
	for height := rtypes.Height(102); height <= 104; height++ {
		manifest := csm.L1BlockManifest{Height: height, Blkid: l1id(byte(height)), PrevBlkid: prev}
		actions, err = h.Feed(manifest)
		if err != nil {
			t.Fatalf("feed height %d: %v", height, err)
		}
		prev = manifest.Blkid
	}

	state := h.ClientState()
	if state.LastFinalized == nil || state.LastFinalized.Epoch != 1 {
		t.Errorf("expected epoch 1 finalized, got %+v", state.LastFinalized)
	}
	if state.DeclaredFinalEpoch != 1 {
		t.Errorf("expected declared final epoch 1, got %d", state.DeclaredFinalEpoch)
	}
}

func TestHarness_ForkChoiceServiceAcceptsNewBlock(t *testing.T) {
	genesis := fcm.OLBlock{Slot: 0, Id: rtypes.OLBlockId{0x00}}
	svc, store := NewForkChoiceService(genesis, 100)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	child := fcm.OLBlock{Slot: 1, Id: rtypes.OLBlockId{0x01}, ParentId: genesis.Id}
	store.Put(child)
	if err := svc.SubmitNewBlock(ctx, child.Id); err != nil {
		t.Fatalf("submit: %v", err)
	}
}
