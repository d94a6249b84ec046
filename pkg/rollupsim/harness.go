// Copyright 2025 Alpen Labs
//
// Package rollupsim wires the consensus-kernel packages (csm, fcm,
// chaintracker, forkchoice, credrule) into an in-memory harness for
// end-to-end scenario testing, without any real L1 or execution-engine
// backend. It mirrors the teacher's main.go wiring phases, condensed
// to the kernel's own surface.
package rollupsim

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/alpenlabs/alpen-rollup/pkg/credrule"
	"github.com/alpenlabs/alpen-rollup/pkg/csm"
	"github.com/alpenlabs/alpen-rollup/pkg/fcm"
	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

// memTransitionContext is an in-memory csm.TransitionContext backed by
// maps, recording every client state and manifest the harness has seen
// so reorg-rebase and finalization-window lookups resolve locally.
type memTransitionContext struct {
	mu        sync.Mutex
	states    map[rtypes.Height]map[rtypes.L1BlockId]csm.ClientState
	manifests map[rtypes.Height]csm.L1BlockManifest
}

func newMemTransitionContext() *memTransitionContext {
	return &memTransitionContext{
		states:    map[rtypes.Height]map[rtypes.L1BlockId]csm.ClientState{},
		manifests: map[rtypes.Height]csm.L1BlockManifest{},
	}
}

func (m *memTransitionContext) record(manifest csm.L1BlockManifest, state csm.ClientState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifests[manifest.Height] = manifest
	if m.states[manifest.Height] == nil {
		m.states[manifest.Height] = map[rtypes.L1BlockId]csm.ClientState{}
	}
	m.states[manifest.Height][manifest.Blkid] = state
}

func (m *memTransitionContext) ClientStateAt(height rtypes.Height, blkid rtypes.L1BlockId) (csm.ClientState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byBlk, ok := m.states[height]
	if !ok {
		return csm.ClientState{}, false
	}
	state, ok := byBlk[blkid]
	return state, ok
}

func (m *memTransitionContext) ManifestAt(height rtypes.Height) (csm.L1BlockManifest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	manifest, ok := m.manifests[height]
	return manifest, ok
}

// acceptAllVerifier treats every checkpoint as structurally valid;
// harness scenarios that need to exercise rejection supply their own
// csm.CheckpointVerifier instead.
type acceptAllVerifier struct{}

func (acceptAllVerifier) VerifyCheckpoint(ckpt csm.Checkpoint, prev *csm.Checkpoint, params csm.RollupParams) error {
	return nil
}

type harnessContext struct {
	*memTransitionContext
	csm.CheckpointVerifier
}

// blockStore and engine stubs satisfying fcm.BlockStore/ExecutionEngine
// for the fork-choice service built by NewForkChoiceService.
type memBlockStore struct {
	mu     sync.Mutex
	blocks map[rtypes.OLBlockId]fcm.OLBlock
}

func newMemBlockStore() *memBlockStore {
	return &memBlockStore{blocks: map[rtypes.OLBlockId]fcm.OLBlock{}}
}

func (s *memBlockStore) Put(b fcm.OLBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[b.Id] = b
}

func (s *memBlockStore) GetBlock(id rtypes.OLBlockId) (fcm.OLBlock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[id]
	return b, ok
}

type noopEngine struct{}

func (noopEngine) LoadTipState(ctx context.Context, id rtypes.OLBlockId) error { return nil }
func (noopEngine) RollbackTo(ctx context.Context, id rtypes.OLBlockId) error   { return nil }
func (noopEngine) Finalize(ctx context.Context, id rtypes.OLBlockId) error     { return nil }

type noopWorker struct{}

func (noopWorker) ExecuteBlock(ctx context.Context, block fcm.OLBlock) error { return nil }

type noopPublisher struct{}

func (noopPublisher) Publish(fcm.ChainSyncStatus) {}

type alwaysUnchecked struct{}

func (alwaysUnchecked) CredRuleFor(slot rtypes.Slot) credrule.CredRule { return credrule.Unchecked() }

// Harness drives a sequence of L1BlockManifests through csm.Transition
// and surfaces the resulting client states and sync actions, logging
// the rollup's progress the way a node's startup banner would.
type Harness struct {
	params   csm.RollupParams
	ctx      *memTransitionContext
	verifier csm.CheckpointVerifier

	cur           csm.ClientState
	curCommitment rtypes.L1BlockCommitment

	logger *log.Logger
}

// NewHarness builds a harness rooted before genesis, ready to accept
// manifests starting at params.GenesisL1Height.
func NewHarness(params csm.RollupParams, verifier csm.CheckpointVerifier) *Harness {
	if verifier == nil {
		verifier = acceptAllVerifier{}
	}
	return &Harness{
		params:   params,
		ctx:      newMemTransitionContext(),
		verifier: verifier,
		logger:   log.New(os.Stdout, "[RollupSim] ", log.LstdFlags|log.Lmicroseconds),
	}
}

// Feed runs one L1 block manifest through the client-state transition,
// records the resulting state for future historical lookups, and
// returns the emitted sync actions.
func (h *Harness) Feed(manifest csm.L1BlockManifest) ([]csm.SyncAction, error) {
	tctx := harnessContext{memTransitionContext: h.ctx, CheckpointVerifier: h.verifier}
	next, actions, err := csm.Transition(h.cur, h.curCommitment, manifest, tctx, h.params)
	if err != nil {
		return nil, fmt.Errorf("rollupsim: transition at height %d: %w", manifest.Height, err)
	}

	h.cur = next
	h.curCommitment = rtypes.L1BlockCommitment{Height: manifest.Height, Blkid: manifest.Blkid}
	h.ctx.record(manifest, next)

	for _, action := range actions {
		switch action.Kind {
		case csm.ActionL2Genesis:
			h.logger.Printf("✅ L2 genesis declared at blkid=%x", action.GenesisBlkid)
		case csm.ActionUpdateCheckpointInclusion:
			h.logger.Printf("✅ checkpoint included: epoch=%d", action.Checkpoint.Checkpoint.Epoch)
		case csm.ActionFinalizeEpoch:
			h.logger.Printf("✅ epoch finalized: epoch=%d", action.EpochCommitment.Epoch)
		}
	}
	return actions, nil
}

// ClientState returns the harness's current view of consensus progress.
func (h *Harness) ClientState() csm.ClientState { return h.cur }

// NewForkChoiceService builds an fcm.Service around an in-memory block
// store, execution engine, and status publisher, for scenarios that
// also want to exercise the orchestration-layer fork-choice path
// alongside the L1-driven client-state machine.
func NewForkChoiceService(genesis fcm.OLBlock, limitDepth int) (*fcm.Service, *memBlockStore) {
	store := newMemBlockStore()
	store.Put(genesis)
	svc := fcm.NewService(genesis, store, noopWorker{}, noopEngine{}, alwaysUnchecked{}, noopPublisher{}, limitDepth, nil)
	return svc, store
}
