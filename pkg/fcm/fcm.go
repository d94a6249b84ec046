// Copyright 2025 Alpen Labs
//
// Package fcm implements the fork-choice service: a single-goroutine
// cooperative task that consumes NewBlock/NewClientStateUpdate events
// from a multiplexed channel, maintains the in-memory chain tracker,
// and drives the execution engine through extend/reorg/revert
// transitions. Its only state mutations happen between channel reads,
// so nothing here needs its own lock.
package fcm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/alpenlabs/alpen-rollup/pkg/chaintracker"
	"github.com/alpenlabs/alpen-rollup/pkg/credrule"
	"github.com/alpenlabs/alpen-rollup/pkg/csm"
	"github.com/alpenlabs/alpen-rollup/pkg/forkchoice"
	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

// OLBlock is the orchestration-layer block shape the service tracks.
// It implements rtypes.ChainItem so it plugs directly into chaintracker.
type OLBlock struct {
	Slot        rtypes.Slot
	Id          rtypes.OLBlockId
	ParentId    rtypes.OLBlockId
	ProposerSig []byte
	SigHash     [32]byte
}

func (b OLBlock) ItemIndex() rtypes.Slot         { return b.Slot }
func (b OLBlock) ItemId() rtypes.OLBlockId       { return b.Id }
func (b OLBlock) ItemParentId() rtypes.OLBlockId { return b.ParentId }

// BlockStatus records the outcome of validity checking a block.
type BlockStatus int

const (
	StatusUnknown BlockStatus = iota
	StatusValid
	StatusInvalid
)

// BlockStore resolves a block id to its full block.
type BlockStore interface {
	GetBlock(id rtypes.OLBlockId) (OLBlock, bool)
}

// ChainWorker executes a block's state transition. An error signals a
// deterministic execution failure (the block is marked Invalid, not
// left indeterminate).
type ChainWorker interface {
	ExecuteBlock(ctx context.Context, block OLBlock) error
}

// ExecutionEngine is the bridging RPC surface to the execution layer.
type ExecutionEngine interface {
	LoadTipState(ctx context.Context, blockId rtypes.OLBlockId) error
	RollbackTo(ctx context.Context, blockId rtypes.OLBlockId) error
	Finalize(ctx context.Context, blockId rtypes.OLBlockId) error
}

// CredRuleProvider resolves the genesis-aware signature rule for a slot.
type CredRuleProvider interface {
	CredRuleFor(slot rtypes.Slot) credrule.CredRule
}

// ChainSyncStatus is published after every applied tip update.
type ChainSyncStatus struct {
	Tip  rtypes.OLBlockId
	Slot rtypes.Slot
}

// StatusPublisher receives ChainSyncStatus updates.
type StatusPublisher interface {
	Publish(ChainSyncStatus)
}

// NewBlockEvent signals a freshly observed candidate block.
type NewBlockEvent struct{ BlockId rtypes.OLBlockId }

// NewClientStateUpdateEvent signals a new client-state snapshot,
// possibly carrying a new declared-final epoch.
type NewClientStateUpdateEvent struct{ ClientState csm.ClientState }

var ErrBlockNotFound = errors.New("fcm: block not found in store")

// Service is the fork-choice cooperative task.
type Service struct {
	tracker    *chaintracker.ChainTracker[rtypes.OLBlockId]
	store      BlockStore
	worker     ChainWorker
	engine     ExecutionEngine
	creds      CredRuleProvider
	publisher  StatusPublisher
	limitDepth int

	blockStatus         map[rtypes.OLBlockId]BlockStatus
	blockSlot           map[rtypes.OLBlockId]rtypes.Slot
	pendingFinalization []rtypes.EpochCommitment
	currentTip          rtypes.OLBlockId

	newBlocks     chan NewBlockEvent
	clientUpdates chan NewClientStateUpdateEvent

	logger *log.Logger
}

// NewService builds a fork-choice service rooted at genesis.
func NewService(
	genesis OLBlock,
	store BlockStore,
	worker ChainWorker,
	engine ExecutionEngine,
	creds CredRuleProvider,
	publisher StatusPublisher,
	limitDepth int,
	logger *log.Logger,
) *Service {
	if logger == nil {
		logger = log.New(os.Stdout, "[ForkChoice] ", log.LstdFlags|log.Lmicroseconds)
	}
	root := rtypes.ItemEntry[rtypes.OLBlockId]{Index: genesis.Slot, Id: genesis.Id, ParentId: genesis.ParentId}
	return &Service{
		tracker:       chaintracker.NewChainTracker[rtypes.OLBlockId](root),
		store:         store,
		worker:        worker,
		engine:        engine,
		creds:         creds,
		publisher:     publisher,
		limitDepth:    limitDepth,
		blockStatus:   map[rtypes.OLBlockId]BlockStatus{genesis.Id: StatusValid},
		blockSlot:     map[rtypes.OLBlockId]rtypes.Slot{genesis.Id: genesis.Slot},
		currentTip:    genesis.Id,
		newBlocks:     make(chan NewBlockEvent, 64),
		clientUpdates: make(chan NewClientStateUpdateEvent, 64),
		logger:        logger,
	}
}

// SubmitNewBlock enqueues a NewBlock input for the service loop.
func (s *Service) SubmitNewBlock(ctx context.Context, id rtypes.OLBlockId) error {
	select {
	case s.newBlocks <- NewBlockEvent{BlockId: id}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitClientStateUpdate enqueues a NewClientStateUpdate input.
func (s *Service) SubmitClientStateUpdate(ctx context.Context, state csm.ClientState) error {
	select {
	case s.clientUpdates <- NewClientStateUpdateEvent{ClientState: state}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the cooperative event loop until ctx is canceled.
// Cancellation is the only exit path, and it leaves no partial commits
// since every mutation completes before the next channel read.
func (s *Service) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.newBlocks:
			if err := s.handleNewBlock(ctx, ev.BlockId); err != nil {
				s.logger.Printf("⚠️ new block %s: %v", ev.BlockId, err)
			}
		case ev := <-s.clientUpdates:
			s.handleClientStateUpdate(ctx, ev.ClientState)
		}
	}
}

type parentLookup struct {
	tracker *chaintracker.ChainTracker[rtypes.OLBlockId]
}

func (p parentLookup) GetParent(id rtypes.OLBlockId) (rtypes.OLBlockId, bool) {
	return p.tracker.Unfinalized.GetParent(id)
}

func (s *Service) handleNewBlock(ctx context.Context, id rtypes.OLBlockId) error {
	block, ok := s.store.GetBlock(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBlockNotFound, id)
	}

	if block.Slot != 0 {
		rule := s.creds.CredRuleFor(block.Slot)
		valid, err := rule.Verify(block.SigHash, block.ProposerSig)
		if err != nil || !valid {
			s.blockStatus[id] = StatusInvalid
			return fmt.Errorf("block %s failed signature check: %v", id, err)
		}

		if err := s.worker.ExecuteBlock(ctx, block); err != nil {
			s.blockStatus[id] = StatusInvalid
			s.logger.Printf("⚠️ block %s marked invalid: %v", id, err)
			return nil
		}
	}
	s.blockStatus[id] = StatusValid
	s.blockSlot[id] = block.Slot

	item := rtypes.ItemEntry[rtypes.OLBlockId]{Index: block.Slot, Id: block.Id, ParentId: block.ParentId}
	s.tracker.Append(item)

	newBest := s.tracker.Unfinalized.Best()
	if newBest == s.currentTip {
		return nil
	}

	update, err := forkchoice.ComputeTipUpdate(s.currentTip, newBest, s.limitDepth, parentLookup{s.tracker})
	if err != nil {
		s.logger.Printf("⚠️ no tip update path found: %v", err)
		return nil
	}
	if update == nil {
		return nil
	}

	if err := s.applyTipUpdate(ctx, update); err != nil {
		return err
	}

	s.currentTip = update.NewTip
	s.publisher.Publish(ChainSyncStatus{Tip: s.currentTip, Slot: s.blockSlot[s.currentTip]})
	return nil
}

func (s *Service) applyTipUpdate(ctx context.Context, update *forkchoice.TipUpdate[rtypes.OLBlockId]) error {
	switch update.Kind {
	case forkchoice.UpdateExtend:
		return s.engine.LoadTipState(ctx, update.NewTip)
	case forkchoice.UpdateReorg:
		if s.blockSlot[update.Pivot] < s.blockSlot[s.currentTip] {
			if err := s.engine.RollbackTo(ctx, update.Pivot); err != nil {
				return err
			}
		}
		return s.engine.LoadTipState(ctx, update.NewTip)
	case forkchoice.UpdateRevert:
		return s.engine.RollbackTo(ctx, update.NewTip)
	default:
		return fmt.Errorf("fcm: unknown tip update kind %v", update.Kind)
	}
}

func (s *Service) handleClientStateUpdate(ctx context.Context, state csm.ClientState) {
	if state.LastFinalized != nil {
		s.pendingFinalization = append(s.pendingFinalization, *state.LastFinalized)
	}

	for i := len(s.pendingFinalization) - 1; i >= 0; i-- {
		epoch := s.pendingFinalization[i]
		if !s.tracker.Unfinalized.Contains(epoch.LastBlkid) {
			continue
		}
		if _, err := s.tracker.PruneTo(epoch.LastBlkid); err != nil {
			s.logger.Printf("⚠️ prune to %s failed: %v", epoch.LastBlkid, err)
			return
		}
		if err := s.engine.Finalize(ctx, epoch.LastBlkid); err != nil {
			s.logger.Printf("⚠️ execution engine finalize failed: %v", err)
		}
		s.pendingFinalization = append(s.pendingFinalization[:i], s.pendingFinalization[i+1:]...)
		return
	}
}
