// Copyright 2025 Alpen Labs
//
// Fork-choice Service Tests

package fcm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alpenlabs/alpen-rollup/pkg/credrule"
	"github.com/alpenlabs/alpen-rollup/pkg/csm"
	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

func olid(b byte) rtypes.OLBlockId {
	var h rtypes.Hash
	h[0] = b
	return rtypes.OLBlockId(h)
}

type memStore struct {
	mu     sync.Mutex
	blocks map[rtypes.OLBlockId]OLBlock
}

func newMemStore() *memStore { return &memStore{blocks: map[rtypes.OLBlockId]OLBlock{}} }

func (m *memStore) put(b OLBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[b.Id] = b
}

func (m *memStore) GetBlock(id rtypes.OLBlockId) (OLBlock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[id]
	return b, ok
}

type noopWorker struct{}

func (noopWorker) ExecuteBlock(ctx context.Context, block OLBlock) error { return nil }

type recordingEngine struct {
	mu        sync.Mutex
	loaded    []rtypes.OLBlockId
	rolledTo  []rtypes.OLBlockId
	finalized []rtypes.OLBlockId
}

func (e *recordingEngine) LoadTipState(ctx context.Context, id rtypes.OLBlockId) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = append(e.loaded, id)
	return nil
}
func (e *recordingEngine) RollbackTo(ctx context.Context, id rtypes.OLBlockId) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rolledTo = append(e.rolledTo, id)
	return nil
}
func (e *recordingEngine) Finalize(ctx context.Context, id rtypes.OLBlockId) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finalized = append(e.finalized, id)
	return nil
}

type uncheckedCreds struct{}

func (uncheckedCreds) CredRuleFor(slot rtypes.Slot) credrule.CredRule { return credrule.Unchecked() }

type recordingPublisher struct {
	mu       sync.Mutex
	statuses []ChainSyncStatus
}

func (p *recordingPublisher) Publish(s ChainSyncStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, s)
}

func (p *recordingPublisher) last() (ChainSyncStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.statuses) == 0 {
		return ChainSyncStatus{}, false
	}
	return p.statuses[len(p.statuses)-1], true
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestService_ExtendAppliesLoadTipState(t *testing.T) {
	genesis := OLBlock{Slot: 0, Id: olid(0)}
	store := newMemStore()
	store.put(genesis)
	engine := &recordingEngine{}
	publisher := &recordingPublisher{}
	svc := NewService(genesis, store, noopWorker{}, engine, uncheckedCreds{}, publisher, 100, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	b1 := OLBlock{Slot: 1, Id: olid(1), ParentId: olid(0)}
	store.put(b1)
	if err := svc.SubmitNewBlock(ctx, b1.Id); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, func() bool {
		status, ok := publisher.last()
		return ok && status.Tip == b1.Id
	})
}

func TestService_ReorgRollsBackWhenPivotIsEarlier(t *testing.T) {
	genesis := OLBlock{Slot: 0, Id: olid(0)}
	store := newMemStore()
	store.put(genesis)
	engine := &recordingEngine{}
	publisher := &recordingPublisher{}
	svc := NewService(genesis, store, noopWorker{}, engine, uncheckedCreds{}, publisher, 100, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	a1 := OLBlock{Slot: 1, Id: olid(1), ParentId: olid(0)}
	a2 := OLBlock{Slot: 2, Id: olid(2), ParentId: olid(1)}
	b1 := OLBlock{Slot: 1, Id: olid(3), ParentId: olid(0)}
	b2 := OLBlock{Slot: 2, Id: olid(4), ParentId: olid(3)}
	b3 := OLBlock{Slot: 3, Id: olid(5), ParentId: olid(4)}
	for _, b := range []OLBlock{a1, a2, b1, b2, b3} {
		store.put(b)
	}

	for _, id := range []rtypes.OLBlockId{a1.Id, a2.Id} {
		if err := svc.SubmitNewBlock(ctx, id); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	waitFor(t, func() bool {
		status, ok := publisher.last()
		return ok && status.Tip == a2.Id
	})

	for _, id := range []rtypes.OLBlockId{b1.Id, b2.Id, b3.Id} {
		if err := svc.SubmitNewBlock(ctx, id); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	waitFor(t, func() bool {
		status, ok := publisher.last()
		return ok && status.Tip == b3.Id
	})

	engine.mu.Lock()
	rolledTo := append([]rtypes.OLBlockId{}, engine.rolledTo...)
	engine.mu.Unlock()
	if len(rolledTo) != 1 || rolledTo[0] != genesis.Id {
		t.Errorf("expected a rollback to the pivot (genesis), got %v", rolledTo)
	}
}

func TestService_ClientStateUpdateFinalizesAndPrunes(t *testing.T) {
	genesis := OLBlock{Slot: 0, Id: olid(0)}
	store := newMemStore()
	store.put(genesis)
	engine := &recordingEngine{}
	publisher := &recordingPublisher{}
	svc := NewService(genesis, store, noopWorker{}, engine, uncheckedCreds{}, publisher, 100, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	b1 := OLBlock{Slot: 1, Id: olid(1), ParentId: olid(0)}
	store.put(b1)
	if err := svc.SubmitNewBlock(ctx, b1.Id); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, func() bool {
		status, ok := publisher.last()
		return ok && status.Tip == b1.Id
	})

	epoch := rtypes.EpochCommitment{Epoch: 1, LastSlot: 1, LastBlkid: b1.Id}
	state := csm.ClientState{LastFinalized: &epoch}
	if err := svc.SubmitClientStateUpdate(ctx, state); err != nil {
		t.Fatalf("submit client state: %v", err)
	}

	waitFor(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return len(engine.finalized) == 1 && engine.finalized[0] == b1.Id
	})
}
