// Copyright 2025 Alpen Labs
//
// Package prover implements the proving task tracker: per-(context,
// VM) task state machines with dependency resolution and bounded
// transient-failure retries. All mutation is serialized behind a
// single mutex; an external polling task drives retries and timeouts
// by scanning GetRetriableTasks/GetWaitingForDependenciesTasks.
package prover

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

var (
	ErrTaskAlreadyFound  = errors.New("prover: task already exists")
	ErrTaskNotFound      = errors.New("prover: task not found")
	ErrInvalidTransition = errors.New("prover: invalid status transition")
)

// ZkVm names a configured proving backend.
type ZkVm int

const (
	ZkVmGnark ZkVm = iota
	ZkVmNative
)

func (v ZkVm) String() string {
	switch v {
	case ZkVmGnark:
		return "gnark"
	case ZkVmNative:
		return "native"
	default:
		return "unknown"
	}
}

// ProofContext identifies what is being proven — an epoch checkpoint,
// an L1-manifest range, or similar content-addressed target.
type ProofContext rtypes.Hash

// ProofKey uniquely identifies a proving task: a context proven by a
// specific VM backend.
type ProofKey struct {
	Context ProofContext
	Vm      ZkVm
}

func (k ProofKey) String() string {
	return fmt.Sprintf("%s/%s", rtypes.Hash(k.Context), k.Vm)
}

// Status is a task's persisted state.
type Status int

const (
	StatusWaitingForDependencies Status = iota
	StatusPending
	StatusProvingInProgress
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusWaitingForDependencies:
		return "WaitingForDependencies"
	case StatusPending:
		return "Pending"
	case StatusProvingInProgress:
		return "ProvingInProgress"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Event is a status-update request fed to UpdateStatus. TransientFailure
// is not itself a persisted Status — it resolves to either Pending
// (retry) or Failed (retries exhausted).
type Event int

const (
	EventProvingInProgress Event = iota
	EventCompleted
	EventTransientFailure
	EventFailed
)

// ProofDB reports whether a dependency's proof already exists, so
// CreateTasks can drop already-satisfied dependencies.
type ProofDB interface {
	IsCompleted(key ProofKey) bool
}

// TaskTracker tracks proving tasks across all configured VMs, guarded
// by a single mutex per spec.md §5.
type TaskTracker struct {
	mu sync.Mutex

	vms []ZkVm

	tasks             map[ProofKey]Status
	pendingDeps       map[ProofKey]map[ProofKey]struct{}
	dependents        map[ProofKey]map[ProofKey]struct{}
	transientFailures map[ProofKey]int
	inProgressTasks   map[ZkVm]int

	logger *log.Logger
}

// NewTaskTracker builds a tracker that creates one task per context
// across the given VM backends.
func NewTaskTracker(vms []ZkVm, logger *log.Logger) *TaskTracker {
	if logger == nil {
		logger = log.New(os.Stdout, "[Prover] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &TaskTracker{
		vms:               append([]ZkVm{}, vms...),
		tasks:             make(map[ProofKey]Status),
		pendingDeps:       make(map[ProofKey]map[ProofKey]struct{}),
		dependents:        make(map[ProofKey]map[ProofKey]struct{}),
		transientFailures: make(map[ProofKey]int),
		inProgressTasks:   make(map[ZkVm]int),
		logger:            logger,
	}
}

// CreateTasks creates one task per configured VM for ctx, dropping any
// dep already completed in db. A task starts Pending if it has no
// remaining dependencies, else WaitingForDependencies.
func (t *TaskTracker) CreateTasks(ctx ProofContext, deps []ProofKey, db ProofDB) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, vm := range t.vms {
		key := ProofKey{Context: ctx, Vm: vm}
		if _, exists := t.tasks[key]; exists {
			return fmt.Errorf("%w: %s", ErrTaskAlreadyFound, key)
		}
	}

	for _, vm := range t.vms {
		key := ProofKey{Context: ctx, Vm: vm}

		pending := make(map[ProofKey]struct{})
		for _, dep := range deps {
			if db.IsCompleted(dep) {
				continue
			}
			pending[dep] = struct{}{}
			if t.dependents[dep] == nil {
				t.dependents[dep] = make(map[ProofKey]struct{})
			}
			t.dependents[dep][key] = struct{}{}
		}

		if len(pending) == 0 {
			t.tasks[key] = StatusPending
		} else {
			t.tasks[key] = StatusWaitingForDependencies
			t.pendingDeps[key] = pending
		}
	}
	return nil
}

func validateTransition(cur Status, ev Event) error {
	switch ev {
	case EventProvingInProgress:
		if cur != StatusPending {
			return fmt.Errorf("%w: %s -> ProvingInProgress", ErrInvalidTransition, cur)
		}
	case EventCompleted:
		if cur != StatusProvingInProgress {
			return fmt.Errorf("%w: %s -> Completed", ErrInvalidTransition, cur)
		}
	case EventTransientFailure:
		if cur != StatusProvingInProgress {
			return fmt.Errorf("%w: %s -> TransientFailure", ErrInvalidTransition, cur)
		}
	case EventFailed:
		if cur == StatusCompleted || cur == StatusFailed {
			return fmt.Errorf("%w: %s -> Failed", ErrInvalidTransition, cur)
		}
	default:
		return fmt.Errorf("prover: unknown event %v", ev)
	}
	return nil
}

// UpdateStatus applies ev to key's task, validating the transition and
// cascading dependency resolution/failure to dependent tasks.
func (t *TaskTracker) UpdateStatus(key ProofKey, ev Event, maxRetry int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.tasks[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, key)
	}
	if err := validateTransition(cur, ev); err != nil {
		return err
	}

	switch ev {
	case EventProvingInProgress:
		t.tasks[key] = StatusProvingInProgress
		t.inProgressTasks[key.Vm]++

	case EventCompleted:
		t.tasks[key] = StatusCompleted
		t.inProgressTasks[key.Vm]--
		t.resolveDependents(key)
		delete(t.pendingDeps, key)
		delete(t.transientFailures, key)
		delete(t.dependents, key)

	case EventTransientFailure:
		t.inProgressTasks[key.Vm]--
		count := t.transientFailures[key]
		if count >= maxRetry {
			t.tasks[key] = StatusFailed
			delete(t.transientFailures, key)
			t.failDependents(key)
		} else {
			t.transientFailures[key] = count + 1
			t.tasks[key] = StatusPending
		}

	case EventFailed:
		t.tasks[key] = StatusFailed
		delete(t.transientFailures, key)
		t.failDependents(key)
	}
	return nil
}

// resolveDependents removes key from every dependent's pending set,
// promoting a dependent to Pending once its set empties.
func (t *TaskTracker) resolveDependents(key ProofKey) {
	for dependent := range t.dependents[key] {
		set, ok := t.pendingDeps[dependent]
		if !ok {
			continue
		}
		delete(set, key)
		if len(set) == 0 {
			delete(t.pendingDeps, dependent)
			if t.tasks[dependent] == StatusWaitingForDependencies {
				t.tasks[dependent] = StatusPending
			}
		}
	}
}

// failDependents recursively transitions every dependent whose pending
// set contained key to Failed.
func (t *TaskTracker) failDependents(key ProofKey) {
	for dependent := range t.dependents[key] {
		set, waiting := t.pendingDeps[dependent]
		if !waiting {
			continue
		}
		if _, contains := set[key]; !contains {
			continue
		}
		if t.tasks[dependent] == StatusFailed {
			continue
		}
		t.tasks[dependent] = StatusFailed
		delete(t.pendingDeps, dependent)
		delete(t.transientFailures, dependent)
		t.failDependents(dependent)
	}
}

// GetRetriableTasks returns every task currently Pending — ready for
// the polling task to submit or resubmit to its VM.
func (t *TaskTracker) GetRetriableTasks() []ProofKey {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []ProofKey
	for key, status := range t.tasks {
		if status == StatusPending {
			out = append(out, key)
		}
	}
	return out
}

// GetWaitingForDependenciesTasks returns every task still blocked on
// at least one unresolved dependency.
func (t *TaskTracker) GetWaitingForDependenciesTasks() []ProofKey {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []ProofKey
	for key, status := range t.tasks {
		if status == StatusWaitingForDependencies {
			out = append(out, key)
		}
	}
	return out
}

// Status reports a task's current status.
func (t *TaskTracker) Status(key ProofKey) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.tasks[key]
	return s, ok
}
