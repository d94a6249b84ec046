// Copyright 2025 Alpen Labs
//
// Package admin implements the L1 administration sub-protocol: a small
// set of roles, each gated by a multisig authority, that can queue
// config updates to activate after a confirmation depth, or cancel a
// queued update before it lands.
package admin

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/alpenlabs/alpen-rollup/pkg/multisig"
	"github.com/alpenlabs/alpen-rollup/pkg/rtypes"
)

// Role names the authority whose config gates a given update variant.
type Role int

const (
	RoleMultisig Role = iota
	RoleVerifyingKey
	RoleOperatorSet
	RoleSequencer
)

func (r Role) String() string {
	switch r {
	case RoleMultisig:
		return "Multisig"
	case RoleVerifyingKey:
		return "VerifyingKey"
	case RoleOperatorSet:
		return "OperatorSet"
	case RoleSequencer:
		return "Sequencer"
	default:
		return "Unknown"
	}
}

var (
	ErrUnknownRole    = errors.New("admin: unknown role")
	ErrUnknownAction  = errors.New("admin: unknown action id")
	ErrAuthFailed     = errors.New("admin: aggregated vote authentication failed")
	ErrCancelRestrict = errors.New("admin: only a queued update may be canceled")
)

// UpdateKind discriminates the action payload carried by an Update.
type UpdateKind int

const (
	UpdateKindMultisig UpdateKind = iota
	UpdateKindVerifyingKey
	UpdateKindOperatorSet
	UpdateKindSequencer
)

// UpdateAction is the administrative action payload. Exactly one of
// the payload fields is meaningful, selected by Kind — the same
// sum-type-via-struct idiom used by credrule.CredRule and forkchoice.TipUpdate.
type UpdateAction struct {
	Kind UpdateKind

	MultisigUpdate   multisig.ConfigUpdate
	VerifyingKeyData []byte
	OperatorSetData  []byte
	SequencerData    []byte
}

func (a UpdateAction) role() Role {
	switch a.Kind {
	case UpdateKindMultisig:
		return RoleMultisig
	case UpdateKindVerifyingKey:
		return RoleVerifyingKey
	case UpdateKindOperatorSet:
		return RoleOperatorSet
	case UpdateKindSequencer:
		return RoleSequencer
	default:
		return RoleMultisig
	}
}

// Action is either an Update or a Cancel of a previously queued update.
type Action struct {
	IsCancel bool
	Update   UpdateAction
	CancelID uuid.UUID
}

// QueuedUpdate is an administrative action awaiting activation.
type QueuedUpdate struct {
	ID               uuid.UUID
	Action           UpdateAction
	ActivationHeight rtypes.Height
}

// State holds per-role authorities and the pending-update queue.
type State struct {
	Authorities  map[Role]*multisig.MultisigAuthority
	Queued       []QueuedUpdate
	Committed    []QueuedUpdate
	NextUpdateID uint64

	logger *log.Logger
}

// NewState builds admin state over the given per-role authorities.
func NewState(authorities map[Role]*multisig.MultisigAuthority, logger *log.Logger) *State {
	if logger == nil {
		logger = log.New(os.Stdout, "[Admin] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &State{Authorities: authorities, logger: logger}
}

// AggregatedVote carries the authentication material for an action.
type AggregatedVote struct {
	Message []byte
	Vote    multisig.Vote
}

// HandleAction validates the vote against the action's required role
// then applies it, per spec.md §4.7.
func (s *State) HandleAction(action Action, vote AggregatedVote, currentHeight rtypes.Height, confirmationDepth rtypes.Height) error {
	var role Role
	var authority *multisig.MultisigAuthority

	if action.IsCancel {
		idx := s.findQueuedIndex(action.CancelID)
		if idx == -1 {
			return fmt.Errorf("%w: %s", ErrUnknownAction, action.CancelID)
		}
		role = s.Queued[idx].Action.role()
	} else {
		role = action.Update.role()
	}

	authority = s.Authorities[role]
	if authority == nil {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}

	ok, err := authority.Config.ValidateVote(vote.Message, vote.Vote)
	if err != nil || !ok {
		return fmt.Errorf("%w: role=%s err=%v", ErrAuthFailed, role, err)
	}

	if action.IsCancel {
		idx := s.findQueuedIndex(action.CancelID)
		if idx == -1 {
			return fmt.Errorf("%w: %s", ErrUnknownAction, action.CancelID)
		}
		s.Queued = append(s.Queued[:idx], s.Queued[idx+1:]...)
	} else if action.Update.Kind == UpdateKindSequencer {
		s.applySequencer(action.Update)
	} else {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("admin: generate update id: %w", err)
		}
		s.Queued = append(s.Queued, QueuedUpdate{
			ID:               id,
			Action:           action.Update,
			ActivationHeight: currentHeight + confirmationDepth,
		})
		s.NextUpdateID++
	}

	authority.Seqno++
	return nil
}

func (s *State) findQueuedIndex(id uuid.UUID) int {
	for i, q := range s.Queued {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// applySequencer is a placeholder for dispatch to the external
// sequencer-rotation collaborator; it never queues.
func (s *State) applySequencer(UpdateAction) {
	s.logger.Printf("sequencer update applied immediately")
}

// HandlePendingUpdates applies every queued update whose activation
// height has arrived. Per-update failures are logged and do not abort
// the remaining batch.
func (s *State) HandlePendingUpdates(currentHeight rtypes.Height) {
	remaining := s.Queued[:0]
	for _, q := range s.Queued {
		if q.ActivationHeight > currentHeight {
			remaining = append(remaining, q)
			continue
		}
		if err := s.applyQueued(q); err != nil {
			s.logger.Printf("⚠️ queued update %s failed to apply: %v", q.ID, err)
			continue
		}
		s.Committed = append(s.Committed, q)
	}
	s.Queued = remaining
}

func (s *State) applyQueued(q QueuedUpdate) error {
	switch q.Action.Kind {
	case UpdateKindMultisig:
		authority := s.Authorities[RoleMultisig]
		if authority == nil {
			return fmt.Errorf("%w: %s", ErrUnknownRole, RoleMultisig)
		}
		return authority.Config.ApplyUpdate(q.Action.MultisigUpdate)
	case UpdateKindVerifyingKey, UpdateKindOperatorSet:
		s.logger.Printf("emitting inter-protocol update for %s", q.Action.role())
		return nil
	default:
		return fmt.Errorf("admin: unexpected queued kind %v", q.Action.Kind)
	}
}
