package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidTransition = "INVALID_PRINCIPAL_STATE_TRANSITION"
	textCodeTerminalState     = "TERMINAL_PRINCIPAL_STATE"
)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid principal state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTerminalState is returned when attempting to move away from the deleted status.
var ErrTerminalState = goerrors.New("principal state is terminal", goerrors.CategoryConflict).
	WithTextCode(textCodeTerminalState).
	WithCode(goerrors.CodeConflict)

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// PrincipalStateMachine defines lifecycle operations for principals.
// Deactivation blocks new logins immediately; existing sessions are
// revoked through the admin-reset flow, not here.
type PrincipalStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, principal *Principal, target EntityStatus, opts ...TransitionOption) (*Principal, error)
	CurrentStatus(principal *Principal) EntityStatus
}

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithForceTransition bypasses validation rules (use sparingly).
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*principalStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *principalStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineAuditSink sets the AuditSink used to publish lifecycle events.
func WithStateMachineAuditSink(sink AuditSink) StateMachineOption {
	return func(sm *principalStateMachine) {
		sm.auditSink = normalizeAuditSink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *principalStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// NewPrincipalStateMachine returns the default implementation backed by
// the provided repository.
func NewPrincipalStateMachine(principals Principals, opts ...StateMachineOption) PrincipalStateMachine {
	sm := &principalStateMachine{
		principals: principals,
		transitions: map[EntityStatus]map[EntityStatus]struct{}{
			StatusActive: {
				StatusDeactivated: {},
				StatusDeleted:     {},
			},
			StatusDeactivated: {
				StatusActive:  {},
				StatusDeleted: {},
			},
		},
		now:       time.Now,
		auditSink: noopAuditSink{},
		logger:    defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type principalStateMachine struct {
	principals  Principals
	transitions map[EntityStatus]map[EntityStatus]struct{}
	now         func() time.Time
	auditSink   AuditSink
	logger      Logger
}

type transitionOptions struct {
	metadata TransitionMetadata
	force    bool
}

func (sm *principalStateMachine) Transition(ctx context.Context, actor ActorRef, principal *Principal, target EntityStatus, opts ...TransitionOption) (*Principal, error) {
	if principal == nil {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"target": target,
			"reason": "principal is nil",
		})
	}

	principal.EnsureStatus()
	from := principal.Status

	if !target.IsValid() {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"reason": "target status is invalid",
			"target": target,
		})
	}

	if from == target {
		return principal, nil
	}

	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	if from == StatusDeleted && !options.force {
		return nil, ErrTerminalState.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	if !options.force && !sm.canTransition(from, target) {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	updated, err := sm.principals.UpdateStatus(ctx, principal.ID, target)
	if err != nil {
		return nil, err
	}

	if updated == nil {
		updated = principal
	}
	updated.Status = target
	if target == StatusDeleted && updated.DeletedAt == nil {
		now := sm.now()
		updated.DeletedAt = &now
	}

	sm.emitTransition(ctx, actor, updated, from, target, options.metadata)

	return updated, nil
}

func (sm *principalStateMachine) CurrentStatus(principal *Principal) EntityStatus {
	if principal == nil {
		return ""
	}
	principal.EnsureStatus()
	return principal.Status
}

func (sm *principalStateMachine) canTransition(from, to EntityStatus) bool {
	targets, ok := sm.transitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

func (sm *principalStateMachine) emitTransition(ctx context.Context, actor ActorRef, principal *Principal, from, to EntityStatus, meta TransitionMetadata) {
	details := map[string]any{
		"from": string(from),
		"to":   string(to),
	}
	if meta.Reason != "" {
		details["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		details[k] = v
	}

	event := AuditEvent{
		Actor:      actor,
		Action:     AuditActionStatusChanged,
		EntityType: "principal",
		EntityID:   principal.ID.String(),
		Details:    details,
		OccurredAt: sm.now(),
	}

	if err := sm.auditSink.Record(ctx, event); err != nil {
		sm.logger.Warn("audit sink record error: %v", err)
	}
}
