package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/Black-Zeus/minuet-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPrincipals implements only the methods the state machine touches.
type stubPrincipals struct {
	auth.Principals

	updated   []auth.EntityStatus
	updateErr error
}

func (s *stubPrincipals) UpdateStatus(ctx context.Context, id uuid.UUID, status auth.EntityStatus) (*auth.Principal, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	s.updated = append(s.updated, status)
	return &auth.Principal{ID: id, Status: status}, nil
}

func TestPrincipalStateMachine_Transition(t *testing.T) {
	actor := auth.ActorRef{ID: uuid.NewString(), Type: "admin"}

	t.Run("active to deactivated", func(t *testing.T) {
		repo := &stubPrincipals{}
		sm := auth.NewPrincipalStateMachine(repo)

		principal := &auth.Principal{ID: uuid.New(), Status: auth.StatusActive}
		updated, err := sm.Transition(context.Background(), actor, principal, auth.StatusDeactivated)
		require.NoError(t, err)
		assert.Equal(t, auth.StatusDeactivated, updated.Status)
		assert.Equal(t, []auth.EntityStatus{auth.StatusDeactivated}, repo.updated)
	})

	t.Run("deactivated back to active", func(t *testing.T) {
		repo := &stubPrincipals{}
		sm := auth.NewPrincipalStateMachine(repo)

		principal := &auth.Principal{ID: uuid.New(), Status: auth.StatusDeactivated}
		updated, err := sm.Transition(context.Background(), actor, principal, auth.StatusActive)
		require.NoError(t, err)
		assert.Equal(t, auth.StatusActive, updated.Status)
	})

	t.Run("deleting stamps deleted_at", func(t *testing.T) {
		repo := &stubPrincipals{}
		frozen := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		sm := auth.NewPrincipalStateMachine(repo, auth.WithStateMachineClock(func() time.Time { return frozen }))

		principal := &auth.Principal{ID: uuid.New(), Status: auth.StatusActive}
		updated, err := sm.Transition(context.Background(), actor, principal, auth.StatusDeleted)
		require.NoError(t, err)
		assert.Equal(t, auth.StatusDeleted, updated.Status)
		require.NotNil(t, updated.DeletedAt)
		assert.Equal(t, frozen, *updated.DeletedAt)
	})

	t.Run("deleted is terminal", func(t *testing.T) {
		repo := &stubPrincipals{}
		sm := auth.NewPrincipalStateMachine(repo)

		principal := &auth.Principal{ID: uuid.New(), Status: auth.StatusDeleted}
		_, err := sm.Transition(context.Background(), actor, principal, auth.StatusActive)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrTerminalState)
		assert.Empty(t, repo.updated, "terminal rejection should not touch the store")
	})

	t.Run("force overrides terminal state", func(t *testing.T) {
		repo := &stubPrincipals{}
		sm := auth.NewPrincipalStateMachine(repo)

		principal := &auth.Principal{ID: uuid.New(), Status: auth.StatusDeleted}
		updated, err := sm.Transition(context.Background(), actor, principal, auth.StatusActive, auth.WithForceTransition())
		require.NoError(t, err)
		assert.Equal(t, auth.StatusActive, updated.Status)
	})

	t.Run("invalid target status", func(t *testing.T) {
		sm := auth.NewPrincipalStateMachine(&stubPrincipals{})

		principal := &auth.Principal{ID: uuid.New(), Status: auth.StatusActive}
		_, err := sm.Transition(context.Background(), actor, principal, auth.EntityStatus("archived"))
		assert.ErrorIs(t, err, auth.ErrInvalidTransition)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		repo := &stubPrincipals{}
		sm := auth.NewPrincipalStateMachine(repo)

		principal := &auth.Principal{ID: uuid.New(), Status: auth.StatusActive}
		updated, err := sm.Transition(context.Background(), actor, principal, auth.StatusActive)
		require.NoError(t, err)
		assert.Same(t, principal, updated)
		assert.Empty(t, repo.updated)
	})

	t.Run("nil principal", func(t *testing.T) {
		sm := auth.NewPrincipalStateMachine(&stubPrincipals{})
		_, err := sm.Transition(context.Background(), actor, nil, auth.StatusDeleted)
		assert.ErrorIs(t, err, auth.ErrInvalidTransition)
	})
}

func TestPrincipalStateMachine_EmitsAuditEvent(t *testing.T) {
	var events []auth.AuditEvent
	sink := auth.AuditSinkFunc(func(ctx context.Context, event auth.AuditEvent) error {
		events = append(events, event)
		return nil
	})

	repo := &stubPrincipals{}
	sm := auth.NewPrincipalStateMachine(repo, auth.WithStateMachineAuditSink(sink))

	actor := auth.ActorRef{ID: uuid.NewString(), Type: "admin"}
	principal := &auth.Principal{ID: uuid.New(), Status: auth.StatusActive}

	_, err := sm.Transition(context.Background(), actor, principal, auth.StatusDeactivated,
		auth.WithTransitionReason("policy violation"),
		auth.WithTransitionMetadata(map[string]any{"ticket": "SEC-1042"}),
	)
	require.NoError(t, err)

	require.Len(t, events, 1)
	event := events[0]
	assert.Equal(t, auth.AuditActionStatusChanged, event.Action)
	assert.Equal(t, "principal", event.EntityType)
	assert.Equal(t, principal.ID.String(), event.EntityID)
	assert.Equal(t, actor, event.Actor)
	assert.Equal(t, "active", event.Details["from"])
	assert.Equal(t, "deactivated", event.Details["to"])
	assert.Equal(t, "policy violation", event.Details["reason"])
	assert.Equal(t, "SEC-1042", event.Details["ticket"])
}

func TestPrincipalStateMachine_CurrentStatus(t *testing.T) {
	sm := auth.NewPrincipalStateMachine(&stubPrincipals{})

	assert.Equal(t, auth.EntityStatus(""), sm.CurrentStatus(nil))
	assert.Equal(t, auth.StatusActive, sm.CurrentStatus(&auth.Principal{}))
	assert.Equal(t, auth.StatusDeactivated, sm.CurrentStatus(&auth.Principal{Status: auth.StatusDeactivated}))
}
