package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Audit actions recorded by the lifecycle flows.
const (
	AuditActionLogin              = "LOGIN"
	AuditActionLoginFailure       = "LOGIN_FAILURE"
	AuditActionLogout             = "LOGOUT"
	AuditActionRefreshSession     = "REFRESH_SESSION"
	AuditActionChangePassword     = "CHANGE_PASSWORD"
	AuditActionAdminResetPassword = "CHANGE_PASSWORD_BY_ADMIN"
	AuditActionStatusChanged      = "PRINCIPAL_STATUS_CHANGED"
)

// AuditEvent captures audit-friendly information about an action.
type AuditEvent struct {
	Actor      ActorRef
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
	OccurredAt time.Time
}

// AuditSink consumes audit events. Informational events (logins, logouts)
// run best-effort; the admin reset flow treats a sink failure as a flow
// failure because the audit row is part of its contract.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// AuditSinkFunc adapts a function to the AuditSink interface.
type AuditSinkFunc func(ctx context.Context, event AuditEvent) error

// Record implements AuditSink.
func (f AuditSinkFunc) Record(ctx context.Context, event AuditEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopAuditSink struct{}

func (noopAuditSink) Record(context.Context, AuditEvent) error {
	return nil
}

func normalizeAuditSink(s AuditSink) AuditSink {
	if s == nil {
		return noopAuditSink{}
	}
	return s
}

type bunAuditSink struct {
	db bun.IDB
}

// NewBunAuditSink persists audit events into the audit_log table.
func NewBunAuditSink(db bun.IDB) AuditSink {
	return &bunAuditSink{db: db}
}

func (s *bunAuditSink) Record(ctx context.Context, event AuditEvent) error {
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	entry := &AuditEntry{
		ID:         uuid.New(),
		ActorID:    event.Actor.ID,
		ActorType:  event.Actor.Type,
		Action:     event.Action,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Details:    event.Details,
		CreatedAt:  &occurredAt,
	}

	if _, err := s.db.NewInsert().Model(entry).Exec(ctx); err != nil {
		return wrapStoreErr(err, "failed to persist audit entry")
	}

	return nil
}
