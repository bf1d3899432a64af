package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EntityStatus is the single lifecycle marker shared by every entity.
// It replaces the usual active-boolean plus soft-delete pair so
// deleted-but-active combinations cannot exist.
type EntityStatus string

const (
	StatusActive      EntityStatus = "active"
	StatusDeactivated EntityStatus = "deactivated"
	StatusDeleted     EntityStatus = "deleted"
)

// IsValid checks the status is one of the three lifecycle states.
func (s EntityStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusDeactivated, StatusDeleted:
		return true
	default:
		return false
	}
}

// Principal is an authenticatable identity. Rows are never physically
// deleted; deletion is the terminal lifecycle state plus an audit stamp.
type Principal struct {
	bun.BaseModel     `bun:"table:principals,alias:prn"`
	ID                uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username          string       `bun:"username,notnull,unique" json:"username,omitempty"`
	Email             string       `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash      string       `bun:"password_hash,notnull" json:"-"`
	Status            EntityStatus `bun:"status,notnull,default:'active'" json:"status,omitempty"`
	LastLoginAt       *time.Time   `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	PasswordChangedAt *time.Time   `bun:"password_changed_at,nullzero" json:"password_changed_at,omitempty"`
	CreatedAt         *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time   `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt         *time.Time   `bun:"deleted_at,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus backfills the zero value for rows created before the
// status column existed.
func (p *Principal) EnsureStatus() {
	if p.Status == "" {
		p.Status = StatusActive
	}
}

// Role is a named permission bundle.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Code          string       `bun:"code,notnull,unique" json:"code,omitempty"`
	Name          string       `bun:"name" json:"name,omitempty"`
	Status        EntityStatus `bun:"status,notnull,default:'active'" json:"status,omitempty"`
	CreatedAt     *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time   `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Permission is an atomic capability code, e.g. "records:write".
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:prm"`
	ID            uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Code          string       `bun:"code,notnull,unique" json:"code,omitempty"`
	Description   string       `bun:"description" json:"description,omitempty"`
	Status        EntityStatus `bun:"status,notnull,default:'active'" json:"status,omitempty"`
	CreatedAt     *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// PrincipalRole assigns a role to a principal. The assignment carries its
// own lifecycle and audit trail so grants can be revoked without losing
// history.
type PrincipalRole struct {
	bun.BaseModel `bun:"table:principal_roles,alias:prl"`
	ID            uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	PrincipalID   uuid.UUID    `bun:"principal_id,notnull,type:uuid" json:"principal_id,omitempty"`
	RoleID        uuid.UUID    `bun:"role_id,notnull,type:uuid" json:"role_id,omitempty"`
	Status        EntityStatus `bun:"status,notnull,default:'active'" json:"status,omitempty"`
	GrantedBy     string       `bun:"granted_by" json:"granted_by,omitempty"`
	GrantedAt     *time.Time   `bun:"granted_at,nullzero,default:current_timestamp" json:"granted_at,omitempty"`
	RevokedBy     string       `bun:"revoked_by" json:"revoked_by,omitempty"`
	RevokedAt     *time.Time   `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
}

// RolePermission assigns a permission to a role, audited the same way.
type RolePermission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rpm"`
	ID            uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	RoleID        uuid.UUID    `bun:"role_id,notnull,type:uuid" json:"role_id,omitempty"`
	PermissionID  uuid.UUID    `bun:"permission_id,notnull,type:uuid" json:"permission_id,omitempty"`
	Status        EntityStatus `bun:"status,notnull,default:'active'" json:"status,omitempty"`
	GrantedBy     string       `bun:"granted_by" json:"granted_by,omitempty"`
	GrantedAt     *time.Time   `bun:"granted_at,nullzero,default:current_timestamp" json:"granted_at,omitempty"`
	RevokedBy     string       `bun:"revoked_by" json:"revoked_by,omitempty"`
	RevokedAt     *time.Time   `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
}

// SessionRecord is the durable row written for every issued token. Rows
// are never deleted; logout and revocation only stamp LoggedOutAt. The
// record's id doubles as the session id embedded in the token.
type SessionRecord struct {
	bun.BaseModel `bun:"table:session_records,alias:ssn"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	PrincipalID   uuid.UUID  `bun:"principal_id,notnull,type:uuid" json:"principal_id,omitempty"`
	IP            string     `bun:"ip" json:"ip,omitempty"`
	UserAgent     string     `bun:"user_agent" json:"user_agent,omitempty"`
	DeviceSummary string     `bun:"device_summary" json:"device_summary,omitempty"`
	GeoCity       string     `bun:"geo_city" json:"geo_city,omitempty"`
	GeoCountry    string     `bun:"geo_country" json:"geo_country,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	LoggedOutAt   *time.Time `bun:"logged_out_at,nullzero" json:"logged_out_at,omitempty"`
}

// Active reports whether the session has not been closed. Registry
// presence, not this flag, gates token validity; this is the durable view
// used for bulk revocation.
func (s *SessionRecord) Active() bool {
	return s.LoggedOutAt == nil
}

// AuditEntry is one row in the privileged-operation audit trail.
type AuditEntry struct {
	bun.BaseModel `bun:"table:audit_log,alias:aud"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ActorID       string         `bun:"actor_id" json:"actor_id,omitempty"`
	ActorType     string         `bun:"actor_type" json:"actor_type,omitempty"`
	Action        string         `bun:"action,notnull" json:"action,omitempty"`
	EntityType    string         `bun:"entity_type" json:"entity_type,omitempty"`
	EntityID      string         `bun:"entity_id" json:"entity_id,omitempty"`
	Details       map[string]any `bun:"details,type:jsonb" json:"details,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
