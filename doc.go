// Package auth is the session-backed authentication and authorization core
// for Minuet services. It answers "who is calling" and "what may they do"
// by combining a signed, expiring bearer token with a centrally revocable
// session registry, so logout, forced password resets, and session limits
// take effect immediately even while the token itself is still
// structurally valid.
//
// Token validity:
//   - A token authorizes access only when its signature and expiry check
//     out AND a matching entry exists in the SessionRegistry, keyed by
//     (principal id, session id). The registry entry's absence is the sole
//     revocation signal; its TTL mirrors the token expiry so abandoned
//     sessions self-clean.
//   - Role and permission codes are embedded in the token at issuance and
//     are deliberately not re-resolved per request. Refresh is the only
//     path that picks up grant changes without a full re-login.
//
// Lifecycle:
//   - Principals, roles, permissions, and their assignment rows carry a
//     single three-state EntityStatus (active, deactivated, deleted).
//     PrincipalStateMachine centralizes the transition graph and emits
//     audit events through an AuditSink.
//   - Session records are durable and never deleted; logout and
//     revocation only stamp their logged-out time.
//
// Auther composes the pieces into login, logout, refresh, validate,
// change-password, and admin-reset flows. Repositories are bun-backed;
// the registry is Redis-backed; both are injected so one connection pool
// per process is preserved without hidden globals.
package auth
