package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// MinPasswordLength applies to new secrets in the change/reset flows.
var MinPasswordLength = 8

// Auther orchestrates the session lifecycle: it composes the credential
// verifier, token codec, session registry, and claims resolver into the
// login / logout / refresh / validate / change-password / admin-reset
// flows.
type Auther struct {
	repos        RepositoryManager
	registry     SessionRegistry
	resolver     ClaimsResolver
	tokens       TokenService
	passwords    PasswordAuthenticator
	audit        AuditSink
	geo          GeoLookup
	logger       Logger
	tokenTTL     time.Duration
	storeTimeout time.Duration
	adminRole    string
	issuer       string
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(repos RepositoryManager, registry SessionRegistry, resolver ClaimsResolver, cfg Config) *Auther {
	tokenService := NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		defLogger{},
	)

	return &Auther{
		repos:        repos,
		registry:     registry,
		resolver:     resolver,
		tokens:       tokenService,
		passwords:    NewCredentialVerifier(cfg.GetBcryptCost()),
		audit:        noopAuditSink{},
		geo:          noopGeoLookup{},
		logger:       defLogger{},
		tokenTTL:     cfg.GetTokenTTL(),
		storeTimeout: cfg.GetStoreTimeout(),
		adminRole:    cfg.GetAdminRoleCode(),
		issuer:       cfg.GetIssuer(),
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithAuditSink configures an AuditSink for recording auth events.
func (s *Auther) WithAuditSink(sink AuditSink) *Auther {
	s.audit = normalizeAuditSink(sink)
	return s
}

// WithGeoLookup configures the display-only IP geolocation enrichment.
func (s *Auther) WithGeoLookup(geo GeoLookup) *Auther {
	s.geo = normalizeGeoLookup(geo)
	return s
}

// WithTokenService sets a custom token codec.
func (s *Auther) WithTokenService(tokens TokenService) *Auther {
	if tokens != nil {
		s.tokens = tokens
	}
	return s
}

// WithPasswordAuthenticator sets a custom credential verifier.
func (s *Auther) WithPasswordAuthenticator(passwords PasswordAuthenticator) *Auther {
	if passwords != nil {
		s.passwords = passwords
	}
	return s
}

// TokenService returns the token codec used by this Auther.
func (s *Auther) TokenService() TokenService {
	return s.tokens
}

// storeCtx bounds a relational-store or resolver call. A hung database
// must not hold an auth flow open indefinitely; registry calls carry
// their own bound inside the registry itself.
func (s *Auther) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

// Login verifies the identifier/secret pair and opens a new session.
// Unknown identifier and wrong password produce the same error so the
// response never acts as an account oracle.
func (s *Auther) Login(ctx context.Context, identifier, secret string, conn ConnectionInfo) (*LoginResult, error) {
	sctx, cancel := s.storeCtx(ctx)
	principal, err := s.repos.Principals().GetByIdentifier(sctx, identifier)
	cancel()
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.emitAudit(ctx, AuditEvent{
				Actor:      ActorRef{Type: "unknown"},
				Action:     AuditActionLoginFailure,
				EntityType: "principal",
				Details:    map[string]any{"identifier": identifier, "reason": "unknown principal"},
			})
			return nil, ErrInvalidCredentials
		}
		return nil, wrapStoreErr(err, "failed to locate principal")
	}

	if principal.Status == StatusDeleted {
		// Deleted principals are indistinguishable from unknown ones.
		return nil, ErrInvalidCredentials
	}

	if err := s.passwords.ComparePasswordAndHash(secret, principal.PasswordHash); err != nil {
		s.emitAudit(ctx, AuditEvent{
			Actor:      actorForPrincipal(principal.ID),
			Action:     AuditActionLoginFailure,
			EntityType: "principal",
			EntityID:   principal.ID.String(),
			Details:    map[string]any{"identifier": identifier, "reason": "credential mismatch"},
		})
		return nil, ErrInvalidCredentials
	}

	// Status gates only after the secret checks out, so a probe with a
	// wrong password learns nothing about account state.
	if principal.Status != StatusActive {
		return nil, ErrPrincipalInactive
	}

	result, sessionID, err := s.openSession(ctx, principal, conn)
	if err != nil {
		return nil, err
	}

	sctx, cancel = s.storeCtx(ctx)
	if err := s.repos.Principals().TrackLogin(sctx, principal.ID); err != nil {
		s.logger.Warn("failed to update last login timestamp", "error", err)
	}
	cancel()

	s.emitAudit(ctx, AuditEvent{
		Actor:      actorForPrincipal(principal.ID),
		Action:     AuditActionLogin,
		EntityType: "session",
		EntityID:   sessionID.String(),
		Details:    map[string]any{"identifier": identifier, "ip": conn.IP},
	})

	return result, nil
}

// CurrentPrincipal resolves the caller's identity from a token. The hot
// path touches only the token payload and the registry; there is no
// relational read.
func (s *Auther) CurrentPrincipal(ctx context.Context, token string) (*PrincipalInfo, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	principalID, _ := claims.PrincipalID()
	sessionID, _ := claims.SessionID()

	ok, err := s.registry.Exists(ctx, principalID, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionClosed
	}

	return &PrincipalInfo{
		PrincipalID: principalID,
		SessionID:   sessionID,
		Claims:      claims.Snapshot(),
	}, nil
}

// ValidateToken is side-effect-free introspection. An invalid token is a
// result, not an error; only transient infrastructure failures error out.
func (s *Auther) ValidateToken(ctx context.Context, token string) (*TokenStatus, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		if IsUnauthorized(err) {
			return &TokenStatus{Valid: false}, nil
		}
		return nil, err
	}

	principalID, _ := claims.PrincipalID()
	sessionID, _ := claims.SessionID()

	ok, err := s.registry.Exists(ctx, principalID, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &TokenStatus{Valid: false}, nil
	}

	return &TokenStatus{
		Valid:       true,
		PrincipalID: principalID.String(),
		ExpiresIn:   claims.ExpiresIn(time.Now()),
	}, nil
}

// Logout closes the session carried by the token. It is idempotent: an
// invalid or already-closed token is a no-op, not an error.
func (s *Auther) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		if IsUnauthorized(err) {
			return nil
		}
		return err
	}

	principalID, _ := claims.PrincipalID()
	sessionID, _ := claims.SessionID()

	if err := s.registry.Delete(ctx, principalID, sessionID); err != nil {
		return err
	}

	sctx, cancel := s.storeCtx(ctx)
	err = s.repos.Sessions().MarkLoggedOut(sctx, sessionID)
	cancel()
	if err != nil {
		return wrapStoreErr(err, "failed to mark session record logged out")
	}

	s.emitAudit(ctx, AuditEvent{
		Actor:      actorForPrincipal(principalID),
		Action:     AuditActionLogout,
		EntityType: "session",
		EntityID:   sessionID.String(),
	})

	return nil
}

// Refresh rotates the session: the old registry entry is deleted and a
// new token is issued with freshly resolved claims. This is the only path
// that refreshes claims without a full re-login. If the old entry cannot
// be deleted the whole refresh fails; two simultaneously valid tokens for
// one conceptual session would break bulk revocation.
func (s *Auther) Refresh(ctx context.Context, token string, conn ConnectionInfo) (*LoginResult, error) {
	info, err := s.CurrentPrincipal(ctx, token)
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	principal, err := s.repos.Principals().GetByIdentifier(sctx, info.PrincipalID.String())
	cancel()
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrSessionClosed
		}
		return nil, wrapStoreErr(err, "failed to load principal for refresh")
	}

	if principal.Status != StatusActive {
		return nil, ErrPrincipalInactive
	}

	if err := s.registry.Delete(ctx, info.PrincipalID, info.SessionID); err != nil {
		return nil, err
	}

	sctx, cancel = s.storeCtx(ctx)
	if err := s.repos.Sessions().MarkLoggedOut(sctx, info.SessionID); err != nil {
		s.logger.Warn("failed to close refreshed session record", "session_id", info.SessionID, "error", err)
	}
	cancel()

	result, sessionID, err := s.openSession(ctx, principal, conn)
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, AuditEvent{
		Actor:      actorForPrincipal(principal.ID),
		Action:     AuditActionRefreshSession,
		EntityType: "session",
		EntityID:   sessionID.String(),
		Details:    map[string]any{"replaced_session_id": info.SessionID.String()},
	})

	return result, nil
}

// ChangePassword lets the caller rotate their own secret. With
// revokeOthers every other active session of the principal is revoked;
// the caller's own session stays valid. Returns the number of sessions
// revoked.
func (s *Auther) ChangePassword(ctx context.Context, token, currentSecret, newSecret string, revokeOthers bool) (int, error) {
	info, err := s.CurrentPrincipal(ctx, token)
	if err != nil {
		return 0, err
	}

	if err := validateNewSecret(newSecret); err != nil {
		return 0, err
	}

	sctx, cancel := s.storeCtx(ctx)
	principal, err := s.repos.Principals().GetByIdentifier(sctx, info.PrincipalID.String())
	cancel()
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return 0, ErrSessionClosed
		}
		return 0, wrapStoreErr(err, "failed to load principal")
	}

	if err := s.passwords.ComparePasswordAndHash(currentSecret, principal.PasswordHash); err != nil {
		return 0, ErrWrongCurrentPassword
	}

	hash, err := s.passwords.HashPassword(newSecret)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash new password")
	}

	sctx, cancel = s.storeCtx(ctx)
	err = s.repos.Principals().UpdatePassword(sctx, principal.ID, hash)
	cancel()
	if err != nil {
		return 0, wrapStoreErr(err, "failed to persist new password")
	}

	revoked := 0
	if revokeOthers {
		revoked = s.revokeSessions(ctx, principal.ID, info.SessionID)
	}

	s.emitAudit(ctx, AuditEvent{
		Actor:      actorForPrincipal(principal.ID),
		Action:     AuditActionChangePassword,
		EntityType: "principal",
		EntityID:   principal.ID.String(),
		Details:    map[string]any{"sessions_revoked": revoked},
	})

	return revoked, nil
}

// AdminResetPassword sets a new secret on the target principal and
// unconditionally revokes every one of its active sessions. It works on
// soft-deleted targets too, skipping the password write and revoking
// their remaining sessions. The actor's token-embedded roles must
// include the administrative role. Exactly one audit entry is written;
// a sink failure fails the flow.
func (s *Auther) AdminResetPassword(ctx context.Context, actorToken string, targetID uuid.UUID, newSecret, reason string) (int, error) {
	actor, err := s.CurrentPrincipal(ctx, actorToken)
	if err != nil {
		return 0, err
	}

	if !actor.Claims.HasRole(s.adminRole) {
		return 0, ErrAdminRoleRequired
	}

	if strings.TrimSpace(reason) == "" {
		return 0, ErrEmptyResetReason
	}

	if err := validateNewSecret(newSecret); err != nil {
		return 0, err
	}

	// The target is resolved by primary key with no status scope: soft
	// deletion leaves registry entries standing, so this flow must still
	// reach a deleted principal's sessions to revoke them.
	sctx, cancel := s.storeCtx(ctx)
	target, err := s.repos.Principals().GetByID(sctx, targetID.String())
	cancel()
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return 0, ErrUnknownResetTarget
		}
		return 0, wrapStoreErr(err, "failed to load target principal")
	}

	// A deleted row never authenticates again, so there is no password
	// to rotate; revocation is the whole point of the reset then.
	if target.Status != StatusDeleted {
		hash, err := s.passwords.HashPassword(newSecret)
		if err != nil {
			return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash new password")
		}

		sctx, cancel = s.storeCtx(ctx)
		err = s.repos.Principals().UpdatePassword(sctx, target.ID, hash)
		cancel()
		if err != nil {
			return 0, wrapStoreErr(err, "failed to persist new password")
		}
	}

	revoked := s.revokeSessions(ctx, target.ID, uuid.Nil)

	event := AuditEvent{
		Actor:      ActorRef{ID: actor.PrincipalID.String(), Type: "admin"},
		Action:     AuditActionAdminResetPassword,
		EntityType: "principal",
		EntityID:   target.ID.String(),
		Details: map[string]any{
			"reason":           reason,
			"sessions_revoked": revoked,
		},
		OccurredAt: time.Now(),
	}
	if err := s.audit.Record(ctx, event); err != nil {
		return revoked, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write admin reset audit entry")
	}

	return revoked, nil
}

// openSession resolves fresh claims, issues a token with a new session
// id, writes the registry entry, and persists the durable session record.
func (s *Auther) openSession(ctx context.Context, principal *Principal, conn ConnectionInfo) (*LoginResult, uuid.UUID, error) {
	sctx, cancel := s.storeCtx(ctx)
	claims, err := s.resolver.Resolve(sctx, principal.ID)
	cancel()
	if err != nil {
		return nil, uuid.Nil, err
	}

	sessionID := uuid.New()

	token, _, err := s.tokens.Issue(principal.ID, sessionID, claims, s.tokenTTL)
	if err != nil {
		return nil, uuid.Nil, err
	}

	if err := s.registry.Put(ctx, principal.ID, sessionID, token, s.tokenTTL); err != nil {
		return nil, uuid.Nil, err
	}

	conn = s.enrichConnection(ctx, conn)
	record := &SessionRecord{
		ID:            sessionID,
		PrincipalID:   principal.ID,
		IP:            conn.IP,
		UserAgent:     conn.UserAgent,
		DeviceSummary: conn.DeviceSummary,
		GeoCity:       conn.GeoCity,
		GeoCountry:    conn.GeoCountry,
	}

	sctx, cancel = s.storeCtx(ctx)
	_, err = s.repos.Sessions().Create(sctx, record)
	cancel()
	if err != nil {
		// Without the durable record the session would be invisible to
		// bulk revocation, so take the registry entry back down.
		if delErr := s.registry.Delete(ctx, principal.ID, sessionID); delErr != nil {
			s.logger.Error("failed to roll back registry entry", "session_id", sessionID, "error", delErr)
		}
		return nil, uuid.Nil, wrapStoreErr(err, "failed to persist session record")
	}

	return &LoginResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.tokenTTL.Seconds()),
	}, sessionID, nil
}

// revokeSessions closes every active session of the principal except the
// excluded one. Failures are isolated per session: one failed registry
// delete does not abort the rest, and the return value counts only
// sessions actually revoked.
func (s *Auther) revokeSessions(ctx context.Context, principalID, exclude uuid.UUID) int {
	sctx, cancel := s.storeCtx(ctx)
	records, err := s.repos.Sessions().ListActive(sctx, principalID)
	cancel()
	if err != nil {
		s.logger.Error("failed to enumerate active sessions", "principal_id", principalID, "error", err)
		return 0
	}

	revoked := 0
	for _, record := range records {
		if record.ID == exclude {
			continue
		}

		if err := s.registry.Delete(ctx, principalID, record.ID); err != nil {
			s.logger.Error("failed to revoke session", "session_id", record.ID, "error", err)
			continue
		}

		sctx, cancel = s.storeCtx(ctx)
		if err := s.repos.Sessions().MarkLoggedOut(sctx, record.ID); err != nil {
			s.logger.Warn("failed to close revoked session record", "session_id", record.ID, "error", err)
		}
		cancel()

		revoked++
	}

	return revoked
}

func (s *Auther) enrichConnection(ctx context.Context, conn ConnectionInfo) ConnectionInfo {
	if conn.DeviceSummary == "" {
		conn.DeviceSummary = summarizeDevice(conn.UserAgent)
	}

	if conn.IP != "" && conn.GeoCity == "" && conn.GeoCountry == "" {
		if loc, err := s.geo.Locate(ctx, conn.IP); err != nil {
			s.logger.Debug("geo lookup failed", "ip", conn.IP, "error", err)
		} else {
			conn.GeoCity = loc.City
			conn.GeoCountry = loc.Country
		}
	}

	return conn
}

func (s *Auther) emitAudit(ctx context.Context, event AuditEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn("audit sink record error: %v", err)
	}
}

func validateNewSecret(secret string) error {
	if err := validation.Validate(secret,
		validation.Required,
		validation.Length(MinPasswordLength, 0),
	); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "new password rejected").
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

var _ Authenticator = (*Auther)(nil)
