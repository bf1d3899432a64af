package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService encodes and decodes the signed bearer tokens.
type TokenService interface {
	Issue(principalID, sessionID uuid.UUID, claims Claims, ttl time.Duration) (string, time.Time, error)
	Validate(token string) (*SessionClaims, error)
}

// SessionClaims is the token payload: subject, session id, timestamps,
// and the claims snapshot captured at issuance.
type SessionClaims struct {
	jwt.RegisteredClaims
	SID         string   `json:"sid"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// PrincipalID parses the subject claim.
func (c *SessionClaims) PrincipalID() (uuid.UUID, error) {
	return uuid.Parse(c.RegisteredClaims.Subject)
}

// SessionID parses the session id claim.
func (c *SessionClaims) SessionID() (uuid.UUID, error) {
	return uuid.Parse(c.SID)
}

// Snapshot returns the embedded role/permission set.
func (c *SessionClaims) Snapshot() Claims {
	return Claims{Roles: c.Roles, Permissions: c.Permissions}
}

// ExpiresIn returns the remaining token lifetime in whole seconds.
func (c *SessionClaims) ExpiresIn(now time.Time) int64 {
	if c.RegisteredClaims.ExpiresAt == nil {
		return 0
	}
	remaining := int64(c.RegisteredClaims.ExpiresAt.Time.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TokenServiceImpl implements TokenService with HMAC-SHA256 signatures.
type TokenServiceImpl struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, issuer string, audience jwt.ClaimStrings, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey: signingKey,
		issuer:     issuer,
		audience:   audience,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock injects a custom clock (useful for tests).
func (ts *TokenServiceImpl) WithClock(clock func() time.Time) *TokenServiceImpl {
	if clock != nil {
		ts.now = clock
	}
	return ts
}

// Issue signs a token for (principal, session) carrying the claims
// snapshot. TTL determines the embedded expiry; the matching registry
// entry must be written with the same TTL.
func (ts *TokenServiceImpl) Issue(principalID, sessionID uuid.UUID, claims Claims, ttl time.Duration) (string, time.Time, error) {
	if principalID == uuid.Nil || sessionID == uuid.Nil {
		return "", time.Time{}, errors.New("principal and session ids are required", errors.CategoryInternal)
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("token TTL must be positive", errors.CategoryInternal)
	}

	now := ts.now()
	expiresAt := now.Add(ttl)
	snapshot := claims.Normalize()

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	payload := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   principalID.String(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SID:         sessionID.String(),
		Roles:       snapshot.Roles,
		Permissions: snapshot.Permissions,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, errors.CategoryInternal, "failed to sign token")
	}

	return signed, expiresAt, nil
}

// Validate parses and verifies a token string. It fails closed: a bad
// signature, elapsed expiry, or missing subject/session id all collapse
// into the unauthorized class.
func (ts *TokenServiceImpl) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService validate could not decode claims")
		return nil, ErrTokenMalformed
	}

	if _, err := claims.PrincipalID(); err != nil {
		return nil, ErrTokenMalformed
	}
	if _, err := claims.SessionID(); err != nil {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

var _ TokenService = (*TokenServiceImpl)(nil)
