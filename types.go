package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Authenticator holds the session lifecycle operations every other module
// consumes. Auther is the default implementation.
type Authenticator interface {
	Login(ctx context.Context, identifier, secret string, conn ConnectionInfo) (*LoginResult, error)
	Logout(ctx context.Context, token string) error
	Refresh(ctx context.Context, token string, conn ConnectionInfo) (*LoginResult, error)
	CurrentPrincipal(ctx context.Context, token string) (*PrincipalInfo, error)
	ValidateToken(ctx context.Context, token string) (*TokenStatus, error)
	ChangePassword(ctx context.Context, token, currentSecret, newSecret string, revokeOthers bool) (int, error)
	AdminResetPassword(ctx context.Context, actorToken string, targetID uuid.UUID, newSecret, reason string) (int, error)
}

// PasswordAuthenticator hashes and verifies secrets. The hash is treated
// as an opaque one-way value everywhere else.
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// LoginResult is returned by Login and Refresh.
type LoginResult struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// PrincipalInfo is the resolved identity carried by a valid token. It is
// built entirely from the token payload; no relational reads happen on
// this path.
type PrincipalInfo struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	SessionID   uuid.UUID `json:"session_id"`
	Claims      Claims    `json:"claims"`
}

// TokenStatus is the side-effect-free introspection result.
type TokenStatus struct {
	Valid       bool   `json:"valid"`
	PrincipalID string `json:"principal_id,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
}

// ActorRef identifies who or what triggered a privileged operation.
type ActorRef struct {
	ID   string
	Type string
}

func actorForPrincipal(id uuid.UUID) ActorRef {
	return ActorRef{ID: id.String(), Type: "principal"}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
