package auth_test

import (
	"fmt"
	"testing"

	auth "github.com/Black-Zeus/minuet-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name         string
		err          error
		unauthorized bool
		forbidden    bool
		badRequest   bool
		transient    bool
	}{
		{name: "invalid credentials", err: auth.ErrInvalidCredentials, unauthorized: true},
		{name: "token expired", err: auth.ErrTokenExpired, unauthorized: true},
		{name: "token malformed", err: auth.ErrTokenMalformed, unauthorized: true},
		{name: "session closed", err: auth.ErrSessionClosed, unauthorized: true},
		{name: "principal inactive", err: auth.ErrPrincipalInactive, forbidden: true},
		{name: "admin role required", err: auth.ErrAdminRoleRequired, forbidden: true},
		{name: "wrong current password", err: auth.ErrWrongCurrentPassword, badRequest: true},
		{name: "empty reset reason", err: auth.ErrEmptyResetReason, badRequest: true},
		{name: "unknown reset target", err: auth.ErrUnknownResetTarget, badRequest: true},
		{
			name:      "registry outage",
			err:       goerrors.New("dial tcp: connection refused", goerrors.CategoryOperation),
			transient: true,
		},
		{name: "plain error", err: fmt.Errorf("boom")},
		{name: "nil"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.unauthorized, auth.IsUnauthorized(tc.err))
			assert.Equal(t, tc.forbidden, auth.IsForbidden(tc.err))
			assert.Equal(t, tc.badRequest, auth.IsBadRequest(tc.err))
			assert.Equal(t, tc.transient, auth.IsTransient(tc.err))
		})
	}
}

func TestErrorClassification_SeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", auth.ErrSessionClosed)
	assert.True(t, auth.IsUnauthorized(wrapped))
	assert.False(t, auth.IsForbidden(wrapped))
}

func TestErrorTextCodes(t *testing.T) {
	assert.Equal(t, auth.TextCodeSessionClosed, auth.ErrSessionClosed.TextCode)
	assert.Equal(t, auth.TextCodeInvalidCredentials, auth.ErrInvalidCredentials.TextCode)
	assert.Equal(t, auth.TextCodeAdminRoleRequired, auth.ErrAdminRoleRequired.TextCode)
}
