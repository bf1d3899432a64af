package auth

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeSessionClosed       = "SESSION_CLOSED"
	TextCodePrincipalInactive   = "PRINCIPAL_INACTIVE"
	TextCodeAdminRoleRequired   = "ADMIN_ROLE_REQUIRED"
	TextCodeWrongPassword       = "WRONG_CURRENT_PASSWORD"
	TextCodeEmptyResetReason    = "EMPTY_RESET_REASON"
	TextCodeUnknownResetTarget  = "UNKNOWN_RESET_TARGET"
	TextCodeRegistryUnavailable = "SESSION_REGISTRY_UNAVAILABLE"
	TextCodeStoreUnavailable    = "RELATIONAL_STORE_UNAVAILABLE"
)

// ErrInvalidCredentials covers unknown identifier and wrong password alike
// so responses never reveal which check failed.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when a token's embedded expiry has elapsed.
var ErrTokenExpired = errors.New("authentication token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed collapses every other decode failure: bad signature,
// missing subject or session id, unparseable payload.
var ErrTokenMalformed = errors.New("invalid authentication token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrSessionClosed is returned when a structurally valid token has no
// matching registry entry: the session expired, was logged out, or was
// revoked.
var ErrSessionClosed = errors.New("session expired or closed", errors.CategoryAuth).
	WithTextCode(TextCodeSessionClosed).
	WithCode(errors.CodeUnauthorized)

// ErrPrincipalInactive blocks deactivated principals from authenticating.
var ErrPrincipalInactive = errors.New("account is not active", errors.CategoryAuthz).
	WithTextCode(TextCodePrincipalInactive).
	WithCode(errors.CodeForbidden)

// ErrAdminRoleRequired is returned when the actor's token-embedded roles
// lack the administrative role.
var ErrAdminRoleRequired = errors.New("administrative role required", errors.CategoryAuthz).
	WithTextCode(TextCodeAdminRoleRequired).
	WithCode(errors.CodeForbidden)

// ErrWrongCurrentPassword is returned by ChangePassword when the caller
// fails to prove knowledge of the current secret.
var ErrWrongCurrentPassword = errors.New("current password does not match", errors.CategoryBadInput).
	WithTextCode(TextCodeWrongPassword).
	WithCode(errors.CodeBadRequest)

// ErrEmptyResetReason is returned by AdminResetPassword when no reason is
// supplied for the audit trail.
var ErrEmptyResetReason = errors.New("a reset reason is required", errors.CategoryBadInput).
	WithTextCode(TextCodeEmptyResetReason).
	WithCode(errors.CodeBadRequest)

// ErrUnknownResetTarget is returned by AdminResetPassword when the
// target id matches no principal row at all. The target id is caller
// input, so this classifies as a bad request rather than introducing a
// class of its own.
var ErrUnknownResetTarget = errors.New("target principal not found", errors.CategoryBadInput).
	WithTextCode(TextCodeUnknownResetTarget).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the verifier-level mismatch error. The
// orchestrator maps it to ErrInvalidCredentials before it leaves the
// package.
var ErrMismatchedHashAndPassword = errors.New("password does not match hash", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects empty secrets before hashing.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// wrapRegistryErr marks registry infrastructure failures as retryable.
// They must never be mistaken for "unauthenticated".
func wrapRegistryErr(err error, msg string) error {
	return errors.Wrap(err, errors.CategoryOperation, msg).
		WithTextCode(TextCodeRegistryUnavailable)
}

// wrapStoreErr marks relational-store infrastructure failures as retryable.
func wrapStoreErr(err error, msg string) error {
	return errors.Wrap(err, errors.CategoryOperation, msg).
		WithTextCode(TextCodeStoreUnavailable)
}

// IsUnauthorized reports whether err belongs to the collapsed
// "who are you" class: bad credential, invalid or expired token, closed
// session.
func IsUnauthorized(err error) bool {
	return hasCategory(err, errors.CategoryAuth)
}

// IsForbidden reports whether err is an authorization rejection for a
// known caller.
func IsForbidden(err error) bool {
	return hasCategory(err, errors.CategoryAuthz)
}

// IsBadRequest reports whether err is a caller input problem.
func IsBadRequest(err error) bool {
	return hasCategory(err, errors.CategoryBadInput) || hasCategory(err, errors.CategoryValidation)
}

// IsTransient reports whether err is a retryable infrastructure failure
// from the registry or relational store.
func IsTransient(err error) bool {
	return hasCategory(err, errors.CategoryOperation)
}

func hasCategory(err error, category errors.Category) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.Category == category
}
