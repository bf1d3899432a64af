package auth

import (
	"context"
)

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithPrincipalContext sets the resolved PrincipalInfo in the given context
func WithPrincipalContext(ctx context.Context, info *PrincipalInfo) context.Context {
	return context.WithValue(ctx, principalCtxKey, info)
}

// PrincipalFromContext finds the resolved PrincipalInfo from the context.
func PrincipalFromContext(ctx context.Context) (*PrincipalInfo, bool) {
	raw, ok := ctx.Value(principalCtxKey).(*PrincipalInfo)
	return raw, ok
}

// HasRole is a convenience guard for downstream modules: it checks the
// token-embedded role snapshot of the caller stored in ctx.
func HasRole(ctx context.Context, code string) bool {
	info, ok := PrincipalFromContext(ctx)
	if !ok {
		return false
	}
	return info.Claims.HasRole(code)
}

// HasPermission checks the token-embedded permission snapshot of the
// caller stored in ctx.
func HasPermission(ctx context.Context, code string) bool {
	info, ok := PrincipalFromContext(ctx)
	if !ok {
		return false
	}
	return info.Claims.HasPermission(code)
}
