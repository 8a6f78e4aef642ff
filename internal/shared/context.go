package shared

import "context"

// Principal describes the authenticated actor attached to a request after
// token validation. RoleID is resolved at validation time so permission
// checks always see the current role assignment.
type Principal struct {
	UserID       int64
	Email        string
	RoleID       int64
	RoleName     string
	TokenVersion int64
}

type principalContextKey struct{}

// ContextWithPrincipal stores the authenticated principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context, nil when the
// request was not authenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
