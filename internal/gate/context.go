package gate

import (
	"context"

	"github.com/marcogenualdo/notes-gate/internal/auth"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	csrfContextKey      contextKey = "csrf"
)

// WithPrincipal attaches the caller and its session CSRF token to ctx.
func WithPrincipal(ctx context.Context, principal *auth.Principal, csrfToken string) context.Context {
	ctx = context.WithValue(ctx, principalContextKey, principal)
	return context.WithValue(ctx, csrfContextKey, csrfToken)
}

// PrincipalFrom returns the caller set by RequireAuth.
func PrincipalFrom(ctx context.Context) (*auth.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(*auth.Principal)
	return principal, ok && principal != nil
}

// CSRFTokenFrom returns the anti-forgery token bound to the caller's session.
func CSRFTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(csrfContextKey).(string)
	return token
}
