// Package middleware contains the HTTP middleware chain: correlation
// IDs, panic recovery, request logging, bearer authentication, and
// rate limiting.
package middleware

import (
	"context"
	"net/http"

	"github.com/sheetwise/gateway/internal/auth"
)

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares to handler in order: the first middleware
// is the outermost.
func Chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

type contextKey string

const principalKey contextKey = "principal"

// ContextWithPrincipal returns a context carrying the authenticated
// principal.
func ContextWithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*auth.Principal)
	return p, ok
}
