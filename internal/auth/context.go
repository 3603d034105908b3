package auth

import (
	"context"

	"mediavault/internal/domain"
)

type contextKey string

const principalContextKey contextKey = "mediavaultPrincipal"

func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(domain.Principal)
	return p, ok && p.Email != ""
}
