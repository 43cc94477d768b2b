package middleware

import (
	"context"

	"github.com/mbyeon/gatekeeper"
)

type sessionContextKey struct{}

// SessionFromContext returns the session resolved by the guard for this
// request, or false when the request is anonymous.
func SessionFromContext(ctx context.Context) (*gatekeeper.SessionInfo, bool) {
	info, ok := ctx.Value(sessionContextKey{}).(*gatekeeper.SessionInfo)
	return info, ok
}

func withSession(ctx context.Context, info *gatekeeper.SessionInfo) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, info)
}
