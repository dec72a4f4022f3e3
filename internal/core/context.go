package core

// context.go carries request-scoped actor identity into the pipeline so audit
// entries record who did what without threading extra parameters everywhere.

import "context"

type contextKey string

const (
	actorKey     contextKey = "actor"
	ipAddressKey contextKey = "ip_address"
	userAgentKey contextKey = "user_agent"
)

// WithActor returns a context carrying the authenticated actor name.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the authenticated actor, or "" if none.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey).(string); ok {
		return v
	}
	return ""
}

// WithRequestMeta returns a context carrying the client IP and user agent.
func WithRequestMeta(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ipAddressKey, ip)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

// IPFromContext returns the client IP, or "" if none.
func IPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ipAddressKey).(string); ok {
		return v
	}
	return ""
}

// UserAgentFromContext returns the client user agent, or "" if none.
func UserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userAgentKey).(string); ok {
		return v
	}
	return ""
}
