package registry

import "context"

// Caller identifies who performs an operation. It is recorded on audit
// entries for operations that take no explicit actor argument.
type Caller struct {
	Actor     string
	IPAddress string
	UserAgent string
	SessionID string
}

type callerKey struct{}

// WithCaller returns a context carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored in ctx, if any.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

func actorOr(ctx context.Context, fallback string) string {
	if c, ok := CallerFrom(ctx); ok && c.Actor != "" {
		return c.Actor
	}
	return fallback
}
