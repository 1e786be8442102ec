package auth

import "context"

type contextKey int

const callerKey contextKey = iota

// WithCaller returns a context carrying the resolved caller.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext returns the caller resolved by the auth middleware, or
// nil when the request was unauthenticated.
func CallerFromContext(ctx context.Context) *Caller {
	caller, ok := ctx.Value(callerKey).(Caller)
	if !ok {
		return nil
	}

	return &caller
}
