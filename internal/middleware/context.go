package middleware

import "context"

type principalRecorderKey struct{}

func withPrincipalRecorder(ctx context.Context, rec *principalRecorder) context.Context {
	return context.WithValue(ctx, principalRecorderKey{}, rec)
}

// SetPrincipal reports the authenticated principal of the request to the
// enclosing Logging middleware. It is a no-op outside Logging.
func SetPrincipal(ctx context.Context, name string) {
	if rec, ok := ctx.Value(principalRecorderKey{}).(*principalRecorder); ok {
		rec.name = name
	}
}
