package auth

import "context"

type contextKey int

const usernameKey contextKey = 0

func withUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// UsernameFromContext returns the authenticated username Middleware stored on
// the request context, or "" if none (request did not pass through it).
func UsernameFromContext(ctx context.Context) string {
	username, _ := ctx.Value(usernameKey).(string)
	return username
}
