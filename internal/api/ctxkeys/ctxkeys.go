// Package ctxkeys holds the typed request context keys shared by the api
// middleware and handlers. It is a leaf package to avoid import cycles.
package ctxkeys

import "context"

// Key is the named type for all API context keys.
type Key string

const (
	// Subject is the authenticated caller: the JWT subject or "api-key".
	Subject Key = "subject"

	// AuthMethod is "jwt", "api-key" or "none".
	AuthMethod Key = "auth_method"
)

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// String returns the string stored under key, or "".
func String(ctx context.Context, key Key) string {
	v, _ := ctx.Value(key).(string)
	return v
}
