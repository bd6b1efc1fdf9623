package auth

import (
	"context"
)

var userCtxKey = &contextKey{"user"}
var payloadCtxKey = &contextKey{"payload"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// WithPayloadContext sets the verified access payload in the given context
func WithPayloadContext(ctx context.Context, payload AccessPayload) context.Context {
	return context.WithValue(ctx, payloadCtxKey, payload)
}

// PayloadFromContext extracts the access payload from the context
func PayloadFromContext(ctx context.Context) (AccessPayload, bool) {
	raw, ok := ctx.Value(payloadCtxKey).(AccessPayload)
	return raw, ok && raw.HasUID()
}
