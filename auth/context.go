package auth

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ctxKey is an unexported type so values stashed by this package can never
// collide with a context key set elsewhere.
type ctxKey struct{}

// NewContext returns a copy of ctx carrying id. It is called exactly once per
// RPC, by the interceptors in interceptor.go, after id has been extracted
// from the peer's verified TLS certificate.
func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext retrieves the Identity stashed by NewContext. Handlers use this
// instead of re-deriving identity from the transport so that the Identity
// Gate remains the single place a requester's identity is produced.
func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok {
		return Identity{}, status.Error(codes.PermissionDenied, "no identity in context")
	}
	return id, nil
}
