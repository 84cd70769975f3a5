// Package auth provides TLS-based identity extraction and authorization helpers.
package auth

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Identity represents the authenticated caller, extracted from a client TLS certificate.
type Identity struct {
	Username string // CN from the certificate subject
	Role     string // First OU from the certificate subject ("admin" or "client")
}

// IsAdmin returns true if the identity has the admin role.
func (id Identity) IsAdmin() bool {
	return id.Role == "admin"
}

// IdentityFromContext extracts the caller's identity from the gRPC peer TLS certificate.
func IdentityFromContext(ctx context.Context) (Identity, error) {
	return identityFromTLS(ctx)
}

// identityFromTLS does the actual extraction. It is called directly by the
// interceptors (before an Identity has been stashed in the context) and
// indirectly by IdentityFromContext (kept as a public alias for callers, such
// as tests, that want to bypass the interceptor).
func identityFromTLS(ctx context.Context) (Identity, error) {
	p, ok := peer.FromContext(ctx)
	if !ok {
		return Identity{}, status.Error(codes.PermissionDenied, "no peer info in context")
	}

	tlsInfo, ok := p.AuthInfo.(credentials.TLSInfo)
	if !ok {
		return Identity{}, status.Error(codes.PermissionDenied, "peer is not using TLS")
	}

	if len(tlsInfo.State.VerifiedChains) == 0 || len(tlsInfo.State.VerifiedChains[0]) == 0 {
		return Identity{}, status.Error(codes.PermissionDenied, "no verified certificate chain")
	}

	cert := tlsInfo.State.VerifiedChains[0][0]
	if len(cert.Subject.OrganizationalUnit) == 0 {
		return Identity{}, status.Error(codes.PermissionDenied, "certificate carries no role")
	}
	role := cert.Subject.OrganizationalUnit[0]
	if role != "admin" && role != "client" {
		return Identity{}, status.Errorf(codes.PermissionDenied, "unrecognized role %q", role)
	}

	return Identity{
		Username: cert.Subject.CommonName,
		Role:     role,
	}, nil
}
