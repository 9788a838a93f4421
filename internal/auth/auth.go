// Package auth defines the narrow interfaces through which the
// orchestrator consumes external credential and authorization services.
// Token issuance and validation backends live outside this module.
package auth

import (
	"context"
	"errors"
)

// ErrInvalidToken is returned when a token fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the caller identity extracted from a verified token. The
// orchestrator uses only the principal for session ownership checks; the
// access token is passed through to diagnostic actions that need it.
type Identity struct {
	Principal   string
	AccessToken string
}

// TokenVerifier validates a caller-supplied token and extracts identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Authorizer answers whether an identity may touch a named resource.
// Consulted by the dispatcher before executing scope-sensitive actions.
type Authorizer interface {
	Authorized(id Identity, resource string) bool
}

// PassthroughVerifier accepts any non-empty token and uses it directly as
// the downstream access token. Suitable for deployments where the
// transport layer already authenticated the caller.
type PassthroughVerifier struct{}

// Verify implements TokenVerifier.
func (PassthroughVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Principal: "caller", AccessToken: token}, nil
}

// AllowAll authorizes every resource. Used when scope enforcement is
// delegated entirely to the downstream API.
type AllowAll struct{}

// Authorized implements Authorizer.
func (AllowAll) Authorized(Identity, string) bool { return true }
