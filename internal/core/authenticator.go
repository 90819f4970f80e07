package core

import "context"

// Authenticator verifies a bearer credential against a single upstream
// mechanism.
// Implementations: userinfo endpoint, TokenReview API, OIDC JWT, static (tests).
type Authenticator interface {
	// Name returns the identifier of this authenticator (as used in config).
	Name() string

	// Authenticate checks a raw credential and returns the Identity it
	// belongs to. A nil error means the credential was positively verified;
	// every failure carries one of the Err* classes from this package.
	Authenticate(ctx context.Context, credential string) (*Identity, error)
}
