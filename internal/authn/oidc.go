package authn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/app-sre/proms-mcp/internal/core"
)

// OIDCConfig configures JWT verification against the cluster's OIDC
// discovery endpoint (service account issuer).
type OIDCConfig struct {
	IssuerURL string `mapstructure:"issuer_url"`

	// Audience is the expected "aud" claim. Empty skips the audience check.
	Audience string `mapstructure:"audience"`
}

var _ core.Authenticator = (*OIDCAuthenticator)(nil)

// OIDCAuthenticator verifies service account JWTs offline against the JWKS
// published by the cluster issuer. Unlike userinfo and tokenreview it does
// not present the credential to the upstream; only key material is fetched.
type OIDCAuthenticator struct {
	name     string
	issuer   string
	verifier *oidc.IDTokenVerifier
	trust    *TrustPolicy
	timeout  time.Duration
}

func NewOIDC(ctx context.Context, name string, cfg OIDCConfig, trust *TrustPolicy, timeout time.Duration) (*OIDCAuthenticator, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("oidc authenticator '%s' missing 'issuer_url'", name)
	}
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}

	client, err := trust.Client(trust.Resolve())
	if err != nil {
		return nil, fmt.Errorf("preparing discovery client for oidc authenticator '%s': %w", name, err)
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, client), cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("creating oidc provider for authenticator '%s': %w", name, err)
	}

	verifierConfig := &oidc.Config{ClientID: cfg.Audience}
	if cfg.Audience == "" {
		verifierConfig.SkipClientIDCheck = true
	}

	return &OIDCAuthenticator{
		name:     name,
		issuer:   cfg.IssuerURL,
		verifier: provider.Verifier(verifierConfig),
		trust:    trust,
		timeout:  timeout,
	}, nil
}

func (a *OIDCAuthenticator) Name() string {
	return a.name
}

func (a *OIDCAuthenticator) Authenticate(ctx context.Context, credential string) (*core.Identity, error) {
	// cheap pre-check: only JWTs from our issuer are worth a JWKS round trip
	iss, err := ExtractIssuerURL(credential)
	if err != nil {
		return nil, fmt.Errorf("%w: not a verifiable JWT: %w", core.ErrCredentialInvalid, err)
	}
	if iss != a.issuer {
		return nil, fmt.Errorf("%w: token issuer %q is not %q", core.ErrCredentialInvalid, iss, a.issuer)
	}

	client, err := a.trust.Client(a.trust.Resolve())
	if err != nil {
		return nil, fmt.Errorf("%w: preparing upstream client: %w", core.ErrUpstreamUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(oidc.ClientContext(ctx, client), a.timeout)
	defer cancel()

	idToken, err := a.verifier.Verify(ctx, credential)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: fetching signing keys: %w", core.ErrVerifyTimeout, err)
		}
		return nil, fmt.Errorf("%w: oidc verification: %w", core.ErrCredentialInvalid, err)
	}

	var claims struct {
		Sub    string   `json:"sub"`
		Groups []string `json:"groups"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: extracting oidc claims: %w", core.ErrCredentialInvalid, err)
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("%w: token carries no subject", core.ErrCredentialInvalid)
	}

	return &core.Identity{
		Username:  claims.Sub,
		SubjectID: claims.Sub,
		Groups:    claims.Groups,
		Method:    core.MethodOIDC,
	}, nil
}

// ExtractIssuerURL extracts the 'iss' claim from a JWT token string without verifying it.
func ExtractIssuerURL(tokenString string) (string, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	issRaw, ok := claims["iss"]
	if !ok {
		return "", fmt.Errorf("token missing 'iss' claim")
	}

	iss, ok := issRaw.(string)
	if !ok {
		return "", fmt.Errorf("invalid 'iss' claim type")
	}

	return iss, nil
}
