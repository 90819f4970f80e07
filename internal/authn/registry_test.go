package authn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/app-sre/proms-mcp/internal/config"
	"github.com/app-sre/proms-mcp/internal/core"
)

func testBuildOptions(t *testing.T) BuildOptions {
	t.Helper()
	return BuildOptions{
		UpstreamURL: "https://api.cluster.example.com:6443",
		Trust:       testTrust(t),
		Timeout:     time.Second,
	}
}

func oidcIssuer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"issuer":%q,"jwks_uri":%q}`, srv.URL, srv.URL+"/keys")
	})
	return srv
}

func TestBuildChainDefaultsToUserInfo(t *testing.T) {
	chain, err := BuildChain(context.Background(), nil, testBuildOptions(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain) != 1 {
		t.Fatalf("got %d authenticators, want 1", len(chain))
	}
	if chain[0].Name() != "userinfo" {
		t.Errorf("Name() = %q, want userinfo", chain[0].Name())
	}
	if _, ok := chain[0].(*UserInfoAuthenticator); !ok {
		t.Errorf("default authenticator is %T, want *UserInfoAuthenticator", chain[0])
	}
}

func TestBuildChainWithoutUpstream(t *testing.T) {
	opts := testBuildOptions(t)
	opts.UpstreamURL = ""

	for _, typ := range []string{"userinfo", "tokenreview"} {
		t.Run(typ, func(t *testing.T) {
			_, err := BuildChain(context.Background(), []config.VerifierConfig{{Type: typ}}, opts)
			if !errors.Is(err, core.ErrConfigurationMissing) {
				t.Fatalf("err = %v, want ErrConfigurationMissing", err)
			}
		})
	}
}

func TestBuildChainKeepsOrder(t *testing.T) {
	cfgs := []config.VerifierConfig{
		{
			Name: "dev-tokens",
			Type: "static",
			Config: map[string]any{
				"tokens": map[string]any{
					"local-token": map[string]any{
						"username": "alice",
						"groups":   []any{"developers"},
					},
				},
			},
		},
		{Type: "tokenreview"},
	}

	chain, err := BuildChain(context.Background(), cfgs, testBuildOptions(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("got %d authenticators, want 2", len(chain))
	}
	if chain[0].Name() != "dev-tokens" || chain[1].Name() != "tokenreview" {
		t.Fatalf("chain order = [%s %s], want [dev-tokens tokenreview]", chain[0].Name(), chain[1].Name())
	}

	id, err := chain[0].Authenticate(context.Background(), "local-token")
	if err != nil {
		t.Fatalf("static authenticate: %v", err)
	}
	if id.Username != "alice" || id.SubjectID != "alice" || id.Method != core.MethodStatic {
		t.Errorf("unexpected identity %+v", id)
	}

	if _, err := chain[0].Authenticate(context.Background(), "other"); !errors.Is(err, core.ErrCredentialInvalid) {
		t.Errorf("unknown static credential err = %v, want ErrCredentialInvalid", err)
	} else if strings.Contains(err.Error(), "other") {
		t.Error("error message leaks the credential value")
	}
}

func TestBuildChainDuplicateNames(t *testing.T) {
	cfgs := []config.VerifierConfig{
		{Type: "userinfo"},
		{Name: "userinfo", Type: "tokenreview"},
	}
	if _, err := BuildChain(context.Background(), cfgs, testBuildOptions(t)); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestBuildChainUnknownType(t *testing.T) {
	cfgs := []config.VerifierConfig{{Type: "kerberos"}}
	_, err := BuildChain(context.Background(), cfgs, testBuildOptions(t))
	if err == nil || !strings.Contains(err.Error(), "unknown authenticator type") {
		t.Fatalf("err = %v, want unknown type error", err)
	}
}

func TestBuildChainOIDC(t *testing.T) {
	issuer := oidcIssuer(t)

	cfgs := []config.VerifierConfig{
		{Type: "oidc", Config: map[string]any{"issuer_url": issuer.URL}},
	}
	chain, err := BuildChain(context.Background(), cfgs, testBuildOptions(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chain[0].Name() != "oidc" {
		t.Errorf("Name() = %q, want oidc (type fallback)", chain[0].Name())
	}

	// not a JWT at all: rejected before any key fetch
	if _, err := chain[0].Authenticate(context.Background(), "sha256~opaque"); !errors.Is(err, core.ErrCredentialInvalid) {
		t.Errorf("err = %v, want ErrCredentialInvalid", err)
	}
}

func TestBuildChainOIDCUnreachableIssuer(t *testing.T) {
	issuer := oidcIssuer(t)
	url := issuer.URL
	issuer.Close()

	cfgs := []config.VerifierConfig{
		{Type: "oidc", Config: map[string]any{"issuer_url": url}},
	}
	if _, err := BuildChain(context.Background(), cfgs, testBuildOptions(t)); err == nil {
		t.Fatal("expected discovery error for unreachable issuer")
	}
}

func TestBuildChainOIDCMissingIssuerURL(t *testing.T) {
	cfgs := []config.VerifierConfig{{Type: "oidc"}}
	_, err := BuildChain(context.Background(), cfgs, testBuildOptions(t))
	if err == nil || !strings.Contains(err.Error(), "issuer_url") {
		t.Fatalf("err = %v, want missing issuer_url error", err)
	}
}
