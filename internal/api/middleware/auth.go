package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/app-sre/proms-mcp/internal/api/presenter"
	"github.com/app-sre/proms-mcp/internal/core"
)

type identityKey struct{}

// Verifier resolves a bearer credential to an identity.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*core.Identity, error)
}

// IdentityCtx returns a context carrying the verified identity.
func IdentityCtx(ctx context.Context, id core.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromCtx retrieves the identity stored by BearerAuth.
func IdentityFromCtx(ctx context.Context) (core.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(core.Identity)
	return id, ok
}

// BearerCredential extracts the bearer token from the Authorization
// header. A missing or non-bearer header yields the empty string.
func BearerCredential(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	credential, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(credential)
}

// BearerAuth verifies the request's bearer credential and stores the
// resulting identity in the context. Every failure answers with the
// same 401 body so callers cannot probe why they were denied; the
// cause lands in the log and the audit trail only.
func BearerAuth(verifier Verifier, exemptPaths ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(exemptPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			identity, err := verifier.Verify(ctx, BearerCredential(r))
			if err != nil {
				log.Ctx(ctx).Warn().
					Str("path", r.URL.Path).
					Str("cause", core.CauseClass(err)).
					Msg("request denied")
				presenter.Error(w, r, "authentication required", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(IdentityCtx(ctx, *identity)))
		})
	}
}
