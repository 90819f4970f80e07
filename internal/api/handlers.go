package api

import (
	"net/http"
	"slices"

	"github.com/app-sre/proms-mcp/internal/api/middleware"
	"github.com/app-sre/proms-mcp/internal/api/presenter"
	"github.com/app-sre/proms-mcp/internal/core"
)

type WhoAmIResponse struct {
	Identity    core.Identity         `json:"identity"`
	Scopes      []string              `json:"scopes"`
	Datasources []string              `json:"datasources"`
	Trace       *core.EvaluationTrace `json:"trace,omitempty"`
}

// handleWhoAmI answers with the verified identity, its scopes and the
// datasources it may query. ?verbose adds the rule-by-rule evaluation
// trace, optionally narrowed to one datasource via ?datasource=<name>.
func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := middleware.IdentityFromCtx(ctx)
	if !ok {
		presenter.Error(w, r, "authentication required", http.StatusUnauthorized)
		return
	}

	names := make([]string, 0)
	for _, ds := range s.queries.ListDatasources(identity) {
		names = append(names, ds.Name)
	}

	resp := WhoAmIResponse{
		Identity:    identity,
		Scopes:      core.ScopesFor(identity),
		Datasources: names,
	}
	if r.URL.Query().Has("verbose") {
		resp.Trace = s.queries.ExplainAccess(ctx, identity, r.URL.Query().Get("datasource"))
	}

	presenter.JSON(w, r, resp, http.StatusOK)
}

// handleHealth answers liveness probes on the API listener. It is
// exempt from authentication; the detailed view with task states lives
// on the monitoring listener.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, map[string]string{"status": "ok"}, http.StatusOK)
}

// requireAdmin gates the admin routes on the admin scope.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromCtx(r.Context())
		if !ok || !slices.Contains(core.ScopesFor(identity), core.ScopeAdminAll) {
			presenter.Error(w, r, "insufficient privileges", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
