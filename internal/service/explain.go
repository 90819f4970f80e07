package service

import (
	"context"

	"github.com/app-sre/proms-mcp/internal/core"
)

// ExplainAccess runs every access rule against the identity and reports
// why each one matched or failed, plus the datasources the identity ends
// up with. Meant for operators debugging a policy, not for callers.
func (s *QueryService) ExplainAccess(ctx context.Context, identity core.Identity, datasource string) *core.EvaluationTrace {
	reqID, _ := ctx.Value("correlation_id").(string)

	all := s.registry.List()
	names := make([]string, 0, len(all))
	for _, ds := range all {
		names = append(names, ds.Name)
	}

	return &core.EvaluationTrace{
		CorrelationID: reqID,
		Identity:      &identity,
		RuleResults:   s.engine.Trace(identity, datasource),
		Datasources:   s.engine.AllowedNames(identity, names),
	}
}
