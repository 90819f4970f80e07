package client

import (
	"context"

	"github.com/app-sre/proms-mcp/internal/api"
	"github.com/app-sre/proms-mcp/internal/core"
)

type ListAuditsOpts struct {
	Limit uint

	CorrelationID string
	Username      string
	Fingerprint   string
}

// ListAudits retrieves the latest verification audit entries from the
// server, newest last, optionally filtered.
func (c *Client) ListAudits(ctx context.Context, opts ListAuditsOpts) ([]core.AuditEntry, string, error) {
	ub := c.url().setPath(api.ListAuditRoute)
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	if opts.CorrelationID != "" {
		ub = ub.addQueryParam("correlation_id", opts.CorrelationID)
	}
	if opts.Username != "" {
		ub = ub.addQueryParam("username", opts.Username)
	}
	if opts.Fingerprint != "" {
		ub = ub.addQueryParam("fingerprint", opts.Fingerprint)
	}
	var resp []core.AuditEntry
	correlation, err := c.get(ctx, ub.build(), &resp)
	return resp, correlation, err
}
