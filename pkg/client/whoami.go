package client

import (
	"context"

	"github.com/app-sre/proms-mcp/internal/api"
)

// WhoAmIOpts controls the identity probe.
type WhoAmIOpts struct {
	// Verbose asks the server to include the policy evaluation trace.
	Verbose bool

	// Datasource names a datasource the trace should be evaluated
	// against. Only meaningful together with Verbose.
	Datasource string
}

// WhoAmI asks the server which identity the configured credential
// resolves to, along with its scopes and reachable datasources.
func (c *Client) WhoAmI(ctx context.Context, opts WhoAmIOpts) (*api.WhoAmIResponse, string, error) {
	ub := c.url().setPath(api.WhoAmIRoute)
	if opts.Verbose {
		ub = ub.addQueryParam("verbose", "1")
	}
	if opts.Datasource != "" {
		ub = ub.addQueryParam("datasource", opts.Datasource)
	}

	var resp api.WhoAmIResponse
	correlation, err := c.get(ctx, ub.build(), &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}
