package client

import (
	"context"

	"github.com/app-sre/proms-mcp/internal/api"
)

// HealthStatus is the liveness answer of the API listener.
type HealthStatus struct {
	Status string `json:"status"`
}

// Health probes the unauthenticated liveness route. A nil error means
// the server is up and answering.
func (c *Client) Health(ctx context.Context) (*HealthStatus, string, error) {
	var status HealthStatus
	correlation, err := c.get(ctx, c.url().
		setPath(api.HealthRoute).
		build(), &status)
	if err != nil {
		return nil, correlation, err
	}
	return &status, correlation, nil
}
