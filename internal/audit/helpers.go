package audit

import (
	"fmt"

	"github.com/app-sre/proms-mcp/internal/buildinfo"
)

// CreateUserAgent builds the User-Agent sent with upstream verification
// requests, so cluster API audit logs can be correlated back to ours.
func CreateUserAgent(correlationID string) string {
	if correlationID == "" {
		return fmt.Sprintf("proms-mcp/%s", buildinfo.Version)
	}
	return fmt.Sprintf("proms-mcp/%s (correlation_id=%s)", buildinfo.Version, correlationID)
}
