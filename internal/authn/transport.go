package authn

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/app-sre/proms-mcp/internal/core"
)

// maxResponseBytes caps how much of an upstream response body we are willing
// to decode.
const maxResponseBytes = 1 << 20

// classifyTransportError sorts a request failure into the timeout or
// unavailable class. Both deny the request; they are logged and counted
// separately.
func classifyTransportError(op string, err error) error {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return fmt.Errorf("%w: %s: %w", core.ErrVerifyTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", core.ErrUpstreamUnavailable, op, err)
}
