package prom

import (
	"errors"
	"strings"
)

// Query errors map to stable labels that tool callers can branch on.
var (
	// ErrInvalidQuery marks queries rejected before or by Prometheus (400).
	ErrInvalidQuery = errors.New("invalid query")

	// ErrAuthenticationFailed marks 401/403 answers from the datasource.
	ErrAuthenticationFailed = errors.New("datasource authentication failed")

	// ErrUnavailable marks connection failures and 5xx answers.
	ErrUnavailable = errors.New("prometheus unavailable")

	// ErrQueryTimeout marks queries cut off by the query budget.
	ErrQueryTimeout = errors.New("query timed out")
)

// ErrorLabel returns the stable label for a query error, matching the
// strings surfaced in tool results.
func ErrorLabel(err error) string {
	switch {
	case errors.Is(err, ErrInvalidQuery):
		return "INVALID_QUERY"
	case errors.Is(err, ErrAuthenticationFailed):
		return "AUTHENTICATION_FAILED"
	case errors.Is(err, ErrQueryTimeout):
		return "TIMEOUT"
	default:
		return "PROMETHEUS_UNAVAILABLE"
	}
}

// ToolError renders a query error as callers of the tool surface see
// it: the stable label, a colon, and the detail without the sentinel
// text it was wrapped with.
func ToolError(err error) string {
	detail := err.Error()
	for _, sentinel := range []error{ErrInvalidQuery, ErrAuthenticationFailed, ErrQueryTimeout, ErrUnavailable} {
		if errors.Is(err, sentinel) {
			detail = strings.TrimPrefix(detail, sentinel.Error()+": ")
			break
		}
	}
	return ErrorLabel(err) + ": " + detail
}
