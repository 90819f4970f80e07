package core

import "errors"

// Verification failure classes. They drive logging, metrics and audit;
// the HTTP surface collapses all of them into one uniform denial so callers
// cannot fingerprint the cause.
var (
	// ErrCredentialAbsent means no usable credential accompanied the request.
	ErrCredentialAbsent = errors.New("credential absent")

	// ErrCredentialInvalid means the upstream positively rejected the credential.
	ErrCredentialInvalid = errors.New("credential invalid")

	// ErrUpstreamUnavailable means the upstream could not be reached, or
	// answered outside the 2xx range for reasons other than the credential.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrVerifyTimeout means a verification attempt exceeded its time budget.
	ErrVerifyTimeout = errors.New("verification timeout")

	// ErrConfigurationMissing means a required setting is absent.
	// Raised at startup, never at request time.
	ErrConfigurationMissing = errors.New("configuration missing")
)

// CauseClass maps a verification error to its stable class name, used as a
// metrics label and in audit entries.
func CauseClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCredentialAbsent):
		return "credential_absent"
	case errors.Is(err, ErrCredentialInvalid):
		return "credential_invalid"
	case errors.Is(err, ErrVerifyTimeout):
		return "timeout"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "error"
	}
}
