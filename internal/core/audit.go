package core

import "time"

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "authn.verify", "mcp.tool_call")
	Action string `json:"action"`

	// Fingerprint is the one-way hash of the presented credential.
	// The raw credential never appears in an entry.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Identity of the caller, present when verification succeeded.
	Identity *Identity `json:"identity,omitempty"`

	// Method is the authenticator that produced the decision.
	Method string `json:"method,omitempty"`

	// Granted indicates whether the request was allowed.
	Granted bool `json:"granted"`

	// Cause is the failure class on denial (see CauseClass).
	Cause string `json:"cause,omitempty"`

	// Error carries the internal error text. Shown in audit only,
	// never to callers.
	Error string `json:"error,omitempty"`

	// DurationMS is how long the decision took.
	DurationMS int64 `json:"duration_ms,omitempty"`

	// Metadata contains extra details (e.g. tool name, datasource).
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}

type Fingerprinter func(token string) string
