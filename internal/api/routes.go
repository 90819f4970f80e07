package api

const (
	MCPRoute    = "/mcp"
	WhoAmIRoute = "/whoami"

	// HealthRoute answers liveness probes without authentication. The
	// detailed health view lives on the monitoring listener.
	HealthRoute  = "/health"
	MetricsRoute = "/metrics"

	AdminParent      = "/v1/admin/"
	ListTasksRoute   = AdminParent + "tasks"
	TriggerTaskRoute = AdminParent + "tasks/{name}/trigger"
	LogsForTaskRoute = AdminParent + "tasks/{name}/logs"
	ListAuditRoute   = AdminParent + "audit"
)
