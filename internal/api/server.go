package api

import (
	"net/http"

	"github.com/app-sre/proms-mcp/internal/api/middleware"
	"github.com/app-sre/proms-mcp/internal/audit"
	"github.com/app-sre/proms-mcp/internal/core"
	"github.com/app-sre/proms-mcp/internal/mcp"
	"github.com/app-sre/proms-mcp/internal/monitoring"
	"github.com/app-sre/proms-mcp/internal/service"
	"github.com/app-sre/proms-mcp/internal/tasks"
)

type Server struct {
	verifier    *service.VerifyService
	queries     *service.QueryService
	taskManager *tasks.Manager
	auditor     core.Auditor
	metrics     *monitoring.Metrics
	mcpHandler  *mcp.Handler
}

func NewServer(
	verifier *service.VerifyService,
	queries *service.QueryService,
	taskManager *tasks.Manager,
	auditor core.Auditor,
	metrics *monitoring.Metrics,
) *Server {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}

	return &Server{
		verifier:    verifier,
		queries:     queries,
		taskManager: taskManager,
		auditor:     auditor,
		metrics:     metrics,
		mcpHandler:  mcp.NewHandler(queries, metrics),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// tool surface
	mux.Handle("POST "+MCPRoute, s.mcpHandler)
	mux.HandleFunc("GET "+WhoAmIRoute, s.handleWhoAmI)
	mux.HandleFunc("GET "+HealthRoute, s.handleHealth)

	// admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET "+ListTasksRoute, s.handleListTasks)
	adminMux.HandleFunc("POST "+TriggerTaskRoute, s.handleTriggerTask)
	adminMux.HandleFunc("GET "+LogsForTaskRoute, s.handleLogsForTask)
	adminMux.HandleFunc("GET "+ListAuditRoute, s.handleListAudit)
	mux.Handle(AdminParent, s.requireAdmin(adminMux))

	// every route on this listener except the probe paths requires a
	// verified identity; the request counter sits outside so denied
	// requests are counted too
	handler := middleware.BearerAuth(s.verifier, HealthRoute, MetricsRoute)(mux)
	handler = middleware.MetricsMiddleware(s.metrics)(handler)

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				handler)))
}
