package monitoring

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/app-sre/proms-mcp/internal/buildinfo"
)

// HealthStatus is the /health answer. It is deliberately served on the
// monitoring listener, which is never auth-gated.
type HealthStatus struct {
	Status        string       `json:"status"`
	Service       string       `json:"service"`
	Version       string       `json:"version"`
	Datasources   int          `json:"datasources"`
	UptimeSeconds float64      `json:"uptime_seconds"`
	Tasks         []TaskStatus `json:"tasks,omitempty"`
}

// TaskStatus summarizes one background task for /health.
type TaskStatus struct {
	Name       string    `json:"name"`
	Running    bool      `json:"running"`
	LastResult string    `json:"last_result,omitempty"`
	LastRun    time.Time `json:"last_run,omitzero"`
}

// StatusSource supplies the live parts of a HealthStatus: the current
// datasource count and task states.
type StatusSource func() (datasources int, tasks []TaskStatus)

// NewServer builds the monitoring listener with /health and /metrics.
func NewServer(addr string, metrics *Metrics, source StatusSource) *http.Server {
	started := time.Now()
	info := buildinfo.GetBuildInfo()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		status := HealthStatus{
			Status:        "healthy",
			Service:       info.Service,
			Version:       info.Version,
			UptimeSeconds: time.Since(started).Seconds(),
		}
		if source != nil {
			status.Datasources, status.Tasks = source()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Error().Err(err).Msg("failed to write health response")
		}
	})

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}
