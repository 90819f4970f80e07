package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/app-sre/proms-mcp/internal/buildinfo"
)

// Metrics bundles every instrument the gateway exposes. It carries its
// own registry so tests can create isolated instances and the /metrics
// endpoint never leaks Go runtime collectors from other libraries.
const namespace = "proms_mcp"

type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts HTTP requests by method and endpoint.
	RequestsTotal *prometheus.CounterVec

	// AuthRequests counts verification decisions by authenticator and result.
	AuthRequests *prometheus.CounterVec

	// CacheEvents counts identity cache activity (hit, miss, store, evict).
	CacheEvents *prometheus.CounterVec

	// UpstreamDuration tracks how long each authenticator attempt took.
	UpstreamDuration *prometheus.HistogramVec

	// ToolRequests counts MCP tool calls by tool and status.
	ToolRequests *prometheus.CounterVec

	// ToolDuration tracks MCP tool call latency.
	ToolDuration *prometheus.HistogramVec

	// DatasourcesConfigured reflects the current datasource count.
	DatasourcesConfigured prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "endpoint"}),
		AuthRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authn_requests_total",
			Help:      "Verification decisions by authenticator and result.",
		}, []string{"method", "result"}),
		CacheEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authn_cache_events_total",
			Help:      "Identity cache events.",
		}, []string{"event"}),
		UpstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of authenticator attempts against the upstream.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "result"}),
		ToolRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_requests_total",
			Help:      "MCP tool calls by tool and status.",
		}, []string{"tool", "status"}),
		ToolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "MCP tool call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		DatasourcesConfigured: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "datasources_configured",
			Help:      "Number of datasources currently registered.",
		}),
	}

	info := buildinfo.GetBuildInfo()
	factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build metadata, value is always 1.",
	}, []string{"service", "version", "commit"}).
		WithLabelValues(info.Service, info.Version, info.CommitHash).Set(1)

	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
