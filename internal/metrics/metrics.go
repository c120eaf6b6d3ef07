package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the service. Each instance owns
// its registry so servers built in tests do not collide.
type Metrics struct {
	registry *prometheus.Registry

	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	MaintenanceRuns  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "serialdesk_api_request_duration_seconds",
				Help:    "HTTP request duration in seconds, by route, method and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "serialdesk_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serialdesk_snapshot_cache_hits_total",
			Help: "Aggregate snapshot reads served from Redis.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serialdesk_snapshot_cache_misses_total",
			Help: "Aggregate snapshot reads that went to the database.",
		}),
		MaintenanceRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "serialdesk_maintenance_runs_total",
				Help: "Maintenance task runs, by task and outcome.",
			},
			[]string{"task", "outcome"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestDuration,
		m.RequestsInFlight,
		m.CacheHits,
		m.CacheMisses,
		m.MaintenanceRuns,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MaintenanceRun counts one task execution.
func (m *Metrics) MaintenanceRun(task string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.MaintenanceRuns.WithLabelValues(task, outcome).Inc()
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}
