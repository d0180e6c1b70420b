package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orgsync/directory-sync/internal/domain"
)

const namespace = "directory_sync"

// Metrics holds the Prometheus collectors exposed on /metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec

	syncRuns     *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
	syncRecords  *prometheus.CounterVec
	lastSuccess  prometheus.Gauge
}

// NewMetrics registers all collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "HTTP error responses by error code.",
		}, []string{"path", "method", "code"}),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Sync runs by mode and outcome.",
		}, []string{"mode", "success"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of sync runs.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900},
		}, []string{"mode"}),
		syncRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Replicated records by kind and outcome.",
		}, []string{"kind", "outcome"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful sync.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.errors,
		m.syncRuns,
		m.syncDuration,
		m.syncRecords,
		m.lastSuccess,
	)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordSync records the outcome of one sync run.
func (m *Metrics) RecordSync(result *domain.SyncResult) {
	if m == nil || result == nil {
		return
	}
	mode := string(result.Mode)
	m.syncRuns.WithLabelValues(mode, strconv.FormatBool(result.Success)).Inc()
	m.syncDuration.WithLabelValues(mode).Observe(float64(result.DurationMs) / 1000)

	m.addStats("department", result.DepartmentStats)
	m.addStats("user", result.UserStats)

	if result.Success {
		m.lastSuccess.Set(float64(result.FinishedAt.Unix()))
	}
}

func (m *Metrics) addStats(kind string, stats domain.SyncStats) {
	m.syncRecords.WithLabelValues(kind, "created").Add(float64(stats.Created))
	m.syncRecords.WithLabelValues(kind, "updated").Add(float64(stats.Updated))
	m.syncRecords.WithLabelValues(kind, "skipped").Add(float64(stats.Skipped))
	m.syncRecords.WithLabelValues(kind, "failed").Add(float64(stats.Failed))
	m.syncRecords.WithLabelValues(kind, "deactivated").Add(float64(stats.Deactivated))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
