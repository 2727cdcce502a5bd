package agentmetrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles prometheus collectors of the agent.
// Реализует port.Telemetry.
type Metrics struct {
	CollectionsTotal      *prometheus.CounterVec
	CollectionDurationSec prometheus.Histogram
	SnapshotValue         *prometheus.GaugeVec
	AlertsCreatedTotal    *prometheus.CounterVec
	AlertsResolvedTotal   *prometheus.CounterVec
	ActiveAlerts          prometheus.Gauge
	TaskRunsTotal         *prometheus.CounterVec
	TaskDurationSec       *prometheus.HistogramVec
	TaskEnabled           *prometheus.GaugeVec

	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	AuthFailures       prometheus.Counter
	RateLimitDropped   prometheus.Counter
}

func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		CollectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbops_collections_total",
			Help: "Total number of metric collection cycles.",
		}, []string{"result"}),
		CollectionDurationSec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dbops_collection_duration_seconds",
			Help:    "Duration of a metric collection cycle in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		SnapshotValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dbops_snapshot_value",
			Help: "Latest collected value per metric.",
		}, []string{"metric"}),
		AlertsCreatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbops_alerts_created_total",
			Help: "Total number of alerts raised.",
		}, []string{"severity", "category"}),
		AlertsResolvedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbops_alerts_resolved_total",
			Help: "Total number of alerts resolved.",
		}, []string{"category"}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dbops_active_alerts",
			Help: "Number of unresolved alerts.",
		}),
		TaskRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbops_task_runs_total",
			Help: "Total number of scheduled task executions.",
		}, []string{"task", "outcome"}),
		TaskDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dbops_task_duration_seconds",
			Help:    "Scheduled task duration in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"task"}),
		TaskEnabled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dbops_task_enabled",
			Help: "1 when the task is enabled, 0 otherwise.",
		}, []string{"task"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbops_http_requests_total",
			Help: "Total number of control surface HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dbops_http_request_duration_seconds",
			Help:    "Control surface request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dbops_http_auth_failures_total",
			Help: "Total number of rejected bearer tokens.",
		}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dbops_http_ratelimit_dropped_total",
			Help: "Total number of requests dropped by rate limiter.",
		}),
	}

	registry.MustRegister(
		m.CollectionsTotal,
		m.CollectionDurationSec,
		m.SnapshotValue,
		m.AlertsCreatedTotal,
		m.AlertsResolvedTotal,
		m.ActiveAlerts,
		m.TaskRunsTotal,
		m.TaskDurationSec,
		m.TaskEnabled,
		m.RequestsTotal,
		m.RequestDurationSec,
		m.AuthFailures,
		m.RateLimitDropped,
	)

	return m
}

func (m *Metrics) ObserveCollection(duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.CollectionsTotal.WithLabelValues(result).Inc()
	m.CollectionDurationSec.Observe(duration.Seconds())
}

func (m *Metrics) SetSnapshotValue(metric string, value float64) {
	m.SnapshotValue.WithLabelValues(metric).Set(value)
}

func (m *Metrics) AlertCreated(severity, category string) {
	m.AlertsCreatedTotal.WithLabelValues(severity, category).Inc()
}

func (m *Metrics) AlertResolved(category string) {
	m.AlertsResolvedTotal.WithLabelValues(category).Inc()
}

func (m *Metrics) SetActiveAlerts(count int) {
	m.ActiveAlerts.Set(float64(count))
}

func (m *Metrics) ObserveTaskRun(taskID, outcome string, duration time.Duration) {
	m.TaskRunsTotal.WithLabelValues(taskID, outcome).Inc()
	m.TaskDurationSec.WithLabelValues(taskID).Observe(duration.Seconds())
}

func (m *Metrics) SetTaskEnabled(taskID string, enabled bool) {
	value := 0.0
	if enabled {
		value = 1
	}
	m.TaskEnabled.WithLabelValues(taskID).Set(value)
}

// Middleware считает запросы control surface
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

// normalizeRoute ограничивает кардинальность label'а route
func normalizeRoute(path string) string {
	switch {
	case path == "/" || path == "/ws" || path == "/metrics" || path == "/healthz" || path == "/readyz":
		return path
	case strings.HasPrefix(path, "/api/task/"):
		return "/api/task/*"
	case strings.HasPrefix(path, "/api/"):
		return path
	case strings.HasPrefix(path, "/download/"):
		return "/download/*"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack passes websocket upgrades through wrapped ResponseWriter.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
