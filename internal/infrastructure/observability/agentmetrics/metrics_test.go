package agentmetrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTelemetry(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCollection(120*time.Millisecond, nil)
	m.ObserveCollection(time.Second, errors.New("db down"))
	m.SetSnapshotValue("cpu_usage", 42.5)
	m.AlertCreated("high", "performance")
	m.AlertResolved("connection")
	m.SetActiveAlerts(3)
	m.ObserveTaskRun("daily_backup", "success", 2*time.Second)
	m.SetTaskEnabled("daily_backup", false)
	m.SetTaskEnabled("weekly_optimize", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CollectionsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CollectionsTotal.WithLabelValues("error")))
	assert.Equal(t, 42.5, testutil.ToFloat64(m.SnapshotValue.WithLabelValues("cpu_usage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsCreatedTotal.WithLabelValues("high", "performance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsResolvedTotal.WithLabelValues("connection")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveAlerts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskRunsTotal.WithLabelValues("daily_backup", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TaskEnabled.WithLabelValues("daily_backup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskEnabled.WithLabelValues("weekly_optimize")))
}

func TestMiddlewareCountsRequests(t *testing.T) {
	m := New(prometheus.NewRegistry())
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/task/missing/run" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/api/status", "/api/status", "/api/task/missing/run"} {
		method := http.MethodGet
		if path != "/api/status" {
			method = http.MethodPost
		}
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/status", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/task/*", "POST", "404")))
}

func TestNormalizeRoute(t *testing.T) {
	tests := map[string]string{
		"/":                          "/",
		"/ws":                        "/ws",
		"/api/alerts":                "/api/alerts",
		"/api/task/daily_backup/run": "/api/task/*",
		"/download/report/x.html":    "/download/*",
		"/wp-admin":                  "other",
	}
	for path, want := range tests {
		assert.Equal(t, want, normalizeRoute(path), path)
	}
}
