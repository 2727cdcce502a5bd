package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
)

func TestDashboardHandler_Render(t *testing.T) {
	env := newTestEnv(t.TempDir(), t.TempDir(), &stubMaintenance{})
	env.alerts.Create("threshold", "cpu_usage", "CPU <high>", 95, 80, valueobject.SeverityHigh)
	env.alerts.Wait()

	rec := httptest.NewRecorder()
	env.dashboard.ShowDashboard(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `id="metric-cpu_usage"`)
	assert.Contains(t, body, "CPU &lt;high&gt;")
	assert.Contains(t, body, "/api/task/daily_backup/run")
}

func TestDashboardHandler_UnknownPath(t *testing.T) {
	env := newTestEnv(t.TempDir(), t.TempDir(), &stubMaintenance{})

	rec := httptest.NewRecorder()
	env.dashboard.ShowDashboard(rec, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
