package view

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/dbops-agent/internal/application/dto"
)

func TestDashboardRendersSections(t *testing.T) {
	at := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	next := at.Add(time.Hour)

	model := DashboardModel{
		Status: &dto.StatusResponseDTO{
			DatabaseConnected: true,
			MonitoringActive:  true,
			Metrics:           map[string]float64{"cpu_usage": 41.257, "connection_count": 12},
		},
		Alerts: &dto.AlertsResponseDTO{
			AlertCount: 1,
			Alerts: []*dto.AlertDTO{{
				Timestamp: at,
				Severity:  "high",
				Category:  "performance",
				Message:   "CPU <b>hot</b>",
			}},
		},
		Tasks: &dto.SchedulerStatusDTO{Tasks: []dto.TaskStatusDTO{{
			ID: "daily_backup", Name: "Daily backup", Enabled: true,
			ScheduleType: "daily", ScheduleValue: "02:00", NextRun: &next,
		}}},
		Reports: []dto.ReportDTO{{Name: "database_health_20261019_080000.html", Timestamp: at}},
	}

	var buf bytes.Buffer
	require.NoError(t, Dashboard(model).Render(context.Background(), &buf))
	html := buf.String()

	assert.Contains(t, html, `<td id="metric-cpu_usage">41.26</td>`)
	assert.Contains(t, html, "Database: connected")
	assert.Contains(t, html, "Scheduler: stopped")
	assert.Contains(t, html, "CPU &lt;b&gt;hot&lt;/b&gt;")
	assert.Contains(t, html, `<span class="badge high">HIGH</span>`)
	assert.Contains(t, html, "/api/task/daily_backup/toggle")
	assert.Contains(t, html, ">Disable<")
	assert.Contains(t, html, "2026-10-19 11:00:00")
	assert.Contains(t, html, `href="/download/report/database_health_20261019_080000.html"`)
}

func TestDashboardEmptyState(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dashboard(DashboardModel{}).Render(context.Background(), &buf))
	html := buf.String()

	assert.Contains(t, html, "No metrics collected yet.")
	assert.Contains(t, html, "No active alerts.")
	assert.Contains(t, html, "No tasks registered.")
	assert.Contains(t, html, "No reports generated yet.")
}
