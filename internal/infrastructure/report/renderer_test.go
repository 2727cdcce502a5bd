package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	"github.com/dreschagin/dbops-agent/internal/domain/service"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
)

func TestRenderHealth(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	r := NewHTMLRenderer(dir)
	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	file, err := r.RenderHealth(context.Background(), port.HealthReportInput{
		GeneratedAt: at,
		Latest: entity.NewMetricSnapshot(at, map[valueobject.MetricName]float64{
			valueobject.ConnectionCount: 150,
			valueobject.CPUUsage:        40,
		}),
		Thresholds: map[string]float64{"connection_count": 100, "cpu_usage": 80},
		SlowQueries: []port.SlowQuery{
			{Query: "SELECT * FROM orders WHERE note = '<script>'", Calls: 12, MeanTimeMS: 2500},
		},
		Recommendations: []string{"High number of active connections (150). Consider tuning the connection pool."},
	})
	require.NoError(t, err)

	assert.Equal(t, "database_health_20261019_080000.html", file.Name)
	assert.Equal(t, filepath.Join(dir, file.Name), file.Path)
	assert.Greater(t, file.SizeBytes, int64(0))

	content, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	html := string(content)
	assert.Contains(t, html, "<h1>Database Health Report</h1>")
	assert.Contains(t, html, "<td>connection_count</td><td>150.00</td>")
	assert.Contains(t, html, "<td>breached</td>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "No active alerts.")
	assert.Contains(t, html, "Consider tuning the connection pool.")
}

func TestRenderPerformance(t *testing.T) {
	r := NewHTMLRenderer(t.TempDir())
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	file, err := r.RenderPerformance(context.Background(), port.PerformanceReportInput{
		GeneratedAt: at,
		Days:        7,
		Tables:      []port.TableUsage{{Table: "public.orders", SeqScans: 10, SizeMB: 12.5}},
		Activity:    []service.DailyStats{{Day: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), Samples: 288, AvgQueriesPerSecond: 14.2, MaxConnections: 40}},
	})
	require.NoError(t, err)

	assert.Equal(t, "performance_report_20261019_090000.html", file.Name)
	content, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	html := string(content)
	assert.Contains(t, html, "Performance Report (last 7 days)")
	assert.Contains(t, html, "<td>public.orders</td>")
	assert.Contains(t, html, "<td>never</td>")
	assert.Contains(t, html, "<td>2026-10-18</td><td>288</td>")
	assert.Contains(t, html, "0 snapshots in the reporting window.")
}

func TestRenderHonoursCancelledContext(t *testing.T) {
	dir := t.TempDir()
	r := NewHTMLRenderer(dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RenderHealth(ctx, port.HealthReportInput{GeneratedAt: time.Now()})
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	r := NewHTMLRenderer(dir)

	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"database_health_a.html", "performance_report_b.html", "database_health_c.html"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", i+1)), 0o644))
		modified := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, os.Chtimes(path, modified, modified))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.html"), 0o755))

	files, err := r.List()
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "database_health_c.html", files[0].Name)
	assert.Equal(t, int64(3), files[0].SizeBytes)
	assert.Equal(t, "database_health_a.html", files[2].Name)
}

func TestListMissingDirectory(t *testing.T) {
	r := NewHTMLRenderer(filepath.Join(t.TempDir(), "absent"))
	files, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}
