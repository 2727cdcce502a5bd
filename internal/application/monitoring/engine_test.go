package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/dbops-agent/internal/application/alerting"
	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

type scriptedSource struct {
	mu        sync.Mutex
	snapshots []map[string]float64
	err       error
	calls     int
}

func (s *scriptedSource) Snapshot(context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.snapshots) == 0 {
		return map[string]float64{port.RawConnectionCount: 1}, nil
	}
	next := s.snapshots[0]
	if len(s.snapshots) > 1 {
		s.snapshots = s.snapshots[1:]
	}
	return next, nil
}

func (s *scriptedSource) Reachable(context.Context) bool { return true }

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// panickingSource паникует первые panics вызовов
type panickingSource struct {
	scriptedSource
	panics int
}

func (s *panickingSource) Snapshot(ctx context.Context) (map[string]float64, error) {
	s.mu.Lock()
	if s.panics > 0 {
		s.panics--
		s.calls++
		s.mu.Unlock()
		panic("driver exploded")
	}
	s.mu.Unlock()
	return s.scriptedSource.Snapshot(ctx)
}

type staticStats struct {
	stats port.SystemStats
}

func (s *staticStats) Collect(context.Context) port.SystemStats { return s.stats }

func newEngine(source port.MetricSource, stats port.SystemStatsCollector, cfg Config) *Engine {
	log := logger.New("error")
	if cfg.Thresholds == nil {
		cfg.Thresholds = map[string]float64{
			"connection_count":   100,
			"cpu_usage":          80,
			"memory_usage":       85,
			"disk_usage":         90,
			"slow_queries_count": 10,
		}
	}
	return NewEngine(source, stats, alerting.NewManager(nil, nil, nil, nil, nil, log), nil, nil, nil, cfg, log)
}

func TestCollectOnceNormalizesSnapshot(t *testing.T) {
	source := &scriptedSource{snapshots: []map[string]float64{{
		port.RawConnectionCount: 12,
		port.RawUptimeSeconds:   7200,
		port.RawSlowQueries:     3,
		port.RawDatabaseSizeMB:  512.5,
	}}}
	stats := &staticStats{stats: port.SystemStats{CPUPercent: 42, MemoryPercent: 55, DiskPercent: 61}}
	engine := newEngine(source, stats, Config{})

	snapshot, err := engine.CollectOnce(context.Background())
	require.NoError(t, err)

	values := snapshot.Values()
	assert.Len(t, values, len(valueobject.AllMetricNames()))
	assert.Equal(t, 2.0, values[valueobject.UptimeHours])
	assert.Equal(t, 12.0, values[valueobject.ConnectionCount])
	assert.Equal(t, 0.0, values[valueobject.QueriesPerSecond])
	assert.Equal(t, 42.0, values[valueobject.CPUUsage])
	assert.Equal(t, 61.0, values[valueobject.DiskUsage])
}

func TestCollectOnceWithoutSystemStatsReportsZero(t *testing.T) {
	engine := newEngine(&scriptedSource{}, nil, Config{})

	snapshot, err := engine.CollectOnce(context.Background())
	require.NoError(t, err)

	cpu, ok := snapshot.Value(valueobject.CPUUsage)
	assert.True(t, ok)
	assert.Zero(t, cpu)
}

func TestCollectOnceSkipsEmptyOrFailedSnapshots(t *testing.T) {
	empty := newEngine(&scriptedSource{snapshots: []map[string]float64{{}}}, nil, Config{})
	_, err := empty.CollectOnce(context.Background())
	assert.ErrorIs(t, err, ErrEmptySnapshot)
	assert.Empty(t, empty.History(24))

	failing := newEngine(&scriptedSource{err: errors.New("connection refused")}, nil, Config{})
	_, err = failing.CollectOnce(context.Background())
	assert.Error(t, err)
	_, ok := failing.Latest()
	assert.False(t, ok)
}

func TestThresholdHysteresis(t *testing.T) {
	stats := &staticStats{}
	engine := newEngine(&scriptedSource{}, stats, Config{})
	alerts := engine.Alerts()

	stats.stats.CPUPercent = 96
	_, err := engine.CollectOnce(context.Background())
	require.NoError(t, err)

	active := alerts.Active("")
	require.Len(t, active, 1)
	assert.Equal(t, "cpu_usage", active[0].MetricName())
	assert.Equal(t, "performance", active[0].Category())
	assert.Equal(t, valueobject.SeverityMedium, active[0].Severity())
	assert.Equal(t, "CPU usage exceeds threshold: 96.00 > 80.00", active[0].Message())

	// повторное превышение не создает дубликат
	stats.stats.CPUPercent = 170
	_, _ = engine.CollectOnce(context.Background())
	assert.Len(t, alerts.Active(""), 1)

	// значение равное порогу разрешает алерт
	stats.stats.CPUPercent = 80
	_, _ = engine.CollectOnce(context.Background())
	assert.Empty(t, alerts.Active(""))
	assert.Len(t, alerts.History(), 1)

	stats.stats.CPUPercent = 170
	_, _ = engine.CollectOnce(context.Background())
	active = alerts.Active("")
	require.Len(t, active, 1)
	assert.Equal(t, valueobject.SeverityCritical, active[0].Severity())
}

func TestResolutionIgnoresCategory(t *testing.T) {
	engine := newEngine(&scriptedSource{}, &staticStats{}, Config{})
	alerts := engine.Alerts()

	alerts.Create("custom", "disk_usage", "manual", 99, 90, valueobject.SeverityHigh)
	_, err := engine.CollectOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, alerts.HasActive("disk_usage"))
}

func TestMetricsWithoutThresholdAreIgnored(t *testing.T) {
	engine := newEngine(&scriptedSource{}, &staticStats{stats: port.SystemStats{CPUPercent: 99}},
		Config{Thresholds: map[string]float64{"memory_usage": 50}})

	_, err := engine.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, engine.Alerts().Active(""))
}

func TestHistoryCapacity(t *testing.T) {
	engine := newEngine(&scriptedSource{}, nil, Config{HistoryCapacity: 3})
	base := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		engine.now = func() time.Time { return at }
		_, err := engine.CollectOnce(context.Background())
		require.NoError(t, err)
	}

	history := engine.History(24)
	require.Len(t, history, 3)
	assert.True(t, history[0].CapturedAt().Equal(base.Add(2*time.Minute)))

	latest, ok := engine.Latest()
	require.True(t, ok)
	assert.True(t, latest.CapturedAt().Equal(base.Add(4*time.Minute)))
}

func TestHistoryWindow(t *testing.T) {
	engine := newEngine(&scriptedSource{}, nil, Config{})
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	for _, age := range []time.Duration{3 * time.Hour, 2 * time.Hour, 30 * time.Minute} {
		at := now.Add(-age)
		engine.now = func() time.Time { return at }
		_, _ = engine.CollectOnce(context.Background())
	}

	engine.now = func() time.Time { return now }
	assert.Len(t, engine.History(1), 1)
	assert.Len(t, engine.History(2), 2)
	assert.Len(t, engine.History(24), 3)
	assert.Empty(t, engine.History(0))
}

func TestCustomChecksFailuresAreContained(t *testing.T) {
	engine := newEngine(&scriptedSource{}, nil, Config{})

	var calls int
	engine.AddCustomCheck("broken", func(context.Context, *entity.MetricSnapshot, *alerting.Manager) error {
		return errors.New("boom")
	})
	engine.AddCustomCheck("panicking", func(context.Context, *entity.MetricSnapshot, *alerting.Manager) error {
		panic("unexpected")
	})
	engine.AddCustomCheck("counting", func(_ context.Context, _ *entity.MetricSnapshot, alerts *alerting.Manager) error {
		calls++
		alerts.Create("custom", "custom_metric", "custom", 1, 0, valueobject.SeverityLow)
		return nil
	})

	for i := 0; i < 2; i++ {
		_, err := engine.CollectOnce(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, 2, calls, "checks stay registered after failures")
	assert.Len(t, engine.Alerts().History(), 2)
}

func TestDatabaseGrowthAndQueryPatternChecks(t *testing.T) {
	source := &scriptedSource{snapshots: []map[string]float64{
		{port.RawDatabaseSizeMB: 2048, port.RawConnectionCount: 10, port.RawSlowQueries: 8},
		{port.RawDatabaseSizeMB: 512, port.RawConnectionCount: 10, port.RawSlowQueries: 1},
	}}
	engine := newEngine(source, nil, Config{Thresholds: map[string]float64{"cpu_usage": 80}})
	engine.AddCustomCheck("database_growth", DatabaseGrowthCheck(1024))
	engine.AddCustomCheck("query_patterns", QueryPatternCheck(0.5))

	_, err := engine.CollectOnce(context.Background())
	require.NoError(t, err)
	alerts := engine.Alerts()
	assert.True(t, alerts.HasActive("database_size_mb"))
	assert.True(t, alerts.HasActive(SlowQueryRatioMetric))

	_, err = engine.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts.Active(""))
}

func TestStartStopIsIdempotent(t *testing.T) {
	source := &scriptedSource{}
	engine := newEngine(source, nil, Config{Interval: time.Hour})

	engine.Stop()
	assert.False(t, engine.IsActive())

	engine.Start()
	engine.Start()
	assert.True(t, engine.IsActive())
	assert.Eventually(t, func() bool { return source.Calls() == 1 }, time.Second, 5*time.Millisecond)

	started := time.Now()
	engine.Stop()
	assert.Less(t, time.Since(started), time.Second, "stop interrupts the interval sleep")
	assert.False(t, engine.IsActive())
	assert.Equal(t, 1, source.Calls(), "second Start must not spawn another worker")

	engine.Stop()
}

func TestRunCycleBacksOffAfterPanic(t *testing.T) {
	cfg := Config{Interval: time.Minute, ErrorBackoff: 7 * time.Second}

	engine := newEngine(&panickingSource{panics: 1}, nil, cfg)
	assert.Equal(t, 7*time.Second, engine.runCycle(context.Background()))
	assert.Equal(t, time.Minute, engine.runCycle(context.Background()), "next cycle is back to normal")

	// обычная ошибка сбора не считается сбоем цикла
	failing := newEngine(&scriptedSource{err: errors.New("connection refused")}, nil, cfg)
	assert.Equal(t, time.Minute, failing.runCycle(context.Background()))
}

func TestLoopSurvivesPanickingCycle(t *testing.T) {
	source := &panickingSource{panics: 2}
	engine := newEngine(source, nil, Config{Interval: time.Hour, ErrorBackoff: 10 * time.Millisecond})

	engine.Start()
	defer engine.Stop()

	// две паники с короткой паузой, затем успешный сбор
	assert.Eventually(t, func() bool { return source.Calls() == 3 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return len(engine.History(1)) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, engine.IsActive())
}

func TestStatus(t *testing.T) {
	engine := newEngine(&scriptedSource{}, &staticStats{stats: port.SystemStats{DiskPercent: 99}}, Config{Interval: 60 * time.Second})

	status := engine.Status()
	assert.Nil(t, status.LastCollection)
	assert.Equal(t, 60.0, status.MonitoringInterval)

	_, err := engine.CollectOnce(context.Background())
	require.NoError(t, err)

	status = engine.Status()
	assert.Equal(t, 1, status.MetricsCollected)
	assert.Equal(t, 1, status.ActiveAlerts)
	assert.Equal(t, 1, status.AlertSummary.ByCategory["disk"])
	assert.NotNil(t, status.LastCollection)
}

func TestExportHistory(t *testing.T) {
	engine := newEngine(&scriptedSource{}, nil, Config{})
	_, err := engine.CollectOnce(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, engine.ExportHistory(&buf, 24))

	var payload struct {
		ExportTimestamp string                   `json:"export_timestamp"`
		HoursBack       float64                  `json:"hours_back"`
		Metrics         []map[string]interface{} `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	assert.Equal(t, 24.0, payload.HoursBack)
	require.Len(t, payload.Metrics, 1)
	assert.IsType(t, "", payload.Metrics[0]["timestamp"])
	assert.Equal(t, 1.0, payload.Metrics[0]["connection_count"])

	path := filepath.Join(t.TempDir(), "metrics.json")
	require.NoError(t, engine.ExportHistoryFile(path, 24))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
