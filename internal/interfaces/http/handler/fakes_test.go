package handler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dreschagin/dbops-agent/internal/application/alerting"
	"github.com/dreschagin/dbops-agent/internal/application/dto"
	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/application/usecase"
	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	"github.com/dreschagin/dbops-agent/internal/domain/service"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
	"github.com/dreschagin/dbops-agent/internal/infrastructure/report"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

type stubSource struct{ up bool }

func (s stubSource) Snapshot(context.Context) (map[string]float64, error) {
	return map[string]float64{}, nil
}

func (s stubSource) Reachable(context.Context) bool { return s.up }

type stubMonitor struct {
	latest *entity.MetricSnapshot
}

func (m *stubMonitor) Latest() (*entity.MetricSnapshot, bool) { return m.latest, m.latest != nil }

func (m *stubMonitor) CollectOnce(context.Context) (*entity.MetricSnapshot, error) {
	return m.latest, nil
}

func (m *stubMonitor) History(float64) []*entity.MetricSnapshot {
	if m.latest == nil {
		return nil
	}
	return []*entity.MetricSnapshot{m.latest}
}

func (m *stubMonitor) Thresholds() map[string]float64 {
	return map[string]float64{"cpu_usage": 80}
}

func (m *stubMonitor) Status() *dto.MonitoringStatusDTO {
	return &dto.MonitoringStatusDTO{MonitoringActive: true, MonitoringInterval: 300, MetricsCollected: 1}
}

type stubScheduler struct {
	enabled map[string]bool
	ran     []string
}

func (s *stubScheduler) ToggleTask(id string) (bool, error) {
	state, ok := s.enabled[id]
	if !ok {
		return false, fmt.Errorf("task not found: %s", id)
	}
	s.enabled[id] = !state
	return !state, nil
}

func (s *stubScheduler) RunNow(id string) error {
	if _, ok := s.enabled[id]; !ok {
		return fmt.Errorf("task not found: %s", id)
	}
	s.ran = append(s.ran, id)
	return nil
}

func (s *stubScheduler) Status() *dto.SchedulerStatusDTO {
	status := &dto.SchedulerStatusDTO{SchedulerActive: true, TotalTasks: len(s.enabled)}
	for id, enabled := range s.enabled {
		if enabled {
			status.EnabledTasks++
		}
		status.Tasks = append(status.Tasks, dto.TaskStatusDTO{ID: id, Name: id, Enabled: enabled})
	}
	return status
}

func (s *stubScheduler) IsActive() bool { return true }

func (s *stubScheduler) Task(id string) (*entity.Task, bool) {
	enabled, ok := s.enabled[id]
	if !ok {
		return nil, false
	}
	cadence, err := valueobject.NewDailyCadence("02:00")
	if err != nil {
		return nil, false
	}
	task, err := entity.NewTask(id, id, cadence, enabled)
	return task, err == nil
}

type stubJournal struct {
	runs []*entity.TaskRun
	err  error
}

func (j *stubJournal) Save(_ context.Context, run *entity.TaskRun) error {
	j.runs = append(j.runs, run)
	return nil
}

func (j *stubJournal) ListByTask(_ context.Context, taskID string, limit int) ([]*entity.TaskRun, error) {
	if j.err != nil {
		return nil, j.err
	}
	var out []*entity.TaskRun
	for _, run := range j.runs {
		if run.TaskID == taskID && len(out) < limit {
			out = append(out, run)
		}
	}
	return out, nil
}

type stubMaintenance struct {
	backupErr error
}

func (m *stubMaintenance) OptimizeTables(context.Context) (map[string]bool, error) {
	return map[string]bool{"orders": true, "users": false}, nil
}

func (m *stubMaintenance) Backup(_ context.Context, path string) error {
	if m.backupErr != nil {
		return m.backupErr
	}
	return os.WriteFile(path, []byte("-- dump\n"), 0o600)
}

func (m *stubMaintenance) DatabaseName() string { return "shop" }

type stubReportData struct{}

func (stubReportData) SlowQueries(context.Context, int) ([]port.SlowQuery, error) {
	return []port.SlowQuery{{Query: "SELECT 1", Calls: 3, MeanTimeMS: 1200}}, nil
}

func (stubReportData) TableUsage(context.Context) ([]port.TableUsage, error) {
	return nil, nil
}

type stubStorage struct{}

func (stubStorage) Upload(_ context.Context, kind, localPath string) (string, error) {
	return kind + "/object", nil
}

func (stubStorage) ObjectURL(_ context.Context, key string) (string, error) {
	return "https://bucket.example/" + key, nil
}

var errDumpFailed = errors.New("pg_dump: connection refused")

type testEnv struct {
	api        *APIHandler
	dashboard  *DashboardHandler
	download   *DownloadHandler
	scheduler  *stubScheduler
	journal    *stubJournal
	alerts     *alerting.Manager
	reportsDir string
	backupsDir string
}

func newTestEnv(reportsDir, backupsDir string, maintenance *stubMaintenance) *testEnv {
	log := logger.New("error")
	monitor := &stubMonitor{latest: entity.NewMetricSnapshot(time.Now(), map[valueobject.MetricName]float64{
		valueobject.CPUUsage:        42.5,
		valueobject.ConnectionCount: 12,
	})}
	scheduler := &stubScheduler{enabled: map[string]bool{"daily_backup": true}}
	alerts := alerting.NewManager(nil, nil, nil, nil, nil, log)
	renderer := report.NewHTMLRenderer(reportsDir)

	statusUC := usecase.NewGetStatusUseCase(stubSource{up: true}, monitor, scheduler)
	historyUC := usecase.NewGetMetricsHistoryUseCase(monitor, service.NewSnapshotAggregator(), nil, log)
	alertsUC := usecase.NewGetAlertsUseCase(alerts)
	journal := &stubJournal{}
	tasksUC := usecase.NewManageTasksUseCase(scheduler, journal, log)
	listUC := usecase.NewListReportsUseCase(renderer, log)
	reportUC := usecase.NewGenerateReportUseCase(monitor, stubReportData{}, renderer, alerts, nil, 7, log)
	backupUC := usecase.NewBackupUseCase(maintenance, stubStorage{}, backupsDir, log)
	optimizeUC := usecase.NewOptimizeTablesUseCase(maintenance, log)

	return &testEnv{
		api: NewAPIHandler(statusUC, historyUC, alertsUC, tasksUC, listUC, reportUC,
			backupUC, optimizeUC, stubStorage{}, log),
		dashboard:  NewDashboardHandler(statusUC, alertsUC, tasksUC, listUC, log),
		download:   NewDownloadHandler(reportsDir, backupsDir, log),
		scheduler:  scheduler,
		journal:    journal,
		alerts:     alerts,
		reportsDir: reportsDir,
		backupsDir: backupsDir,
	}
}
