package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/dreschagin/dbops-agent/internal/application/dto"
	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
)

type fakeSource struct {
	reachable bool
}

func (f *fakeSource) Snapshot(context.Context) (map[string]float64, error) {
	return map[string]float64{}, nil
}

func (f *fakeSource) Reachable(context.Context) bool { return f.reachable }

type fakeMaintenance struct {
	name      string
	backupErr error
	tables    map[string]bool
	optErr    error
	paths     []string
}

func (f *fakeMaintenance) OptimizeTables(context.Context) (map[string]bool, error) {
	return f.tables, f.optErr
}

func (f *fakeMaintenance) Backup(_ context.Context, path string) error {
	f.paths = append(f.paths, path)
	if f.backupErr != nil {
		return f.backupErr
	}
	return os.WriteFile(path, []byte("-- dump\n"), 0o600)
}

func (f *fakeMaintenance) DatabaseName() string { return f.name }

type fakeStorage struct {
	mu      sync.Mutex
	err     error
	uploads []string
}

func (f *fakeStorage) Upload(_ context.Context, kind, localPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, kind+":"+localPath)
	if f.err != nil {
		return "", f.err
	}
	return kind + "/" + localPath, nil
}

func (f *fakeStorage) ObjectURL(_ context.Context, key string) (string, error) {
	return "https://bucket/" + key, nil
}

type fakeMetrics struct {
	latest     *entity.MetricSnapshot
	collected  *entity.MetricSnapshot
	collectErr error
	history    []*entity.MetricSnapshot
	thresholds map[string]float64
	hours      []float64
}

func (f *fakeMetrics) Latest() (*entity.MetricSnapshot, bool) {
	return f.latest, f.latest != nil
}

func (f *fakeMetrics) CollectOnce(context.Context) (*entity.MetricSnapshot, error) {
	return f.collected, f.collectErr
}

func (f *fakeMetrics) History(hours float64) []*entity.MetricSnapshot {
	f.hours = append(f.hours, hours)
	return f.history
}

func (f *fakeMetrics) Thresholds() map[string]float64 { return f.thresholds }

type fakeReportData struct {
	slow    []port.SlowQuery
	slowErr error
	tables  []port.TableUsage
}

func (f *fakeReportData) SlowQueries(context.Context, int) ([]port.SlowQuery, error) {
	return f.slow, f.slowErr
}

func (f *fakeReportData) TableUsage(context.Context) ([]port.TableUsage, error) {
	return f.tables, nil
}

type fakeRenderer struct {
	health      *port.HealthReportInput
	performance *port.PerformanceReportInput
	files       []port.ReportFile
	err         error
}

func (f *fakeRenderer) RenderHealth(_ context.Context, input port.HealthReportInput) (port.ReportFile, error) {
	f.health = &input
	if f.err != nil {
		return port.ReportFile{}, f.err
	}
	return port.ReportFile{Name: "database_health.html", Path: "reports/database_health.html"}, nil
}

func (f *fakeRenderer) RenderPerformance(_ context.Context, input port.PerformanceReportInput) (port.ReportFile, error) {
	f.performance = &input
	if f.err != nil {
		return port.ReportFile{}, f.err
	}
	return port.ReportFile{Name: "performance_report.html", Path: "reports/performance_report.html"}, nil
}

func (f *fakeRenderer) List() ([]port.ReportFile, error) {
	return f.files, f.err
}

type fakeJanitor struct {
	removed map[string]int
	err     error
	calls   []string
}

func (f *fakeJanitor) RemoveOlderThan(dir, pattern string, maxAge time.Duration) (int, error) {
	f.calls = append(f.calls, dir+"/"+pattern+"@"+maxAge.String())
	if f.err != nil {
		return 0, f.err
	}
	return f.removed[dir], nil
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
	sets  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.items[key]
	if !ok {
		return port.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = data
	c.sets++
	return nil
}

func (c *memoryCache) Close() error { return nil }

func (c *memoryCache) Sets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

type fakeTasks struct {
	enabled bool
	err     error
	ran     []string
	known   map[string]bool
}

func (f *fakeTasks) Task(id string) (*entity.Task, bool) {
	if !f.known[id] {
		return nil, false
	}
	cadence, err := valueobject.NewIntervalCadence(5 * time.Minute)
	if err != nil {
		return nil, false
	}
	task, err := entity.NewTask(id, id, cadence, f.enabled)
	return task, err == nil
}

type fakeJournal struct {
	runs  []*entity.TaskRun
	err   error
	limit int
}

func (j *fakeJournal) Save(_ context.Context, run *entity.TaskRun) error {
	j.runs = append(j.runs, run)
	return nil
}

func (j *fakeJournal) ListByTask(_ context.Context, taskID string, limit int) ([]*entity.TaskRun, error) {
	j.limit = limit
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

func (f *fakeTasks) ToggleTask(id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.enabled = !f.enabled
	return f.enabled, nil
}

func (f *fakeTasks) RunNow(id string) error {
	if f.err != nil {
		return f.err
	}
	f.ran = append(f.ran, id)
	return nil
}

func (f *fakeTasks) Status() *dto.SchedulerStatusDTO {
	return &dto.SchedulerStatusDTO{SchedulerActive: true}
}

type fileExporter struct {
	err error
}

func (f *fileExporter) ExportHistoryFile(path string, _ float64) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(path, []byte("{}"), 0o600)
}

func (f *fileExporter) ExportTaskLogFile(path string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(path, []byte("{}"), 0o600)
}

var errBoom = errors.New("boom")
