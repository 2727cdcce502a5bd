package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dreschagin/dbops-agent/internal/application/alerting"
	"github.com/dreschagin/dbops-agent/internal/application/dto"
	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	"github.com/dreschagin/dbops-agent/internal/domain/service"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

const (
	DefaultInterval        = 300 * time.Second
	DefaultErrorBackoff    = 30 * time.Second
	DefaultHistoryCapacity = 1000

	stopTimeout = 5 * time.Second
)

// ErrEmptySnapshot источник вернул пустой snapshot, цикл пропускается
var ErrEmptySnapshot = errors.New("metric source returned an empty snapshot")

// Config параметры движка мониторинга
type Config struct {
	Interval        time.Duration
	ErrorBackoff    time.Duration
	HistoryCapacity int
	Thresholds      map[string]float64
}

// CheckFunc пользовательская проверка, выполняется после пороговых
type CheckFunc func(ctx context.Context, snapshot *entity.MetricSnapshot, alerts *alerting.Manager) error

type customCheck struct {
	name string
	fn   CheckFunc
}

// Engine периодически собирает метрики, ведет историю и вычисляет алерты
type Engine struct {
	source    port.MetricSource
	system    port.SystemStatsCollector
	alerts    *alerting.Manager
	publisher port.MetricsPublisher
	notifier  port.NotificationService
	telemetry port.Telemetry
	tracked   []service.TrackedMetric
	cfg       Config
	logger    *logger.Logger

	checksMu sync.RWMutex
	checks   []customCheck

	historyMu sync.RWMutex
	history   []*entity.MetricSnapshot

	stateMu sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	now func() time.Time
}

// NewEngine создает движок мониторинга
func NewEngine(
	source port.MetricSource,
	system port.SystemStatsCollector, // Can be nil, OS metrics are then reported as 0
	alerts *alerting.Manager,
	publisher port.MetricsPublisher, // Can be nil if CloudWatch disabled
	notifier port.NotificationService, // Can be nil if dashboard disabled
	telemetry port.Telemetry, // Can be nil
	cfg Config,
	logger *logger.Logger,
) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = DefaultHistoryCapacity
	}

	thresholds := make(map[string]float64, len(cfg.Thresholds))
	for k, v := range cfg.Thresholds {
		thresholds[k] = v
	}
	cfg.Thresholds = thresholds

	return &Engine{
		source:    source,
		system:    system,
		alerts:    alerts,
		publisher: publisher,
		notifier:  notifier,
		telemetry: telemetry,
		tracked:   service.DefaultTrackedMetrics(),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// AddCustomCheck регистрирует пользовательскую проверку
func (e *Engine) AddCustomCheck(name string, fn CheckFunc) {
	e.checksMu.Lock()
	e.checks = append(e.checks, customCheck{name: name, fn: fn})
	e.checksMu.Unlock()

	e.logger.Info("Custom check registered", "check", name)
}

// Alerts возвращает менеджер алертов движка
func (e *Engine) Alerts() *alerting.Manager {
	return e.alerts
}

// Thresholds возвращает копию таблицы порогов
func (e *Engine) Thresholds() map[string]float64 {
	result := make(map[string]float64, len(e.cfg.Thresholds))
	for k, v := range e.cfg.Thresholds {
		result[k] = v
	}
	return result
}

// Start запускает цикл сбора. Повторный вызов только пишет предупреждение.
func (e *Engine) Start() {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if e.running {
		e.logger.Warn("Monitoring is already active")
		return
	}

	e.running = true
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.loop(e.stop, e.done)

	e.logger.Info("Monitoring started", "interval", e.cfg.Interval.String())
}

// Stop останавливает цикл и ждет его завершения не дольше 5 секунд
func (e *Engine) Stop() {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if !e.running {
		return
	}

	close(e.stop)
	select {
	case <-e.done:
	case <-time.After(stopTimeout):
		e.logger.Warn("Monitoring loop did not stop in time")
	}
	e.running = false

	e.logger.Info("Monitoring stopped")
}

// IsActive сообщает, запущен ли цикл
func (e *Engine) IsActive() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.running
}

func (e *Engine) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		wait := e.runCycle(ctx)

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runCycle возвращает паузу до следующего цикла
func (e *Engine) runCycle(ctx context.Context) (wait time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Monitoring cycle panicked", fmt.Errorf("%v", r))
			wait = e.cfg.ErrorBackoff
		}
	}()

	if _, err := e.CollectOnce(ctx); err != nil {
		e.logger.Warn("Metrics collection skipped", "error", err.Error())
	}
	return e.cfg.Interval
}

// CollectOnce выполняет один цикл: сбор, история, пороги, пользовательские проверки
func (e *Engine) CollectOnce(ctx context.Context) (*entity.MetricSnapshot, error) {
	started := e.now()

	raw, err := e.source.Snapshot(ctx)
	if err == nil && len(raw) == 0 {
		err = ErrEmptySnapshot
	}
	if err != nil {
		if e.telemetry != nil {
			e.telemetry.ObserveCollection(e.now().Sub(started), err)
		}
		return nil, fmt.Errorf("failed to collect database metrics: %w", err)
	}

	snapshot := entity.NewMetricSnapshot(started, e.normalize(ctx, raw))
	e.appendHistory(snapshot)

	e.evaluateThresholds(snapshot)
	e.runCustomChecks(ctx, snapshot)

	if e.telemetry != nil {
		e.telemetry.ObserveCollection(e.now().Sub(started), nil)
		for name, value := range snapshot.Values() {
			e.telemetry.SetSnapshotValue(name.String(), value)
		}
	}
	e.export(ctx, snapshot)

	e.logger.Debug("Metrics collected", "metrics", snapshot.Len(), "history", e.historyLen())
	return snapshot, nil
}

// normalize приводит сырые метрики к фиксированной схеме
func (e *Engine) normalize(ctx context.Context, raw map[string]float64) map[valueobject.MetricName]float64 {
	values := map[valueobject.MetricName]float64{
		valueobject.ConnectionCount:  raw[port.RawConnectionCount],
		valueobject.UptimeHours:      raw[port.RawUptimeSeconds] / 3600,
		valueobject.SlowQueriesCount: raw[port.RawSlowQueries],
		valueobject.DatabaseSizeMB:   raw[port.RawDatabaseSizeMB],
		valueobject.QueriesPerSecond: raw[port.RawQueriesPerSecond],
		valueobject.TableLocksWaited: raw[port.RawTableLocksWaited],
	}

	var stats port.SystemStats
	if e.system != nil {
		stats = e.system.Collect(ctx)
	}
	values[valueobject.CPUUsage] = stats.CPUPercent
	values[valueobject.MemoryUsage] = stats.MemoryPercent
	values[valueobject.DiskUsage] = stats.DiskPercent

	return values
}

func (e *Engine) appendHistory(snapshot *entity.MetricSnapshot) {
	e.historyMu.Lock()
	defer e.historyMu.Unlock()

	e.history = append(e.history, snapshot)
	if over := len(e.history) - e.cfg.HistoryCapacity; over > 0 {
		e.history = append([]*entity.MetricSnapshot(nil), e.history[over:]...)
	}
}

// evaluateThresholds: не больше одного активного алерта на метрику
func (e *Engine) evaluateThresholds(snapshot *entity.MetricSnapshot) {
	for _, check := range e.tracked {
		value, ok := snapshot.Value(check.Name)
		if !ok {
			continue
		}
		limit, ok := e.cfg.Thresholds[check.Name.String()]
		if !ok {
			continue
		}

		if value > limit {
			if e.alerts.HasActive(check.Name.String()) {
				continue
			}
			e.alerts.Create(
				check.Category,
				check.Name.String(),
				fmt.Sprintf("%s exceeds threshold: %.2f > %.2f", check.Description, value, limit),
				value,
				limit,
				service.DetermineSeverity(value, limit),
			)
			continue
		}

		for _, id := range e.alerts.ActiveIDsForMetric(check.Name.String()) {
			e.alerts.Resolve(id)
		}
	}
}

func (e *Engine) runCustomChecks(ctx context.Context, snapshot *entity.MetricSnapshot) {
	e.checksMu.RLock()
	checks := append([]customCheck(nil), e.checks...)
	e.checksMu.RUnlock()

	for _, check := range checks {
		if err := e.runCheck(ctx, check, snapshot); err != nil {
			e.logger.Error("Custom check failed", err, "check", check.name)
		}
	}
}

func (e *Engine) runCheck(ctx context.Context, check customCheck, snapshot *entity.MetricSnapshot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return check.fn(ctx, snapshot, e.alerts)
}

// export публикует snapshot во внешние системы, ошибки только логируются
func (e *Engine) export(ctx context.Context, snapshot *entity.MetricSnapshot) {
	if e.publisher != nil {
		if err := e.publisher.PublishSnapshot(ctx, snapshot); err != nil {
			e.logger.Warn("Failed to publish snapshot", "error", err.Error())
		}
	}
	if e.notifier != nil {
		e.notifier.Broadcast(dto.NewSnapshotDTO(snapshot, e.cfg.Thresholds))
	}
}

// History возвращает snapshot'ы за последние hours часов
func (e *Engine) History(hours float64) []*entity.MetricSnapshot {
	window, err := valueobject.LastHours(e.now(), hours)
	if err != nil {
		return []*entity.MetricSnapshot{}
	}

	e.historyMu.RLock()
	defer e.historyMu.RUnlock()

	result := make([]*entity.MetricSnapshot, 0, len(e.history))
	for _, snapshot := range e.history {
		if window.IncludesSince(snapshot.CapturedAt()) {
			result = append(result, snapshot)
		}
	}
	return result
}

// Latest возвращает последний snapshot
func (e *Engine) Latest() (*entity.MetricSnapshot, bool) {
	e.historyMu.RLock()
	defer e.historyMu.RUnlock()

	if len(e.history) == 0 {
		return nil, false
	}
	return e.history[len(e.history)-1], true
}

func (e *Engine) historyLen() int {
	e.historyMu.RLock()
	defer e.historyMu.RUnlock()
	return len(e.history)
}

// Status возвращает состояние движка
func (e *Engine) Status() *dto.MonitoringStatusDTO {
	status := &dto.MonitoringStatusDTO{
		MonitoringActive:   e.IsActive(),
		MonitoringInterval: e.cfg.Interval.Seconds(),
		MetricsCollected:   e.historyLen(),
		ActiveAlerts:       e.alerts.ActiveCount(),
		AlertSummary:       e.alerts.Summary(),
	}
	if latest, ok := e.Latest(); ok {
		t := latest.CapturedAt()
		status.LastCollection = &t
	}
	return status
}

type historyExport struct {
	ExportTimestamp string                   `json:"export_timestamp"`
	HoursBack       float64                  `json:"hours_back"`
	Metrics         []map[string]interface{} `json:"metrics"`
}

// ExportHistory пишет историю за hours часов в JSON
func (e *Engine) ExportHistory(w io.Writer, hours float64) error {
	snapshots := e.History(hours)

	payload := historyExport{
		ExportTimestamp: e.now().Format(entity.SnapshotTimeLayout),
		HoursBack:       hours,
		Metrics:         make([]map[string]interface{}, 0, len(snapshots)),
	}
	for _, snapshot := range snapshots {
		payload.Metrics = append(payload.Metrics, snapshot.Flat())
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode metrics export: %w", err)
	}
	return nil
}

// ExportHistoryFile пишет экспорт истории в файл
func (e *Engine) ExportHistoryFile(path string, hours float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	if err := e.ExportHistory(f, hours); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close export file: %w", err)
	}

	e.logger.Info("Metrics exported", "path", path, "hours", hours)
	return nil
}
