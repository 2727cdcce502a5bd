package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/dbops-agent/internal/application/alerting"
	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/application/scheduler"
	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	"github.com/dreschagin/dbops-agent/internal/domain/service"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

// Типы отчетов
const (
	ReportHealth      = "health"
	ReportPerformance = "performance"
)

const (
	DefaultPerformanceDays = 7
	healthSlowQueryLimit   = 20
)

// ErrInvalidReportType неизвестный тип отчета
var ErrInvalidReportType = errors.New("invalid report type")

// MetricsProvider источник snapshot'ов для отчетов и API
type MetricsProvider interface {
	Latest() (*entity.MetricSnapshot, bool)
	CollectOnce(ctx context.Context) (*entity.MetricSnapshot, error)
	History(hours float64) []*entity.MetricSnapshot
	Thresholds() map[string]float64
}

// GenerateReportUseCase генерирует отчеты о состоянии и производительности базы
type GenerateReportUseCase struct {
	metrics         MetricsProvider
	data            port.ReportDataSource
	renderer        port.ReportRenderer
	alerts          *alerting.Manager
	storage         port.ArtifactStorage
	aggregator      *service.SnapshotAggregator
	performanceDays int
	logger          *logger.Logger
	now             func() time.Time
}

// NewGenerateReportUseCase создает новый use case
func NewGenerateReportUseCase(
	metrics MetricsProvider,
	data port.ReportDataSource,
	renderer port.ReportRenderer,
	alerts *alerting.Manager,
	storage port.ArtifactStorage, // Can be nil if S3 disabled
	performanceDays int,
	logger *logger.Logger,
) *GenerateReportUseCase {
	if performanceDays <= 0 {
		performanceDays = DefaultPerformanceDays
	}
	return &GenerateReportUseCase{
		metrics:         metrics,
		data:            data,
		renderer:        renderer,
		alerts:          alerts,
		storage:         storage,
		aggregator:      service.NewSnapshotAggregator(),
		performanceDays: performanceDays,
		logger:          logger,
		now:             time.Now,
	}
}

// Execute генерирует отчет указанного типа
func (uc *GenerateReportUseCase) Execute(ctx context.Context, reportType string) (port.ReportFile, error) {
	var (
		file port.ReportFile
		err  error
	)

	switch reportType {
	case ReportHealth:
		file, err = uc.health(ctx)
	case ReportPerformance:
		file, err = uc.performance(ctx)
	default:
		return port.ReportFile{}, fmt.Errorf("%w: %q", ErrInvalidReportType, reportType)
	}
	if err != nil {
		uc.logger.Error("Report generation failed", err, "type", reportType)
		return port.ReportFile{}, err
	}

	uc.logger.Info("Report generated", "type", reportType, "path", file.Path)
	uc.upload(ctx, file)
	return file, nil
}

func (uc *GenerateReportUseCase) health(ctx context.Context) (port.ReportFile, error) {
	snapshot, ok := uc.metrics.Latest()
	if !ok {
		collected, err := uc.metrics.CollectOnce(ctx)
		if err != nil {
			uc.logger.Warn("No metrics available for health report", "error", err.Error())
		}
		snapshot = collected
	}

	slowQueries, err := uc.data.SlowQueries(ctx, healthSlowQueryLimit)
	if err != nil {
		uc.logger.Warn("Failed to load slow queries", "error", err.Error())
		slowQueries = []port.SlowQuery{}
	}

	thresholds := uc.metrics.Thresholds()
	input := port.HealthReportInput{
		GeneratedAt:     uc.now(),
		Latest:          snapshot,
		Thresholds:      thresholds,
		SlowQueries:     slowQueries,
		ActiveAlerts:    uc.alerts.Active(""),
		Recommendations: service.BuildRecommendations(snapshot, len(slowQueries), thresholds[valueobject.ConnectionCount.String()]),
	}

	file, err := uc.renderer.RenderHealth(ctx, input)
	if err != nil {
		return port.ReportFile{}, fmt.Errorf("failed to render health report: %w", err)
	}
	return file, nil
}

func (uc *GenerateReportUseCase) performance(ctx context.Context) (port.ReportFile, error) {
	tables, err := uc.data.TableUsage(ctx)
	if err != nil {
		uc.logger.Warn("Failed to load table usage", "error", err.Error())
		tables = []port.TableUsage{}
	}

	history := uc.metrics.History(float64(uc.performanceDays * 24))

	input := port.PerformanceReportInput{
		GeneratedAt: uc.now(),
		Days:        uc.performanceDays,
		Tables:      tables,
		Activity:    uc.aggregator.DailyBreakdown(history),
		History:     history,
	}

	file, err := uc.renderer.RenderPerformance(ctx, input)
	if err != nil {
		return port.ReportFile{}, fmt.Errorf("failed to render performance report: %w", err)
	}
	return file, nil
}

func (uc *GenerateReportUseCase) upload(ctx context.Context, file port.ReportFile) {
	if uc.storage == nil {
		return
	}
	if _, err := uc.storage.Upload(ctx, port.ArtifactReport, file.Path); err != nil {
		uc.logger.Warn("Failed to upload report", "path", file.Path, "error", err.Error())
	}
}

// Job адаптирует генерацию отчета к задаче планировщика
func (uc *GenerateReportUseCase) Job(reportType string) scheduler.Job {
	return scheduler.JobFunc(func(ctx context.Context) (interface{}, error) {
		file, err := uc.Execute(ctx, reportType)
		if err != nil {
			return nil, err
		}
		return file.Path, nil
	})
}
