package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

// MetricsExporter пишет историю метрик в файл
type MetricsExporter interface {
	ExportHistoryFile(path string, hours float64) error
}

// TaskLogExporter пишет состояние планировщика в файл
type TaskLogExporter interface {
	ExportTaskLogFile(path string) error
}

// ExportDataUseCase экспортирует историю метрик и журнал задач в JSON файлы
type ExportDataUseCase struct {
	metrics MetricsExporter
	tasks   TaskLogExporter
	storage port.ArtifactStorage
	dir     string
	logger  *logger.Logger
	now     func() time.Time
}

// NewExportDataUseCase создает новый use case
func NewExportDataUseCase(
	metrics MetricsExporter,
	tasks TaskLogExporter,
	storage port.ArtifactStorage, // Can be nil if S3 disabled
	dir string,
	logger *logger.Logger,
) *ExportDataUseCase {
	return &ExportDataUseCase{
		metrics: metrics,
		tasks:   tasks,
		storage: storage,
		dir:     dir,
		logger:  logger,
		now:     time.Now,
	}
}

// Execute пишет metrics_export_<ts>.json и task_log_<ts>.json и возвращает пути файлов
func (uc *ExportDataUseCase) Execute(ctx context.Context, hours float64) ([]string, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("%w: %g", ErrInvalidHours, hours)
	}
	if err := os.MkdirAll(uc.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	ts := uc.now().Format(FileTimestampLayout)
	metricsPath := filepath.Join(uc.dir, fmt.Sprintf("metrics_export_%s.json", ts))
	taskLogPath := filepath.Join(uc.dir, fmt.Sprintf("task_log_%s.json", ts))

	if err := uc.metrics.ExportHistoryFile(metricsPath, hours); err != nil {
		return nil, fmt.Errorf("failed to export metrics: %w", err)
	}
	if err := uc.tasks.ExportTaskLogFile(taskLogPath); err != nil {
		return nil, fmt.Errorf("failed to export task log: %w", err)
	}

	paths := []string{metricsPath, taskLogPath}
	if uc.storage != nil {
		for _, path := range paths {
			if _, err := uc.storage.Upload(ctx, port.ArtifactExport, path); err != nil {
				uc.logger.Warn("Failed to upload export", "path", path, "error", err.Error())
			}
		}
	}

	uc.logger.Info("Export completed", "metrics", metricsPath, "tasks", taskLogPath)
	return paths, nil
}
