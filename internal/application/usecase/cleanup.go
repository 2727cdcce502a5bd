package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/application/scheduler"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

// DefaultRetentionDays срок хранения резервных копий и отчетов
const DefaultRetentionDays = 30

// CleanupTarget каталог и маска файлов для очистки
type CleanupTarget struct {
	Dir     string
	Pattern string
}

// CleanupUseCase удаляет устаревшие резервные копии и отчеты
type CleanupUseCase struct {
	janitor   port.FileJanitor
	targets   []CleanupTarget
	retention time.Duration
	logger    *logger.Logger
}

// NewCleanupUseCase создает новый use case. retentionDays <= 0 означает значение по умолчанию.
func NewCleanupUseCase(janitor port.FileJanitor, targets []CleanupTarget, retentionDays int, logger *logger.Logger) *CleanupUseCase {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &CleanupUseCase{
		janitor:   janitor,
		targets:   targets,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger,
	}
}

// Execute возвращает количество удаленных файлов
func (uc *CleanupUseCase) Execute(ctx context.Context) (int, error) {
	removed := 0
	for _, target := range uc.targets {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		n, err := uc.janitor.RemoveOlderThan(target.Dir, target.Pattern, uc.retention)
		if err != nil {
			return removed, fmt.Errorf("failed to clean %s: %w", target.Dir, err)
		}
		if n > 0 {
			uc.logger.Info("Removed old files", "dir", target.Dir, "count", n)
		}
		removed += n
	}

	uc.logger.Info("Cleanup completed", "removed", removed)
	return removed, nil
}

// Job адаптирует use case к задаче планировщика
func (uc *CleanupUseCase) Job() scheduler.Job {
	return scheduler.JobFunc(func(ctx context.Context) (interface{}, error) {
		return uc.Execute(ctx)
	})
}
