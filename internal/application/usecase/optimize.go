package usecase

import (
	"context"
	"fmt"

	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/application/scheduler"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

// OptimizeResult итог оптимизации таблиц
type OptimizeResult struct {
	Tables    map[string]bool
	Optimized int
	Total     int
}

// String возвращает "x/y tables optimized"
func (r *OptimizeResult) String() string {
	return fmt.Sprintf("%d/%d tables optimized", r.Optimized, r.Total)
}

// OptimizeTablesUseCase выполняет оптимизацию пользовательских таблиц
type OptimizeTablesUseCase struct {
	maintenance port.DatabaseMaintenance
	logger      *logger.Logger
}

// NewOptimizeTablesUseCase создает новый use case
func NewOptimizeTablesUseCase(maintenance port.DatabaseMaintenance, logger *logger.Logger) *OptimizeTablesUseCase {
	return &OptimizeTablesUseCase{
		maintenance: maintenance,
		logger:      logger,
	}
}

// Execute оптимизирует таблицы. Сбой отдельной таблицы учитывается в результате, а не как ошибка.
func (uc *OptimizeTablesUseCase) Execute(ctx context.Context) (*OptimizeResult, error) {
	tables, err := uc.maintenance.OptimizeTables(ctx)
	if err != nil {
		uc.logger.Error("Table optimization failed", err)
		return nil, fmt.Errorf("failed to optimize tables: %w", err)
	}

	result := &OptimizeResult{Tables: tables, Total: len(tables)}
	for table, ok := range tables {
		if ok {
			result.Optimized++
		} else {
			uc.logger.Warn("Table was not optimized", "table", table)
		}
	}

	uc.logger.Info("Table optimization finished", "optimized", result.Optimized, "total", result.Total)
	return result, nil
}

// Job адаптирует use case к задаче планировщика
func (uc *OptimizeTablesUseCase) Job() scheduler.Job {
	return scheduler.JobFunc(func(ctx context.Context) (interface{}, error) {
		result, err := uc.Execute(ctx)
		if err != nil {
			return nil, err
		}
		return result.String(), nil
	})
}
