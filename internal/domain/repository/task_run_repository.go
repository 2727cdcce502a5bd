package repository

import (
	"context"

	"github.com/dreschagin/dbops-agent/internal/domain/entity"
)

// TaskRunRepository определяет интерфейс журнала выполнений задач (Port)
// Реализация будет в Infrastructure слое (DynamoDB)
type TaskRunRepository interface {
	// Save сохраняет запись о выполнении
	Save(ctx context.Context, run *entity.TaskRun) error

	// ListByTask возвращает последние выполнения задачи, новые первыми
	ListByTask(ctx context.Context, taskID string, limit int) ([]*entity.TaskRun, error)
}
