package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/dbops-agent/internal/application/dto"
	"github.com/dreschagin/dbops-agent/internal/application/scheduler"
	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	"github.com/dreschagin/dbops-agent/internal/domain/repository"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

const (
	// DefaultRunHistoryLimit сколько запусков отдается без ?limit
	DefaultRunHistoryLimit = 20
	maxRunHistoryLimit     = 100
)

var (
	ErrRunJournalDisabled = errors.New("task run journal is disabled")
	ErrInvalidLimit       = fmt.Errorf("limit must be between 1 and %d", maxRunHistoryLimit)
)

// TaskController операции управления задачами планировщика
type TaskController interface {
	ToggleTask(id string) (bool, error)
	RunNow(id string) error
	Status() *dto.SchedulerStatusDTO
	Task(id string) (*entity.Task, bool)
}

// ManageTasksUseCase управляет задачами планировщика
type ManageTasksUseCase struct {
	scheduler TaskController
	runs      repository.TaskRunRepository
	logger    *logger.Logger
}

// NewManageTasksUseCase создает новый use case
func NewManageTasksUseCase(
	scheduler TaskController,
	runs repository.TaskRunRepository, // Can be nil if DynamoDB disabled
	logger *logger.Logger,
) *ManageTasksUseCase {
	return &ManageTasksUseCase{
		scheduler: scheduler,
		runs:      runs,
		logger:    logger,
	}
}

// Status возвращает состояние планировщика
func (uc *ManageTasksUseCase) Status() *dto.SchedulerStatusDTO {
	return uc.scheduler.Status()
}

// Toggle включает или выключает задачу
func (uc *ManageTasksUseCase) Toggle(id string) *dto.ActionResultDTO {
	enabled, err := uc.scheduler.ToggleTask(id)
	if err != nil {
		uc.logger.Warn("Failed to toggle task", "task_id", id, "error", err.Error())
		return dto.Failure(err.Error())
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	return &dto.ActionResultDTO{
		Success: true,
		Message: fmt.Sprintf("Task %s %s", id, state),
		Enabled: &enabled,
	}
}

// Run запускает задачу вне расписания
func (uc *ManageTasksUseCase) Run(id string) *dto.ActionResultDTO {
	if err := uc.scheduler.RunNow(id); err != nil {
		uc.logger.Warn("Failed to run task", "task_id", id, "error", err.Error())
		return dto.Failure(err.Error())
	}
	return &dto.ActionResultDTO{
		Success: true,
		Message: fmt.Sprintf("Task %s started", id),
	}
}

// Runs возвращает последние запуски задачи из журнала, новые первыми
func (uc *ManageTasksUseCase) Runs(ctx context.Context, id string, limit int) (*dto.TaskRunsResponseDTO, error) {
	if uc.runs == nil {
		return nil, ErrRunJournalDisabled
	}
	if limit < 1 || limit > maxRunHistoryLimit {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if _, ok := uc.scheduler.Task(id); !ok {
		return nil, fmt.Errorf("%w: %s", scheduler.ErrTaskNotFound, id)
	}

	runs, err := uc.runs.ListByTask(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs of task %s: %w", id, err)
	}

	events := make([]*dto.TaskEventDTO, 0, len(runs))
	for _, run := range runs {
		events = append(events, dto.FromTaskRun(run))
	}
	return &dto.TaskRunsResponseDTO{
		Timestamp: time.Now(),
		TaskID:    id,
		RunCount:  len(events),
		Runs:      events,
	}, nil
}
