package dto

import (
	"time"

	"github.com/dreschagin/dbops-agent/internal/domain/entity"
)

// TaskStatusDTO проекция задачи планировщика
type TaskStatusDTO struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Enabled       bool       `json:"enabled"`
	ScheduleType  string     `json:"schedule_type"`
	ScheduleValue string     `json:"schedule_value"`
	LastRun       *time.Time `json:"last_run"`
	NextRun       *time.Time `json:"next_run"`
	RunCount      int        `json:"run_count"`
	ErrorCount    int        `json:"error_count"`
	LastError     *string    `json:"last_error"`
}

// FromTask конвертирует задачу в DTO, nextRun nil для невзведенной задачи
func FromTask(task *entity.Task, nextRun *time.Time) TaskStatusDTO {
	return TaskStatusDTO{
		ID:            task.ID(),
		Name:          task.Name(),
		Enabled:       task.Enabled(),
		ScheduleType:  string(task.Cadence().Kind()),
		ScheduleValue: task.Cadence().Value(),
		LastRun:       task.LastRun(),
		NextRun:       nextRun,
		RunCount:      task.RunCount(),
		ErrorCount:    task.ErrorCount(),
		LastError:     task.LastError(),
	}
}

// SchedulerStatusDTO состояние планировщика
type SchedulerStatusDTO struct {
	SchedulerActive bool            `json:"scheduler_active"`
	TotalTasks      int             `json:"total_tasks"`
	EnabledTasks    int             `json:"enabled_tasks"`
	Tasks           []TaskStatusDTO `json:"tasks"`
}

// TaskEventDTO результат выполнения задачи (WebSocket, NATS)
type TaskEventDTO struct {
	RunID      string    `json:"run_id"`
	TaskID     string    `json:"task_id"`
	Outcome    string    `json:"outcome"`
	Result     string    `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	Manual     bool      `json:"manual"`
	FinishedAt time.Time `json:"finished_at"`
}

// TaskRunsResponseDTO ответ GET /api/task/{id}/runs
type TaskRunsResponseDTO struct {
	Timestamp time.Time       `json:"timestamp"`
	TaskID    string          `json:"task_id"`
	RunCount  int             `json:"run_count"`
	Runs      []*TaskEventDTO `json:"runs"`
}

// FromTaskRun конвертирует запись журнала в событие
func FromTaskRun(run *entity.TaskRun) *TaskEventDTO {
	return &TaskEventDTO{
		RunID:      run.ID,
		TaskID:     run.TaskID,
		Outcome:    string(run.Outcome),
		Result:     run.Result,
		Error:      run.Error,
		Manual:     run.Manual,
		FinishedAt: run.FinishedAt,
	}
}
