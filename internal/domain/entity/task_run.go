package entity

import (
	"time"

	"github.com/google/uuid"
)

// RunOutcome результат выполнения задачи
type RunOutcome string

const (
	RunSucceeded RunOutcome = "success"
	RunFailed    RunOutcome = "failure"
)

// TaskRun - запись журнала об одном выполнении задачи
type TaskRun struct {
	ID         string     `json:"id"`
	TaskID     string     `json:"task_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Outcome    RunOutcome `json:"outcome"`
	Result     string     `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	Manual     bool       `json:"manual"`
}

// NewTaskRun открывает запись журнала
func NewTaskRun(taskID string, startedAt time.Time, manual bool) *TaskRun {
	return &TaskRun{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		StartedAt: startedAt,
		Manual:    manual,
	}
}

// Succeed закрывает запись как успешную
func (r *TaskRun) Succeed(at time.Time, result string) {
	r.FinishedAt = at
	r.Outcome = RunSucceeded
	r.Result = result
}

// Fail закрывает запись как неуспешную
func (r *TaskRun) Fail(at time.Time, err error) {
	r.FinishedAt = at
	r.Outcome = RunFailed
	if err != nil {
		r.Error = err.Error()
	}
}

// Duration возвращает длительность выполнения
func (r *TaskRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
