package entity

import (
	"errors"
	"time"

	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
)

// MaxConsecutiveErrors - порог счетчика ошибок, после которого задача отключается
const MaxConsecutiveErrors = 5

// Task - зарегистрированная периодическая задача (Domain Entity)
type Task struct {
	id         string
	name       string
	cadence    valueobject.Cadence
	enabled    bool
	lastRun    *time.Time
	runCount   int
	errorCount int
	lastError  *string
}

// NewTask создает задачу с валидацией
func NewTask(id, name string, cadence valueobject.Cadence, enabled bool) (*Task, error) {
	if id == "" {
		return nil, errors.New("task id cannot be empty")
	}
	if cadence.IsZero() {
		return nil, errors.New("task cadence is required")
	}
	if name == "" {
		name = id
	}

	return &Task{
		id:      id,
		name:    name,
		cadence: cadence,
		enabled: enabled,
	}, nil
}

func (t *Task) ID() string                   { return t.id }
func (t *Task) Name() string                 { return t.name }
func (t *Task) Cadence() valueobject.Cadence { return t.cadence }
func (t *Task) Enabled() bool                { return t.enabled }
func (t *Task) RunCount() int                { return t.runCount }
func (t *Task) ErrorCount() int              { return t.errorCount }

// LastRun возвращает время последнего запуска (nil если не запускалась)
func (t *Task) LastRun() *time.Time {
	if t.lastRun == nil {
		return nil
	}
	v := *t.lastRun
	return &v
}

// LastError возвращает текст последней ошибки (nil после успешного запуска)
func (t *Task) LastError() *string {
	if t.lastError == nil {
		return nil
	}
	v := *t.lastError
	return &v
}

// SetEnabled включает или выключает задачу. Счетчик ошибок не сбрасывается.
func (t *Task) SetEnabled(enabled bool) {
	t.enabled = enabled
}

// RecordStart фиксирует начало запуска
func (t *Task) RecordStart(at time.Time) {
	t.lastRun = &at
	t.runCount++
}

// RecordSuccess очищает последнюю ошибку
func (t *Task) RecordSuccess() {
	t.lastError = nil
}

// RecordFailure увеличивает счетчик ошибок и возвращает его новое значение
func (t *Task) RecordFailure(err error) int {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	t.lastError = &msg
	t.errorCount++
	return t.errorCount
}

// ShouldTrip сообщает, что задачу пора отключить
func (t *Task) ShouldTrip() bool {
	return t.errorCount >= MaxConsecutiveErrors
}

// Clone возвращает независимую копию
func (t *Task) Clone() *Task {
	c := *t
	c.lastRun = t.LastRun()
	c.lastError = t.LastError()
	return &c
}
