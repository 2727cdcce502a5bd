package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
)

func TestTaskAccounting(t *testing.T) {
	cadence, err := valueobject.NewDailyCadence("02:00")
	if err != nil {
		t.Fatalf("cadence: %v", err)
	}
	task, err := NewTask("daily_backup", "Daily backup", cadence, true)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}

	now := time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC)
	for i := 1; i <= MaxConsecutiveErrors; i++ {
		task.RecordStart(now)
		count := task.RecordFailure(errors.New("pg_dump failed"))
		if count != i {
			t.Fatalf("expected error count %d, got %d", i, count)
		}
	}

	if !task.ShouldTrip() {
		t.Fatal("expected task to trip after 5 failures")
	}
	if task.RunCount() != MaxConsecutiveErrors {
		t.Errorf("expected run count %d, got %d", MaxConsecutiveErrors, task.RunCount())
	}
	if got := task.LastError(); got == nil || *got != "pg_dump failed" {
		t.Errorf("unexpected last error: %v", got)
	}

	// включение не сбрасывает счетчик
	task.SetEnabled(false)
	task.SetEnabled(true)
	if task.ErrorCount() != MaxConsecutiveErrors {
		t.Errorf("error count was reset: %d", task.ErrorCount())
	}

	task.RecordSuccess()
	if task.LastError() != nil {
		t.Error("expected last error to be cleared on success")
	}
}

func TestTaskCloneIsIndependent(t *testing.T) {
	task, _ := NewTask("connection_check", "", valueobject.NewMonthlyCadence(), true)
	task.RecordStart(time.Now())

	clone := task.Clone()
	clone.RecordFailure(errors.New("x"))
	clone.SetEnabled(false)

	if task.ErrorCount() != 0 || !task.Enabled() {
		t.Fatal("mutating the clone changed the original")
	}
	if task.Name() != "connection_check" {
		t.Errorf("expected name to default to id, got %q", task.Name())
	}
}

func TestNewTaskValidation(t *testing.T) {
	if _, err := NewTask("", "x", valueobject.NewMonthlyCadence(), true); err == nil {
		t.Error("expected error for empty id")
	}
	if _, err := NewTask("x", "x", valueobject.Cadence{}, true); err == nil {
		t.Error("expected error for zero cadence")
	}
}
