package scheduler

import (
	"fmt"
	"time"

	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
)

// Идентификаторы задач по умолчанию
const (
	TaskDailyHealthReport       = "daily_health_report"
	TaskWeeklyPerformanceReport = "weekly_performance_report"
	TaskDailyBackup             = "daily_backup"
	TaskWeeklyBackup            = "weekly_backup"
	TaskWeeklyOptimization      = "weekly_optimization"
	TaskCleanupOldFiles         = "cleanup_old_files"
	TaskConnectionCheck         = "connection_check"
)

// DefaultsConfig управляет набором задач по умолчанию и их cadence
type DefaultsConfig struct {
	ReportsEnabled bool
	BackupEnabled  bool
	BackupSchedule string // daily | weekly

	HealthReportAt          string
	PerformanceReportDay    string
	BackupAt                string
	BackupDay               string
	OptimizationDay         string
	CleanupAt               string
	ConnectionCheckInterval time.Duration
}

// DefaultJobs работа задач по умолчанию. Nil job пропускает задачу.
type DefaultJobs struct {
	HealthReport      Job
	PerformanceReport Job
	Backup            Job
	Optimize          Job
	Cleanup           Job
	ConnectionCheck   Job
}

type defaultTask struct {
	id      string
	name    string
	job     Job
	cadence func() (valueobject.Cadence, error)
}

// RegisterDefaults регистрирует задачи по умолчанию
func RegisterDefaults(s *Scheduler, cfg DefaultsConfig, jobs DefaultJobs) error {
	var defaults []defaultTask

	if cfg.ReportsEnabled {
		defaults = append(defaults,
			defaultTask{TaskDailyHealthReport, "Daily health report", jobs.HealthReport, func() (valueobject.Cadence, error) {
				return valueobject.NewDailyCadence(orDefault(cfg.HealthReportAt, "08:00"))
			}},
			defaultTask{TaskWeeklyPerformanceReport, "Weekly performance report", jobs.PerformanceReport, func() (valueobject.Cadence, error) {
				return valueobject.NewWeeklyCadence(orDefault(cfg.PerformanceReportDay, "monday"))
			}},
		)
	}

	if cfg.BackupEnabled {
		switch cfg.BackupSchedule {
		case "", "daily":
			defaults = append(defaults, defaultTask{TaskDailyBackup, "Daily backup", jobs.Backup, func() (valueobject.Cadence, error) {
				return valueobject.NewDailyCadence(orDefault(cfg.BackupAt, "02:00"))
			}})
		case "weekly":
			defaults = append(defaults, defaultTask{TaskWeeklyBackup, "Weekly backup", jobs.Backup, func() (valueobject.Cadence, error) {
				return valueobject.NewWeeklyCadence(orDefault(cfg.BackupDay, "sunday"))
			}})
		default:
			return fmt.Errorf("unsupported backup schedule: %q", cfg.BackupSchedule)
		}
	}

	defaults = append(defaults,
		defaultTask{TaskWeeklyOptimization, "Weekly table optimization", jobs.Optimize, func() (valueobject.Cadence, error) {
			return valueobject.NewWeeklyCadence(orDefault(cfg.OptimizationDay, "sunday"))
		}},
		defaultTask{TaskCleanupOldFiles, "Old file cleanup", jobs.Cleanup, func() (valueobject.Cadence, error) {
			return valueobject.NewDailyCadence(orDefault(cfg.CleanupAt, "03:00"))
		}},
		defaultTask{TaskConnectionCheck, "Connection check", jobs.ConnectionCheck, func() (valueobject.Cadence, error) {
			interval := cfg.ConnectionCheckInterval
			if interval <= 0 {
				interval = 300 * time.Second
			}
			return valueobject.NewIntervalCadence(interval)
		}},
	)

	for _, d := range defaults {
		if d.job == nil {
			s.logger.Warn("Default task has no job, skipping", "task_id", d.id)
			continue
		}
		cadence, err := d.cadence()
		if err != nil {
			return fmt.Errorf("invalid schedule for %s: %w", d.id, err)
		}
		if err := s.AddTask(d.id, d.name, d.job, cadence, true); err != nil {
			return err
		}
	}

	return nil
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
