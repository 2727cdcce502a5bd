package dto

import (
	"time"

	"github.com/dreschagin/dbops-agent/internal/domain/service"
)

// MonitoringStatusDTO состояние движка мониторинга
type MonitoringStatusDTO struct {
	MonitoringActive   bool             `json:"monitoring_active"`
	MonitoringInterval float64          `json:"monitoring_interval"`
	MetricsCollected   int              `json:"metrics_collected"`
	ActiveAlerts       int              `json:"active_alerts"`
	AlertSummary       *AlertSummaryDTO `json:"alert_summary"`
	LastCollection     *time.Time       `json:"last_collection"`
}

// StatusResponseDTO ответ GET /api/status
type StatusResponseDTO struct {
	Timestamp         time.Time            `json:"timestamp"`
	DatabaseConnected bool                 `json:"database_connected"`
	MonitoringActive  bool                 `json:"monitoring_active"`
	SchedulerActive   bool                 `json:"scheduler_active"`
	Metrics           map[string]float64   `json:"metrics"`
	Monitoring        *MonitoringStatusDTO `json:"monitoring,omitempty"`
}

// MetricsResponseDTO ответ GET /api/metrics
type MetricsResponseDTO struct {
	Timestamp      time.Time                      `json:"timestamp"`
	HoursRequested float64                        `json:"hours_requested"`
	MetricsCount   int                            `json:"metrics_count"`
	Metrics        []map[string]interface{}       `json:"metrics"`
	Summary        map[string]service.MetricStats `json:"summary"`
}

// AlertsResponseDTO ответ GET /api/alerts
type AlertsResponseDTO struct {
	Timestamp  time.Time        `json:"timestamp"`
	AlertCount int              `json:"alert_count"`
	Alerts     []*AlertDTO      `json:"alerts"`
	Summary    *AlertSummaryDTO `json:"summary"`
}

// ReportDTO описание файла отчета
type ReportDTO struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
}

// ReportsResponseDTO ответ GET /api/reports
type ReportsResponseDTO struct {
	Timestamp   time.Time   `json:"timestamp"`
	ReportCount int         `json:"report_count"`
	Reports     []ReportDTO `json:"reports"`
}

// ActionResultDTO результат операции управления
type ActionResultDTO struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// Failure формирует неуспешный результат
func Failure(message string) *ActionResultDTO {
	return &ActionResultDTO{Success: false, Message: message}
}
