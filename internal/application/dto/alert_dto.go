package dto

import (
	"time"

	"github.com/dreschagin/dbops-agent/internal/domain/entity"
)

// AlertDTO представляет алерт для API и уведомлений
type AlertDTO struct {
	ID             string     `json:"id"`
	Timestamp      time.Time  `json:"timestamp"`
	Severity       string     `json:"severity"`
	Category       string     `json:"category"`
	Message        string     `json:"message"`
	MetricName     string     `json:"metric_name"`
	CurrentValue   float64    `json:"current_value"`
	ThresholdValue float64    `json:"threshold_value"`
	Resolved       bool       `json:"resolved"`
	ResolvedAt     *time.Time `json:"resolved_timestamp"`
}

// FromAlert конвертирует Domain Entity в DTO
func FromAlert(alert *entity.Alert) *AlertDTO {
	return &AlertDTO{
		ID:             alert.ID(),
		Timestamp:      alert.CreatedAt(),
		Severity:       alert.Severity().String(),
		Category:       alert.Category(),
		Message:        alert.Message(),
		MetricName:     alert.MetricName(),
		CurrentValue:   alert.CurrentValue(),
		ThresholdValue: alert.ThresholdValue(),
		Resolved:       alert.IsResolved(),
		ResolvedAt:     alert.ResolvedAt(),
	}
}

// ToAlertDTOs конвертирует слайс Entity в слайс DTO
func ToAlertDTOs(alerts []*entity.Alert) []*AlertDTO {
	dtos := make([]*AlertDTO, len(alerts))
	for i, a := range alerts {
		dtos[i] = FromAlert(a)
	}
	return dtos
}

// AlertEventDTO событие жизненного цикла алерта (WebSocket, NATS)
type AlertEventDTO struct {
	Event string    `json:"event"` // "created", "resolved"
	Alert *AlertDTO `json:"alert"`
}

// AlertSummaryDTO сводка по активным алертам
type AlertSummaryDTO struct {
	TotalActive int            `json:"total_active"`
	BySeverity  map[string]int `json:"by_severity"`
	ByCategory  map[string]int `json:"by_category"`
	OldestAlert *time.Time     `json:"oldest_alert"`
	NewestAlert *time.Time     `json:"newest_alert"`
}
