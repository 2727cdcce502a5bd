package usecase

import (
	"fmt"
	"time"

	"github.com/dreschagin/dbops-agent/internal/application/alerting"
	"github.com/dreschagin/dbops-agent/internal/application/dto"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
)

// GetAlertsUseCase возвращает активные алерты
type GetAlertsUseCase struct {
	alerts *alerting.Manager
}

// NewGetAlertsUseCase создает новый use case
func NewGetAlertsUseCase(alerts *alerting.Manager) *GetAlertsUseCase {
	return &GetAlertsUseCase{alerts: alerts}
}

// Execute возвращает активные алерты. Пустой severity - все уровни.
func (uc *GetAlertsUseCase) Execute(severity string) (*dto.AlertsResponseDTO, error) {
	var filter valueobject.Severity
	if severity != "" {
		parsed, err := valueobject.ParseSeverity(severity)
		if err != nil {
			return nil, fmt.Errorf("invalid severity: %w", err)
		}
		filter = parsed
	}

	alerts := uc.alerts.Active(filter)
	return &dto.AlertsResponseDTO{
		Timestamp:  time.Now(),
		AlertCount: len(alerts),
		Alerts:     dto.ToAlertDTOs(alerts),
		Summary:    uc.alerts.Summary(),
	}, nil
}
