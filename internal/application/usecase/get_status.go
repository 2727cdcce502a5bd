package usecase

import (
	"context"
	"time"

	"github.com/dreschagin/dbops-agent/internal/application/dto"
	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/domain/entity"
)

// MonitoringStatusProvider состояние движка мониторинга
type MonitoringStatusProvider interface {
	Latest() (*entity.MetricSnapshot, bool)
	Status() *dto.MonitoringStatusDTO
}

// ActivityProvider сообщает, запущен ли компонент
type ActivityProvider interface {
	IsActive() bool
}

// GetStatusUseCase возвращает общее состояние агента
type GetStatusUseCase struct {
	source    port.MetricSource
	monitor   MonitoringStatusProvider
	scheduler ActivityProvider
}

// NewGetStatusUseCase создает новый use case
func NewGetStatusUseCase(source port.MetricSource, monitor MonitoringStatusProvider, scheduler ActivityProvider) *GetStatusUseCase {
	return &GetStatusUseCase{
		source:    source,
		monitor:   monitor,
		scheduler: scheduler,
	}
}

// Execute выполняет получение состояния
func (uc *GetStatusUseCase) Execute(ctx context.Context) *dto.StatusResponseDTO {
	monitoring := uc.monitor.Status()

	status := &dto.StatusResponseDTO{
		Timestamp:         time.Now(),
		DatabaseConnected: uc.source.Reachable(ctx),
		MonitoringActive:  monitoring.MonitoringActive,
		SchedulerActive:   uc.scheduler.IsActive(),
		Metrics:           map[string]float64{},
		Monitoring:        monitoring,
	}

	if latest, ok := uc.monitor.Latest(); ok {
		for name, value := range latest.Values() {
			status.Metrics[name.String()] = value
		}
	}
	return status
}
