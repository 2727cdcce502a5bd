package usecase

import (
	"context"

	"github.com/dreschagin/dbops-agent/internal/application/alerting"
	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/application/scheduler"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

const (
	// ConnectionMetric имя метрики алерта о потере соединения
	ConnectionMetric = "database_connection"
	// ConnectionCategory категория алерта о потере соединения
	ConnectionCategory = "connection"

	connectionLostMessage = "Database connection lost"
)

// ConnectionCheckUseCase проверяет доступность базы данных
type ConnectionCheckUseCase struct {
	source port.MetricSource
	alerts *alerting.Manager
	logger *logger.Logger
}

// NewConnectionCheckUseCase создает новый use case
func NewConnectionCheckUseCase(source port.MetricSource, alerts *alerting.Manager, logger *logger.Logger) *ConnectionCheckUseCase {
	return &ConnectionCheckUseCase{
		source: source,
		alerts: alerts,
		logger: logger,
	}
}

// Execute возвращает false без ошибки, если база недоступна.
// Повторный алерт не создается, пока предыдущий активен.
func (uc *ConnectionCheckUseCase) Execute(ctx context.Context) (bool, error) {
	if uc.source.Reachable(ctx) {
		for _, id := range uc.alerts.ActiveIDsForMetric(ConnectionMetric) {
			uc.alerts.Resolve(id)
			uc.logger.Info("Database connection restored", "alert_id", id)
		}
		return true, nil
	}

	uc.logger.Warn("Database is unreachable")
	if !uc.alerts.HasActive(ConnectionMetric) {
		uc.alerts.Create(ConnectionCategory, ConnectionMetric, connectionLostMessage, 0, 1, valueobject.SeverityCritical)
	}
	return false, nil
}

// Job адаптирует use case к задаче планировщика
func (uc *ConnectionCheckUseCase) Job() scheduler.Job {
	return scheduler.JobFunc(func(ctx context.Context) (interface{}, error) {
		return uc.Execute(ctx)
	})
}
