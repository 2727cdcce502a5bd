package monitoring

import (
	"context"
	"fmt"

	"github.com/dreschagin/dbops-agent/internal/application/alerting"
	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	"github.com/dreschagin/dbops-agent/internal/domain/service"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
)

// SlowQueryRatioMetric имя производной метрики проверки QueryPatternCheck
const SlowQueryRatioMetric = "slow_query_ratio"

// DatabaseGrowthCheck поднимает алерт, когда размер базы превышает limitMB
func DatabaseGrowthCheck(limitMB float64) CheckFunc {
	return func(_ context.Context, snapshot *entity.MetricSnapshot, alerts *alerting.Manager) error {
		if limitMB <= 0 {
			return nil
		}
		size, ok := snapshot.Value(valueobject.DatabaseSizeMB)
		if !ok {
			return nil
		}

		levelTriggered(alerts, valueobject.DatabaseSizeMB.String(), size, limitMB, service.CategoryStorage,
			fmt.Sprintf("Database size exceeds limit: %.2f MB > %.2f MB", size, limitMB))
		return nil
	}
}

// QueryPatternCheck поднимает алерт, когда доля медленных запросов
// относительно числа соединений превышает ratio
func QueryPatternCheck(ratio float64) CheckFunc {
	return func(_ context.Context, snapshot *entity.MetricSnapshot, alerts *alerting.Manager) error {
		if ratio <= 0 {
			return nil
		}
		slow, _ := snapshot.Value(valueobject.SlowQueriesCount)
		connections, _ := snapshot.Value(valueobject.ConnectionCount)
		if connections <= 0 {
			return nil
		}

		share := slow / connections
		levelTriggered(alerts, SlowQueryRatioMetric, share, ratio, service.CategoryQuery,
			fmt.Sprintf("Slow query share exceeds limit: %.2f > %.2f", share, ratio))
		return nil
	}
}

// levelTriggered создает алерт при первом превышении и разрешает его при возврате к норме
func levelTriggered(alerts *alerting.Manager, metric string, value, limit float64, category, message string) {
	if value > limit {
		if !alerts.HasActive(metric) {
			alerts.Create(category, metric, message, value, limit, service.DetermineSeverity(value, limit))
		}
		return
	}
	for _, id := range alerts.ActiveIDsForMetric(metric) {
		alerts.Resolve(id)
	}
}
