package service

import (
	"fmt"

	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
)

const (
	// SlowQueryRecommendationLimit количество медленных запросов, после которого нужен пересмотр индексов
	SlowQueryRecommendationLimit = 5
	// LargeDatabaseMB размер базы, после которого рекомендуется архивирование
	LargeDatabaseMB = 1000.0
)

// NormalOperationRecommendation возвращается, когда замечаний нет
const NormalOperationRecommendation = "The database is operating within normal parameters."

// BuildRecommendations формирует рекомендации для отчета о состоянии базы
func BuildRecommendations(snapshot *entity.MetricSnapshot, slowQueries int, connectionThreshold float64) []string {
	var recommendations []string

	if snapshot != nil {
		connections, _ := snapshot.Value(valueobject.ConnectionCount)
		if connectionThreshold > 0 && connections > connectionThreshold {
			recommendations = append(recommendations, fmt.Sprintf(
				"High number of active connections (%.0f). Consider tuning the connection pool.", connections))
		}
	}

	if slowQueries > SlowQueryRecommendationLimit {
		recommendations = append(recommendations, fmt.Sprintf(
			"%d slow queries detected. Review indexes and optimize the most expensive statements.", slowQueries))
	}

	if snapshot != nil {
		size, _ := snapshot.Value(valueobject.DatabaseSizeMB)
		if size > LargeDatabaseMB {
			recommendations = append(recommendations, fmt.Sprintf(
				"Large database (%.2f MB). Consider archiving historical data.", size))
		}
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, NormalOperationRecommendation)
	}
	return recommendations
}
