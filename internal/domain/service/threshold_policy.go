package service

import "github.com/dreschagin/dbops-agent/internal/domain/valueobject"

// TrackedMetric описывает одну пороговую проверку движка мониторинга
type TrackedMetric struct {
	Name        valueobject.MetricName
	Description string
	Category    string
}

// Категории алертов
const (
	CategoryConnection  = "connection"
	CategoryPerformance = "performance"
	CategoryDisk        = "disk"
	CategoryQuery       = "query"
	CategoryStorage     = "storage"
)

// DefaultTrackedMetrics возвращает проверки в порядке их вычисления
func DefaultTrackedMetrics() []TrackedMetric {
	return []TrackedMetric{
		{Name: valueobject.ConnectionCount, Description: "Active connections", Category: CategoryConnection},
		{Name: valueobject.CPUUsage, Description: "CPU usage", Category: CategoryPerformance},
		{Name: valueobject.MemoryUsage, Description: "Memory usage", Category: CategoryPerformance},
		{Name: valueobject.DiskUsage, Description: "Disk usage", Category: CategoryDisk},
		{Name: valueobject.SlowQueriesCount, Description: "Slow queries", Category: CategoryQuery},
	}
}

// DetermineSeverity вычисляет уровень по отношению value/threshold.
// Нижняя граница каждого уровня включительна.
func DetermineSeverity(value, threshold float64) valueobject.Severity {
	if threshold <= 0 {
		return valueobject.SeverityCritical
	}

	ratio := value / threshold
	switch {
	case ratio >= 2.0:
		return valueobject.SeverityCritical
	case ratio >= 1.5:
		return valueobject.SeverityHigh
	case ratio >= 1.2:
		return valueobject.SeverityMedium
	default:
		return valueobject.SeverityLow
	}
}
