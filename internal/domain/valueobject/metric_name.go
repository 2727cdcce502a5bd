package valueobject

import "errors"

// MetricName идентифицирует метрику нормализованного snapshot'а (Value Object)
type MetricName string

const (
	ConnectionCount  MetricName = "connection_count"
	UptimeHours      MetricName = "uptime_hours"
	SlowQueriesCount MetricName = "slow_queries_count"
	DatabaseSizeMB   MetricName = "database_size_mb"
	QueriesPerSecond MetricName = "queries_per_second"
	TableLocksWaited MetricName = "table_locks_waited"
	CPUUsage         MetricName = "cpu_usage"
	MemoryUsage      MetricName = "memory_usage"
	DiskUsage        MetricName = "disk_usage"
)

// Validate проверяет, что имя входит в нормализованную схему
func (m MetricName) Validate() error {
	for _, known := range AllMetricNames() {
		if m == known {
			return nil
		}
	}
	return errors.New("unknown metric name: " + string(m))
}

func (m MetricName) String() string {
	return string(m)
}

// Unit возвращает единицу измерения метрики
func (m MetricName) Unit() string {
	switch m {
	case CPUUsage, MemoryUsage, DiskUsage:
		return "%"
	case UptimeHours:
		return "h"
	case DatabaseSizeMB:
		return "MB"
	case QueriesPerSecond:
		return "count/s"
	default:
		return "count"
	}
}

// IsPercentage сообщает, что значение лежит в диапазоне 0..100
func (m MetricName) IsPercentage() bool {
	return m.Unit() == "%"
}

// AllMetricNames возвращает схему snapshot'а в каноническом порядке
func AllMetricNames() []MetricName {
	return []MetricName{
		ConnectionCount,
		UptimeHours,
		SlowQueriesCount,
		DatabaseSizeMB,
		QueriesPerSecond,
		TableLocksWaited,
		CPUUsage,
		MemoryUsage,
		DiskUsage,
	}
}
