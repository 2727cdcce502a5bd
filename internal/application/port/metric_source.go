package port

import "context"

// Ключи сырого snapshot'а, которые возвращает MetricSource
const (
	RawConnectionCount  = "connection_count"
	RawUptimeSeconds    = "uptime_seconds"
	RawSlowQueries      = "slow_queries"
	RawDatabaseSizeMB   = "database_size_mb"
	RawQueriesPerSecond = "queries_per_second"
	RawTableLocksWaited = "table_locks_waited"
)

// MetricSource определяет интерфейс источника метрик базы данных (Port)
// Реализация будет в Infrastructure слое (PostgreSQL)
type MetricSource interface {
	// Snapshot возвращает сырые метрики. Пустой результат означает пропуск цикла.
	Snapshot(ctx context.Context) (map[string]float64, error)

	// Reachable проверяет доступность базы данных
	Reachable(ctx context.Context) bool
}
