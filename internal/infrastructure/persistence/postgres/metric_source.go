package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/pkg/logger"
	_ "github.com/lib/pq"
)

const reachableTimeout = 5 * time.Second

type statusQuery struct {
	key   string
	query string
}

// statusQueries выполняются по одной, сбой отдельного запроса не прерывает snapshot
var statusQueries = []statusQuery{
	{port.RawConnectionCount, `SELECT count(*) FROM pg_stat_activity WHERE datname = current_database()`},
	{port.RawUptimeSeconds, `SELECT EXTRACT(EPOCH FROM now() - pg_postmaster_start_time())`},
	{port.RawSlowQueries, `SELECT count(*) FROM pg_stat_activity WHERE state = 'active' AND datname = current_database() AND now() - query_start > make_interval(secs => $1)`},
	{port.RawDatabaseSizeMB, `SELECT pg_database_size(current_database()) / 1024.0 / 1024.0`},
	{port.RawQueriesPerSecond, `SELECT COALESCE((xact_commit + xact_rollback) / NULLIF(EXTRACT(EPOCH FROM now() - pg_postmaster_start_time()), 0), 0) FROM pg_stat_database WHERE datname = current_database()`},
	{port.RawTableLocksWaited, `SELECT count(*) FROM pg_locks WHERE NOT granted`},
}

// MetricSource реализует port.MetricSource для PostgreSQL
type MetricSource struct {
	db                 *sql.DB
	slowQueryThreshold time.Duration
	logger             *logger.Logger
}

// NewMetricSource создает источник метрик PostgreSQL
func NewMetricSource(db *sql.DB, slowQueryThreshold time.Duration, logger *logger.Logger) *MetricSource {
	if slowQueryThreshold <= 0 {
		slowQueryThreshold = time.Second
	}
	return &MetricSource{
		db:                 db,
		slowQueryThreshold: slowQueryThreshold,
		logger:             logger,
	}
}

// Snapshot возвращает сырые метрики базы. Ошибка только если не удался ни один запрос.
func (s *MetricSource) Snapshot(ctx context.Context) (map[string]float64, error) {
	raw := make(map[string]float64, len(statusQueries))
	var lastErr error

	for _, q := range statusQueries {
		var args []interface{}
		if q.key == port.RawSlowQueries {
			args = append(args, s.slowQueryThreshold.Seconds())
		}

		var value sql.NullFloat64
		if err := s.db.QueryRowContext(ctx, q.query, args...).Scan(&value); err != nil {
			s.logger.Warn("Status query failed", "metric", q.key, "error", err.Error())
			lastErr = err
			continue
		}
		raw[q.key] = value.Float64
	}

	if len(raw) == 0 && lastErr != nil {
		return nil, fmt.Errorf("failed to query database status: %w", lastErr)
	}
	return raw, nil
}

// Reachable проверяет соединение запросом SELECT 1
func (s *MetricSource) Reachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, reachableTimeout)
	defer cancel()

	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		s.logger.Debug("Database is not reachable", "error", err.Error())
		return false
	}
	return true
}
