package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dreschagin/dbops-agent/internal/application/port"
)

// ReportData реализует port.ReportDataSource поверх системных представлений PostgreSQL
type ReportData struct {
	db *sql.DB
}

// NewReportData создает источник данных для отчетов
func NewReportData(db *sql.DB) *ReportData {
	return &ReportData{db: db}
}

// SlowQueries требует расширения pg_stat_statements
func (r *ReportData) SlowQueries(ctx context.Context, limit int) ([]port.SlowQuery, error) {
	query := `
		SELECT query, calls, mean_exec_time, total_exec_time, rows
		FROM pg_stat_statements
		WHERE dbid = (SELECT oid FROM pg_database WHERE datname = current_database())
		ORDER BY mean_exec_time DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query slow queries: %w", err)
	}
	defer rows.Close()

	result := make([]port.SlowQuery, 0, limit)
	for rows.Next() {
		var q port.SlowQuery
		if err := rows.Scan(&q.Query, &q.Calls, &q.MeanTimeMS, &q.TotalTimeMS, &q.RowsProcessed); err != nil {
			return nil, fmt.Errorf("failed to scan slow query: %w", err)
		}
		result = append(result, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// TableUsage возвращает 20 крупнейших пользовательских таблиц
func (r *ReportData) TableUsage(ctx context.Context) ([]port.TableUsage, error) {
	query := `
		SELECT schemaname || '.' || relname,
		       seq_scan,
		       COALESCE(idx_scan, 0),
		       n_live_tup,
		       n_dead_tup,
		       pg_total_relation_size(relid) / 1024.0 / 1024.0,
		       GREATEST(last_vacuum, last_autovacuum),
		       GREATEST(last_analyze, last_autoanalyze)
		FROM pg_stat_user_tables
		ORDER BY pg_total_relation_size(relid) DESC
		LIMIT 20
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query table usage: %w", err)
	}
	defer rows.Close()

	var result []port.TableUsage
	for rows.Next() {
		var (
			t           port.TableUsage
			lastVacuum  sql.NullTime
			lastAnalyze sql.NullTime
		)
		if err := rows.Scan(&t.Table, &t.SeqScans, &t.IndexScans, &t.LiveRows, &t.DeadRows, &t.SizeMB, &lastVacuum, &lastAnalyze); err != nil {
			return nil, fmt.Errorf("failed to scan table usage: %w", err)
		}
		if lastVacuum.Valid {
			t.LastVacuum = lastVacuum.Time
		}
		if lastAnalyze.Valid {
			t.LastAnalyze = lastAnalyze.Time
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
