package port

import (
	"context"
	"time"
)

// DatabaseMaintenance выполняет обслуживание базы данных (Port)
type DatabaseMaintenance interface {
	// OptimizeTables выполняет VACUUM ANALYZE для всех пользовательских таблиц.
	// Ошибка возвращается, только если не удалось получить список таблиц.
	OptimizeTables(ctx context.Context) (map[string]bool, error)

	// Backup пишет логический дамп в path
	Backup(ctx context.Context, path string) error

	// DatabaseName возвращает имя обслуживаемой базы
	DatabaseName() string
}

// SlowQuery строка статистики медленного запроса
type SlowQuery struct {
	Query         string  `json:"query"`
	Calls         int64   `json:"calls"`
	MeanTimeMS    float64 `json:"mean_time_ms"`
	TotalTimeMS   float64 `json:"total_time_ms"`
	RowsProcessed int64   `json:"rows"`
}

// TableUsage статистика использования таблицы
type TableUsage struct {
	Table       string    `json:"table"`
	SeqScans    int64     `json:"seq_scans"`
	IndexScans  int64     `json:"index_scans"`
	LiveRows    int64     `json:"live_rows"`
	DeadRows    int64     `json:"dead_rows"`
	SizeMB      float64   `json:"size_mb"`
	LastVacuum  time.Time `json:"last_vacuum"`
	LastAnalyze time.Time `json:"last_analyze"`
}

// ReportDataSource отдает данные для отчетов (Port)
type ReportDataSource interface {
	SlowQueries(ctx context.Context, limit int) ([]SlowQuery, error)
	TableUsage(ctx context.Context) ([]TableUsage, error)
}
