package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/lib/pq"

	"github.com/dreschagin/dbops-agent/pkg/logger"
)

// DumpConfig параметры подключения pg_dump
type DumpConfig struct {
	Host       string
	Port       string
	User       string
	Password   string
	Database   string
	PgDumpPath string
}

// Maintenance реализует port.DatabaseMaintenance для PostgreSQL
type Maintenance struct {
	db     *sql.DB
	dump   DumpConfig
	logger *logger.Logger

	commandContext func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewMaintenance создает адаптер обслуживания базы
func NewMaintenance(db *sql.DB, dump DumpConfig, logger *logger.Logger) *Maintenance {
	if dump.PgDumpPath == "" {
		dump.PgDumpPath = "pg_dump"
	}
	return &Maintenance{
		db:             db,
		dump:           dump,
		logger:         logger,
		commandContext: exec.CommandContext,
	}
}

// DatabaseName возвращает имя обслуживаемой базы
func (m *Maintenance) DatabaseName() string {
	return m.dump.Database
}

// OptimizeTables выполняет VACUUM ANALYZE для каждой пользовательской таблицы.
// Ключ результата schema.table.
func (m *Maintenance) OptimizeTables(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT schemaname, relname FROM pg_stat_user_tables ORDER BY schemaname, relname`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	type table struct{ schema, name string }
	var tables []table
	for rows.Next() {
		var t table
		if err := rows.Scan(&t.schema, &t.name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	rows.Close()

	results := make(map[string]bool, len(tables))
	for _, t := range tables {
		key := t.schema + "." + t.name
		// VACUUM нельзя выполнять внутри транзакции, поэтому ExecContext на пуле
		stmt := "VACUUM ANALYZE " + pq.QuoteIdentifier(t.schema) + "." + pq.QuoteIdentifier(t.name)
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			m.logger.Warn("Failed to optimize table", "table", key, "error", err.Error())
			results[key] = false
			continue
		}
		results[key] = true
	}

	return results, nil
}

// Backup пишет дамп базы в path через pg_dump. Неполный файл удаляется.
func (m *Maintenance) Backup(ctx context.Context, path string) error {
	cmd := m.commandContext(ctx, m.dump.PgDumpPath, m.dumpArgs(path)...)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+m.dump.Password)

	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(path)
		msg := strings.TrimSpace(string(output))
		if msg != "" {
			return fmt.Errorf("pg_dump failed: %w: %s", err, msg)
		}
		return fmt.Errorf("pg_dump failed: %w", err)
	}
	return nil
}

func (m *Maintenance) dumpArgs(path string) []string {
	return []string{
		"--host", m.dump.Host,
		"--port", m.dump.Port,
		"--username", m.dump.User,
		"--dbname", m.dump.Database,
		"--no-password",
		"--format", "plain",
		"--file", path,
	}
}
