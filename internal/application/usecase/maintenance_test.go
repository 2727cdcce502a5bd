package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/dbops-agent/internal/application/alerting"
	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

func TestConnectionCheckUseCase(t *testing.T) {
	log := logger.New("error")
	alerts := alerting.NewManager(nil, nil, nil, nil, nil, log)
	source := &fakeSource{reachable: false}
	uc := NewConnectionCheckUseCase(source, alerts, log)

	ok, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	// повторная проверка не плодит алерты
	_, _ = uc.Execute(context.Background())
	active := alerts.Active("")
	require.Len(t, active, 1)
	assert.Equal(t, valueobject.SeverityCritical, active[0].Severity())
	assert.Equal(t, ConnectionMetric, active[0].MetricName())
	assert.Equal(t, "Database connection lost", active[0].Message())
	assert.Equal(t, 0.0, active[0].CurrentValue())
	assert.Equal(t, 1.0, active[0].ThresholdValue())

	source.reachable = true
	result, err := uc.Job().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, true, result)
	assert.Zero(t, alerts.ActiveCount())
}

func TestBackupUseCase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	maintenance := &fakeMaintenance{name: "shop"}
	storage := &fakeStorage{}
	uc := NewBackupUseCase(maintenance, storage, dir, logger.New("error"))
	uc.now = func() time.Time { return time.Date(2026, 10, 19, 2, 0, 5, 0, time.UTC) }

	result, err := uc.Execute(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "backup_shop_20261019_020005.sql", result.Filename)
	assert.Equal(t, filepath.Join(dir, result.Filename), result.Path)
	assert.FileExists(t, result.Path)
	assert.Equal(t, "backups/"+result.Path, result.ObjectKey)

	manual, err := uc.Execute(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "manual_backup_20261019_020005.sql", manual.Filename)
}

func TestBackupUseCaseUploadFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	uc := NewBackupUseCase(&fakeMaintenance{name: "shop"}, &fakeStorage{err: errBoom}, dir, logger.New("error"))

	path, err := uc.Job().Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, path.(string))
}

func TestBackupUseCaseFailure(t *testing.T) {
	uc := NewBackupUseCase(&fakeMaintenance{name: "shop", backupErr: errBoom}, nil, t.TempDir(), logger.New("error"))

	_, err := uc.Job().Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
}

func TestOptimizeTablesUseCase(t *testing.T) {
	maintenance := &fakeMaintenance{tables: map[string]bool{"orders": true, "users": true, "events": false}}
	uc := NewOptimizeTablesUseCase(maintenance, logger.New("error"))

	result, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Optimized)
	assert.Equal(t, 3, result.Total)

	summary, err := uc.Job().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2/3 tables optimized", summary)

	maintenance.optErr = errBoom
	_, err = uc.Job().Run(context.Background())
	assert.ErrorIs(t, err, errBoom)
}

func TestCleanupUseCase(t *testing.T) {
	janitor := &fakeJanitor{removed: map[string]int{"backups": 3, "reports": 2}}
	uc := NewCleanupUseCase(janitor, []CleanupTarget{
		{Dir: "backups", Pattern: "*.sql"},
		{Dir: "reports", Pattern: "*.html"},
	}, 0, logger.New("error"))

	removed, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, removed)
	assert.Equal(t, []string{"backups/*.sql@720h0m0s", "reports/*.html@720h0m0s"}, janitor.calls)

	janitor.err = errBoom
	_, err = uc.Job().Run(context.Background())
	assert.ErrorIs(t, err, errBoom)
}

func TestExportDataUseCase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	storage := &fakeStorage{}
	uc := NewExportDataUseCase(&fileExporter{}, &fileExporter{}, storage, dir, logger.New("error"))
	uc.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }

	paths, err := uc.Execute(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "metrics_export_20261019_120000.json"),
		filepath.Join(dir, "task_log_20261019_120000.json"),
	}, paths)
	for _, p := range paths {
		_, statErr := os.Stat(p)
		assert.NoError(t, statErr)
	}
	assert.Len(t, storage.uploads, 2)
	assert.Contains(t, storage.uploads[0], port.ArtifactExport)

	_, err = uc.Execute(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidHours)

	failing := NewExportDataUseCase(&fileExporter{err: errBoom}, &fileExporter{}, nil, dir, logger.New("error"))
	_, err = failing.Execute(context.Background(), 1)
	assert.ErrorIs(t, err, errBoom)
}
