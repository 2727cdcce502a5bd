package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/application/scheduler"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

// FileTimestampLayout формат метки времени в именах файлов
const FileTimestampLayout = "20060102_150405"

// BackupResult результат резервного копирования
type BackupResult struct {
	Path      string
	Filename  string
	ObjectKey string // пусто, если выгрузка не настроена или не удалась
}

// BackupUseCase создает логический дамп базы данных
type BackupUseCase struct {
	maintenance port.DatabaseMaintenance
	storage     port.ArtifactStorage
	dir         string
	logger      *logger.Logger
	now         func() time.Time
}

// NewBackupUseCase создает новый use case
func NewBackupUseCase(
	maintenance port.DatabaseMaintenance,
	storage port.ArtifactStorage, // Can be nil if S3 disabled
	dir string,
	logger *logger.Logger,
) *BackupUseCase {
	return &BackupUseCase{
		maintenance: maintenance,
		storage:     storage,
		dir:         dir,
		logger:      logger,
		now:         time.Now,
	}
}

// Execute выполняет резервное копирование.
// Плановая копия: backup_<db>_<ts>.sql, ручная: manual_backup_<ts>.sql.
func (uc *BackupUseCase) Execute(ctx context.Context, manual bool) (*BackupResult, error) {
	if err := os.MkdirAll(uc.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	ts := uc.now().Format(FileTimestampLayout)
	filename := fmt.Sprintf("backup_%s_%s.sql", uc.maintenance.DatabaseName(), ts)
	if manual {
		filename = fmt.Sprintf("manual_backup_%s.sql", ts)
	}
	path := filepath.Join(uc.dir, filename)

	uc.logger.Info("Starting database backup", "path", path, "manual", manual)
	if err := uc.maintenance.Backup(ctx, path); err != nil {
		uc.logger.Error("Backup failed", err, "path", path)
		return nil, fmt.Errorf("failed to backup database: %w", err)
	}

	result := &BackupResult{Path: path, Filename: filename}

	// Выгрузка в S3 не влияет на результат задачи
	if uc.storage != nil {
		key, err := uc.storage.Upload(ctx, port.ArtifactBackup, path)
		if err != nil {
			uc.logger.Warn("Failed to upload backup", "path", path, "error", err.Error())
		} else {
			result.ObjectKey = key
		}
	}

	uc.logger.Info("Backup completed", "path", path)
	return result, nil
}

// Job адаптирует плановое резервное копирование к задаче планировщика
func (uc *BackupUseCase) Job() scheduler.Job {
	return scheduler.JobFunc(func(ctx context.Context) (interface{}, error) {
		result, err := uc.Execute(ctx, false)
		if err != nil {
			return nil, err
		}
		return result.Path, nil
	})
}
