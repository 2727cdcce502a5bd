package port

import "context"

// Виды артефактов для выгрузки
const (
	ArtifactBackup = "backups"
	ArtifactReport = "reports"
	ArtifactExport = "exports"
)

// ArtifactStorage определяет интерфейс внешнего хранилища артефактов (S3)
type ArtifactStorage interface {
	// Upload загружает локальный файл и возвращает ключ объекта
	Upload(ctx context.Context, kind, localPath string) (string, error)

	// ObjectURL возвращает URL для чтения объекта
	ObjectURL(ctx context.Context, key string) (string, error)
}
