package port

import "time"

// FileJanitor удаляет устаревшие файлы (Port)
type FileJanitor interface {
	// RemoveOlderThan удаляет файлы dir по glob pattern старше maxAge и возвращает их количество
	RemoveOlderThan(dir, pattern string, maxAge time.Duration) (int, error)
}
