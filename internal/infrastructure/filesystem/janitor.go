package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dreschagin/dbops-agent/pkg/logger"
)

// Janitor удаляет устаревшие артефакты с локального диска.
// Реализует port.FileJanitor.
type Janitor struct {
	now    func() time.Time
	logger *logger.Logger
}

func NewJanitor(logger *logger.Logger) *Janitor {
	return &Janitor{now: time.Now, logger: logger}
}

// RemoveOlderThan удаляет обычные файлы dir, подходящие под pattern, с mtime старше maxAge.
// Подкаталоги не обходятся. Отсутствующий каталог не ошибка.
func (j *Janitor) RemoveOlderThan(dir, pattern string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, fmt.Errorf("max age must be positive, got %s", maxAge)
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	cutoff := j.now().Add(-maxAge)
	removed := 0
	for _, path := range matches {
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			j.logger.Warn("Failed to remove old file", "path", path, "error", err.Error())
			continue
		}
		j.logger.Debug("Old file removed", "path", path)
		removed++
	}

	return removed, nil
}
