package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/dreschagin/dbops-agent/internal/application/port"
)

// FileTimestampLayout суффикс имени файла отчета
const FileTimestampLayout = "20060102_150405"

const (
	healthPrefix      = "database_health_"
	performancePrefix = "performance_report_"
)

// HTMLRenderer рендерит отчеты в HTML файлы каталога отчетов.
// Реализует port.ReportRenderer.
type HTMLRenderer struct {
	dir string
	now func() time.Time
}

func NewHTMLRenderer(dir string) *HTMLRenderer {
	return &HTMLRenderer{dir: dir, now: time.Now}
}

// Dir каталог отчетов
func (r *HTMLRenderer) Dir() string {
	return r.dir
}

func (r *HTMLRenderer) RenderHealth(ctx context.Context, input port.HealthReportInput) (port.ReportFile, error) {
	if input.GeneratedAt.IsZero() {
		input.GeneratedAt = r.now()
	}
	name := healthPrefix + input.GeneratedAt.Format(FileTimestampLayout) + ".html"
	return r.write(ctx, name, HealthReport(input))
}

func (r *HTMLRenderer) RenderPerformance(ctx context.Context, input port.PerformanceReportInput) (port.ReportFile, error) {
	if input.GeneratedAt.IsZero() {
		input.GeneratedAt = r.now()
	}
	name := performancePrefix + input.GeneratedAt.Format(FileTimestampLayout) + ".html"
	return r.write(ctx, name, PerformanceReport(input))
}

// write рендерит во временный файл и переименовывает, чтобы List не видел недописанный отчет
func (r *HTMLRenderer) write(ctx context.Context, name string, component templ.Component) (port.ReportFile, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return port.ReportFile{}, fmt.Errorf("failed to create reports directory: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, ".render-*")
	if err != nil {
		return port.ReportFile{}, fmt.Errorf("failed to create report file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := component.Render(ctx, tmp); err != nil {
		tmp.Close()
		return port.ReportFile{}, fmt.Errorf("failed to render report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return port.ReportFile{}, fmt.Errorf("failed to write report: %w", err)
	}

	path := filepath.Join(r.dir, name)
	if err := os.Rename(tmpName, path); err != nil {
		return port.ReportFile{}, fmt.Errorf("failed to save report: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return port.ReportFile{}, fmt.Errorf("failed to stat report: %w", err)
	}

	return port.ReportFile{
		Name:      name,
		Path:      path,
		CreatedAt: info.ModTime(),
		SizeBytes: info.Size(),
	}, nil
}

// List возвращает *.html отчеты, новые первыми. Отсутствующий каталог не ошибка.
func (r *HTMLRenderer) List() ([]port.ReportFile, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []port.ReportFile{}, nil
		}
		return nil, fmt.Errorf("failed to read reports directory: %w", err)
	}

	files := make([]port.ReportFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, port.ReportFile{
			Name:      entry.Name(),
			Path:      filepath.Join(r.dir, entry.Name()),
			CreatedAt: info.ModTime(),
			SizeBytes: info.Size(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].Name > files[j].Name
		}
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})

	return files, nil
}
