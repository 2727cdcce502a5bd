package port

import (
	"context"
	"time"

	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	"github.com/dreschagin/dbops-agent/internal/domain/service"
)

// ReportFile описывает сгенерированный отчет на диске
type ReportFile struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size"`
}

// HealthReportInput данные для отчета о состоянии базы
type HealthReportInput struct {
	GeneratedAt     time.Time
	Latest          *entity.MetricSnapshot
	Thresholds      map[string]float64
	SlowQueries     []SlowQuery
	ActiveAlerts    []*entity.Alert
	Recommendations []string
}

// PerformanceReportInput данные для отчета о производительности за N дней
type PerformanceReportInput struct {
	GeneratedAt time.Time
	Days        int
	Tables      []TableUsage
	Activity    []service.DailyStats
	History     []*entity.MetricSnapshot
}

// ReportRenderer рендерит отчеты в файлы (Port)
type ReportRenderer interface {
	RenderHealth(ctx context.Context, input HealthReportInput) (ReportFile, error)
	RenderPerformance(ctx context.Context, input PerformanceReportInput) (ReportFile, error)
	List() ([]ReportFile, error)
}
