package port

import "context"

// SystemStats загрузка хоста в процентах
type SystemStats struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
}

// SystemStatsCollector собирает метрики ОС (Port)
// Реализация будет в Infrastructure слое (gopsutil)
type SystemStatsCollector interface {
	// Collect возвращает нулевые поля для метрик, которые не удалось собрать
	Collect(ctx context.Context) SystemStats
}
