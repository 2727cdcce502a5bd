package collector

import (
	"context"
	"sync"

	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

type percentCollector interface {
	Collect(ctx context.Context) (float64, error)
}

// SystemMetricsCollector собирает метрики ОС
// Реализует интерфейс port.SystemStatsCollector
type SystemMetricsCollector struct {
	cpu    percentCollector
	memory percentCollector
	disk   percentCollector
	logger *logger.Logger
}

// NewSystemMetricsCollector создает новый системный collector
func NewSystemMetricsCollector(diskPath string, logger *logger.Logger) *SystemMetricsCollector {
	return &SystemMetricsCollector{
		cpu:    NewCPUCollector(DefaultCPUSampleInterval),
		memory: NewMemoryCollector(),
		disk:   NewDiskCollector(diskPath),
		logger: logger,
	}
}

// Collect собирает метрики параллельно. Метрика, которую не удалось собрать, равна 0.
func (c *SystemMetricsCollector) Collect(ctx context.Context) port.SystemStats {
	var (
		wg    sync.WaitGroup
		stats port.SystemStats
	)

	collectFunc := func(name string, collector percentCollector, dest *float64) {
		defer wg.Done()
		value, err := collector.Collect(ctx)
		if err != nil {
			// Логируем ошибку, но продолжаем
			c.logger.Debug("System metric collection failed", "metric", name, "error", err.Error())
			return
		}
		*dest = value
	}

	// Каждая goroutine пишет в свое поле
	wg.Add(3)
	go collectFunc("cpu", c.cpu, &stats.CPUPercent)
	go collectFunc("memory", c.memory, &stats.MemoryPercent)
	go collectFunc("disk", c.disk, &stats.DiskPercent)
	wg.Wait()

	return stats
}
