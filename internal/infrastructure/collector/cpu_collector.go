package collector

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// DefaultCPUSampleInterval окно измерения загрузки CPU
const DefaultCPUSampleInterval = time.Second

// CPUCollector собирает загрузку CPU
type CPUCollector struct {
	sample time.Duration
}

// NewCPUCollector создает новый CPU collector
func NewCPUCollector(sample time.Duration) *CPUCollector {
	if sample <= 0 {
		sample = DefaultCPUSampleInterval
	}
	return &CPUCollector{sample: sample}
}

// Collect возвращает общую загрузку CPU в процентах за окно sample
func (c *CPUCollector) Collect(ctx context.Context) (float64, error) {
	percentages, err := cpu.PercentWithContext(ctx, c.sample, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, nil
	}
	return percentages[0], nil
}
