package collector

import (
	"context"

	"github.com/shirou/gopsutil/v3/mem"
)

// MemoryCollector собирает использование памяти
type MemoryCollector struct{}

// NewMemoryCollector создает новый Memory collector
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{}
}

// Collect возвращает процент использования виртуальной памяти
func (c *MemoryCollector) Collect(ctx context.Context) (float64, error) {
	vmStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vmStat.UsedPercent, nil
}
