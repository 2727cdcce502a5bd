package collector

import (
	"context"

	"github.com/shirou/gopsutil/v3/disk"
)

// DiskCollector собирает заполненность раздела
type DiskCollector struct {
	path string
}

// NewDiskCollector создает новый Disk collector. Пустой path означает корневой раздел.
func NewDiskCollector(path string) *DiskCollector {
	if path == "" {
		path = "/"
	}
	return &DiskCollector{path: path}
}

// Collect возвращает процент заполнения раздела
func (c *DiskCollector) Collect(ctx context.Context) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, c.path)
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}
