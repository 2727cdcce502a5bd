package service

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
)

// MetricStats агрегаты одной метрики по набору snapshot'ов
type MetricStats struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Latest  float64 `json:"latest"`
	Samples int     `json:"samples"`
}

// SnapshotAggregator предоставляет сервисы для агрегации истории метрик (Domain Service)
type SnapshotAggregator struct{}

// NewSnapshotAggregator создает новый SnapshotAggregator
func NewSnapshotAggregator() *SnapshotAggregator {
	return &SnapshotAggregator{}
}

// Series извлекает значения метрики в порядке snapshot'ов
func (a *SnapshotAggregator) Series(snapshots []*entity.MetricSnapshot, name valueobject.MetricName) []float64 {
	values := make([]float64, 0, len(snapshots))
	for _, s := range snapshots {
		if v, ok := s.Value(name); ok {
			values = append(values, v)
		}
	}
	return values
}

// CalculateStats вычисляет среднее, минимум, максимум и последнее значение
func (a *SnapshotAggregator) CalculateStats(snapshots []*entity.MetricSnapshot, name valueobject.MetricName) (MetricStats, error) {
	values := a.Series(snapshots, name)
	if len(values) == 0 {
		return MetricStats{}, errors.New("no samples to aggregate")
	}

	stats := MetricStats{
		Min:     values[0],
		Max:     values[0],
		Latest:  values[len(values)-1],
		Samples: len(values),
	}

	var sum float64
	for _, v := range values {
		sum += v
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
	}
	stats.Average = round2(sum / float64(len(values)))

	return stats, nil
}

// Summarize вычисляет агрегаты по всем метрикам, встретившимся в истории
func (a *SnapshotAggregator) Summarize(snapshots []*entity.MetricSnapshot) map[valueobject.MetricName]MetricStats {
	summary := make(map[valueobject.MetricName]MetricStats)
	for _, name := range valueobject.AllMetricNames() {
		stats, err := a.CalculateStats(snapshots, name)
		if err != nil {
			continue
		}
		summary[name] = stats
	}
	return summary
}

// Percentile вычисляет перцентиль p (0..100) методом ближайшего ранга
func (a *SnapshotAggregator) Percentile(snapshots []*entity.MetricSnapshot, name valueobject.MetricName, p float64) (float64, error) {
	values := a.Series(snapshots, name)
	if len(values) == 0 {
		return 0, errors.New("no samples to aggregate")
	}
	if p < 0 || p > 100 {
		return 0, errors.New("percentile must be between 0 and 100")
	}

	sort.Float64s(values)
	rank := int(math.Ceil(p / 100 * float64(len(values))))
	if rank < 1 {
		rank = 1
	}
	return values[rank-1], nil
}

// SortByTime сортирует snapshot'ы по времени сбора
func (a *SnapshotAggregator) SortByTime(snapshots []*entity.MetricSnapshot, descending bool) []*entity.MetricSnapshot {
	sorted := make([]*entity.MetricSnapshot, len(snapshots))
	copy(sorted, snapshots)

	sort.SliceStable(sorted, func(i, j int) bool {
		if descending {
			return sorted[i].CapturedAt().After(sorted[j].CapturedAt())
		}
		return sorted[i].CapturedAt().Before(sorted[j].CapturedAt())
	})

	return sorted
}

// FindBreaches возвращает snapshot'ы, в которых метрика превышала порог
func (a *SnapshotAggregator) FindBreaches(snapshots []*entity.MetricSnapshot, name valueobject.MetricName, threshold float64) []*entity.MetricSnapshot {
	var breaches []*entity.MetricSnapshot
	for _, s := range snapshots {
		if v, ok := s.Value(name); ok && v > threshold {
			breaches = append(breaches, s)
		}
	}
	return breaches
}

// DailyStats агрегаты snapshot'ов за один календарный день
type DailyStats struct {
	Day                 time.Time `json:"day"`
	Samples             int       `json:"samples"`
	AvgQueriesPerSecond float64   `json:"avg_queries_per_second"`
	MaxConnections      float64   `json:"max_connections"`
	AvgSlowQueries      float64   `json:"avg_slow_queries"`
}

// DailyBreakdown группирует snapshot'ы по дням (в зоне времени сбора), новые дни первыми
func (a *SnapshotAggregator) DailyBreakdown(snapshots []*entity.MetricSnapshot) []DailyStats {
	type acc struct {
		samples  int
		qps      float64
		maxConns float64
		slow     float64
	}

	days := make(map[time.Time]*acc)
	for _, s := range snapshots {
		at := s.CapturedAt()
		day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
		d, ok := days[day]
		if !ok {
			d = &acc{}
			days[day] = d
		}
		d.samples++
		qps, _ := s.Value(valueobject.QueriesPerSecond)
		d.qps += qps
		slow, _ := s.Value(valueobject.SlowQueriesCount)
		d.slow += slow
		if conns, _ := s.Value(valueobject.ConnectionCount); conns > d.maxConns {
			d.maxConns = conns
		}
	}

	result := make([]DailyStats, 0, len(days))
	for day, d := range days {
		result = append(result, DailyStats{
			Day:                 day,
			Samples:             d.samples,
			AvgQueriesPerSecond: round2(d.qps / float64(d.samples)),
			MaxConnections:      d.maxConns,
			AvgSlowQueries:      round2(d.slow / float64(d.samples)),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Day.After(result[j].Day) })
	return result
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
