package entity

import (
	"encoding/json"
	"time"

	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
)

// SnapshotTimeLayout формат timestamp'а в JSON представлении snapshot'а
const SnapshotTimeLayout = time.RFC3339

// MetricSnapshot - нормализованный набор метрик на момент сбора (Domain Entity)
// Иммутабелен после создания
type MetricSnapshot struct {
	capturedAt time.Time
	values     map[valueobject.MetricName]float64
}

// NewMetricSnapshot создает snapshot, копируя переданные значения
func NewMetricSnapshot(capturedAt time.Time, values map[valueobject.MetricName]float64) *MetricSnapshot {
	copied := make(map[valueobject.MetricName]float64, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &MetricSnapshot{
		capturedAt: capturedAt,
		values:     copied,
	}
}

// CapturedAt возвращает время сбора
func (s *MetricSnapshot) CapturedAt() time.Time {
	return s.capturedAt
}

// Value возвращает значение метрики
func (s *MetricSnapshot) Value(name valueobject.MetricName) (float64, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Values возвращает копию всех значений
func (s *MetricSnapshot) Values() map[valueobject.MetricName]float64 {
	result := make(map[valueobject.MetricName]float64, len(s.values))
	for k, v := range s.values {
		result[k] = v
	}
	return result
}

// Len возвращает количество метрик
func (s *MetricSnapshot) Len() int {
	return len(s.values)
}

// Flat возвращает плоское представление: timestamp + значения
func (s *MetricSnapshot) Flat() map[string]interface{} {
	flat := make(map[string]interface{}, len(s.values)+1)
	for k, v := range s.values {
		flat[string(k)] = v
	}
	flat["timestamp"] = s.capturedAt.Format(SnapshotTimeLayout)
	return flat
}

// MarshalJSON сериализует snapshot в плоский объект
func (s *MetricSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Flat())
}
