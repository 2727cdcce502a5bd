package dto

import (
	"time"

	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	"github.com/dreschagin/dbops-agent/internal/domain/service"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
)

// SnapshotDTO представляет snapshot метрик для WebSocket и API
type SnapshotDTO struct {
	Timestamp time.Time           `json:"timestamp"`
	Metrics   map[string]float64  `json:"metrics"`
	Summary   *SnapshotSummaryDTO `json:"summary"`
}

// SnapshotSummaryDTO содержит сводную информацию
type SnapshotSummaryDTO struct {
	TotalMetrics  int      `json:"total_metrics"`
	BreachCount   int      `json:"breach_count"`
	Breached      []string `json:"breached,omitempty"`
	OverallStatus string   `json:"overall_status"` // "healthy", "warning", "critical"
}

// NewSnapshotDTO строит DTO и оценивает snapshot по порогам
func NewSnapshotDTO(snapshot *entity.MetricSnapshot, thresholds map[string]float64) *SnapshotDTO {
	out := &SnapshotDTO{
		Timestamp: snapshot.CapturedAt(),
		Metrics:   make(map[string]float64, snapshot.Len()),
		Summary:   &SnapshotSummaryDTO{OverallStatus: "healthy"},
	}

	for name, value := range snapshot.Values() {
		out.Metrics[name.String()] = value
	}
	out.Summary.TotalMetrics = len(out.Metrics)

	worst := 0
	for _, check := range service.DefaultTrackedMetrics() {
		value, ok := snapshot.Value(check.Name)
		limit, hasLimit := thresholds[check.Name.String()]
		if !ok || !hasLimit || value <= limit {
			continue
		}
		out.Summary.BreachCount++
		out.Summary.Breached = append(out.Summary.Breached, check.Name.String())
		if rank := service.DetermineSeverity(value, limit).Rank(); rank > worst {
			worst = rank
		}
	}

	switch {
	case worst >= valueobject.SeverityHigh.Rank():
		out.Summary.OverallStatus = "critical"
	case worst > 0:
		out.Summary.OverallStatus = "warning"
	}

	return out
}
