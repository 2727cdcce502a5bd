package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
)

func TestBuildRecommendations(t *testing.T) {
	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		values      map[valueobject.MetricName]float64
		slowQueries int
		wantCount   int
		wantPrefix  string
	}{
		{"healthy", map[valueobject.MetricName]float64{valueobject.ConnectionCount: 10, valueobject.DatabaseSizeMB: 200}, 2, 1, "The database is operating"},
		{"connections", map[valueobject.MetricName]float64{valueobject.ConnectionCount: 150}, 0, 1, "High number of active connections (150)"},
		{"slow queries", map[valueobject.MetricName]float64{}, 6, 1, "6 slow queries detected"},
		{"exactly five slow queries", map[valueobject.MetricName]float64{}, 5, 1, "The database is operating"},
		{"large database", map[valueobject.MetricName]float64{valueobject.DatabaseSizeMB: 1500.5}, 0, 1, "Large database (1500.50 MB)"},
		{"everything", map[valueobject.MetricName]float64{valueobject.ConnectionCount: 101, valueobject.DatabaseSizeMB: 2048}, 20, 3, "High number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := entity.NewMetricSnapshot(at, tt.values)
			got := BuildRecommendations(snapshot, tt.slowQueries, 100)
			assert.Len(t, got, tt.wantCount)
			assert.Contains(t, got[0], tt.wantPrefix)
		})
	}
}

func TestBuildRecommendationsWithoutSnapshot(t *testing.T) {
	got := BuildRecommendations(nil, 0, 100)
	assert.Equal(t, []string{NormalOperationRecommendation}, got)
}
