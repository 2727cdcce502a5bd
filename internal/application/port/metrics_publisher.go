package port

import (
	"context"

	"github.com/dreschagin/dbops-agent/internal/domain/entity"
)

// MetricsPublisher defines the interface for publishing snapshots to external observability platforms.
type MetricsPublisher interface {
	// PublishSnapshot buffers every value of the snapshot for publication.
	PublishSnapshot(ctx context.Context, snapshot *entity.MetricSnapshot) error

	// Flush forces immediate publication of any buffered metrics.
	// Should be called during graceful shutdown to prevent data loss.
	Flush(ctx context.Context) error
}
