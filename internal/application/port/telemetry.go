package port

import "time"

// Telemetry собирает self-metrics агента (Prometheus)
type Telemetry interface {
	ObserveCollection(duration time.Duration, err error)
	SetSnapshotValue(metric string, value float64)
	AlertCreated(severity, category string)
	AlertResolved(category string)
	SetActiveAlerts(count int)
	ObserveTaskRun(taskID, outcome string, duration time.Duration)
	SetTaskEnabled(taskID string, enabled bool)
}
