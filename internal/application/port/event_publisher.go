package port

import (
	"context"
)

// Subjects событий агента (добавляются к префиксу из конфигурации)
const (
	SubjectAlertCreated  = "alert.created"
	SubjectAlertResolved = "alert.resolved"
	SubjectTaskCompleted = "task.completed"
	SubjectTaskFailed    = "task.failed"
	SubjectTaskDisabled  = "task.disabled"
)

// EventPublisher defines the interface for publishing events to a message broker
type EventPublisher interface {
	// PublishEvent publishes an event to the specified subject
	PublishEvent(ctx context.Context, subject string, event interface{}) error

	// Close closes the connection to the message broker
	Close() error
}
