package port

import (
	"context"
	"time"
)

// LogLevel represents the severity of a log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// LogEntry is a structured log record shipped to an external log system.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
	Fields    map[string]interface{}
}

// LogPublisher ships agent log entries to an external platform (CloudWatch Logs).
type LogPublisher interface {
	Publish(ctx context.Context, entry LogEntry) error

	// PublishBatch must respect the backend's per-request limits.
	PublishBatch(ctx context.Context, entries []LogEntry) error

	// Flush is called on shutdown.
	Flush(ctx context.Context) error
}
