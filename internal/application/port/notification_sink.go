package port

import "context"

//go:generate mockgen -source=notification_sink.go -destination=mocks/mock_notification_sink.go -package=mocks

// NotificationSink доставляет текстовые уведомления об алертах (e-mail)
type NotificationSink interface {
	Send(ctx context.Context, recipients []string, subject, body string) error
}
