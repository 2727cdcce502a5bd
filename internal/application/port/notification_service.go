package port

import "github.com/dreschagin/dbops-agent/internal/application/dto"

// NotificationService определяет интерфейс live-уведомлений дашборда (Port)
// Реализация будет в Infrastructure слое (WebSocket Hub)
type NotificationService interface {
	// Broadcast отправляет snapshot метрик всем подключенным клиентам
	Broadcast(snapshot *dto.SnapshotDTO)

	// BroadcastAlert отправляет событие алерта всем подключенным клиентам
	BroadcastAlert(event *dto.AlertEventDTO)

	// BroadcastTask отправляет результат выполнения задачи
	BroadcastTask(event *dto.TaskEventDTO)

	// ClientCount возвращает количество подключенных клиентов
	ClientCount() int
}
