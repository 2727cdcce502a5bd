package websocket

import (
	"context"
	"sync"

	"github.com/dreschagin/dbops-agent/internal/application/dto"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

// Типы сообщений дашборда
const (
	MessageSnapshot = "snapshot"
	MessageAlert    = "alert"
	MessageTask     = "task"
)

// Message представляет сообщение для отправки клиенту
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub управляет WebSocket клиентами и рассылает сообщения
// Реализует интерфейс port.NotificationService
type Hub struct {
	clients map[*Client]bool

	// Все исходящие события идут через один канал, порядок сохраняется
	outbound chan Message

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu     sync.RWMutex
	logger *logger.Logger
}

// NewHub создает новый WebSocket hub
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		outbound:   make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run запускает hub до отмены ctx (должен быть запущен в отдельной goroutine)
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client registered", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", "total_clients", total)

		case message := <-h.outbound:
			h.fanOut(message)
		}
	}
}

func (h *Hub) fanOut(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.Wants(message.Type) {
			continue
		}
		select {
		case client.send <- message:
		default:
			// медленный клиент отключается
			close(client.send)
			delete(h.clients, client)
			h.logger.Warn("Client channel full, disconnected", "type", message.Type)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Register регистрирует нового клиента, false если hub уже остановлен
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister удаляет клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast отправляет snapshot всем клиентам
func (h *Hub) Broadcast(snapshot *dto.SnapshotDTO) {
	h.enqueue(Message{Type: MessageSnapshot, Data: snapshot})
}

// BroadcastAlert отправляет событие алерта всем клиентам
func (h *Hub) BroadcastAlert(event *dto.AlertEventDTO) {
	h.enqueue(Message{Type: MessageAlert, Data: event})
}

// BroadcastTask отправляет результат задачи всем клиентам
func (h *Hub) BroadcastTask(event *dto.TaskEventDTO) {
	h.enqueue(Message{Type: MessageTask, Data: event})
}

func (h *Hub) enqueue(message Message) {
	select {
	case h.outbound <- message:
	default:
		h.logger.Warn("Broadcast channel full, dropping message", "type", message.Type)
	}
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
