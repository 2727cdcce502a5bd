package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dreschagin/dbops-agent/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Команды, которые дашборд может прислать по соединению
const (
	ActionSubscribe = "subscribe"
)

// Command входящее сообщение клиента.
// {"action":"subscribe","types":["alert","task"]}; пустой types означает все типы.
type Command struct {
	Action string   `json:"action"`
	Types  []string `json:"types"`
}

// ParseMessageTypes разбирает список типов вида "alert,task".
// Пустая строка означает подписку на все типы (nil).
func ParseMessageTypes(raw string) ([]string, error) {
	var types []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		types = append(types, part)
	}
	if err := validateTypes(types); err != nil {
		return nil, err
	}
	return types, nil
}

func validateTypes(types []string) error {
	for _, t := range types {
		switch t {
		case MessageSnapshot, MessageAlert, MessageTask:
		default:
			return fmt.Errorf("unknown message type %q", t)
		}
	}
	return nil
}

// Client одно подключение дашборда с фильтром типов сообщений
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	send   chan Message
	logger *logger.Logger

	mu    sync.RWMutex
	types map[string]bool // nil - все типы
}

// NewClient создает клиента, подписанного на types (nil - все типы)
func NewClient(hub *Hub, conn *websocket.Conn, types []string, logger *logger.Logger) *Client {
	c := &Client{
		conn:   conn,
		hub:    hub,
		send:   make(chan Message, sendBuffer),
		logger: logger,
	}
	c.setTypes(types)
	return c
}

// Wants сообщает, подписан ли клиент на тип сообщения
func (c *Client) Wants(messageType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.types == nil || c.types[messageType]
}

// Subscriptions возвращает текущие типы подписки, nil означает все
func (c *Client) Subscriptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.types == nil {
		return nil
	}
	result := make([]string, 0, len(c.types))
	for _, t := range []string{MessageSnapshot, MessageAlert, MessageTask} {
		if c.types[t] {
			result = append(result, t)
		}
	}
	return result
}

func (c *Client) setTypes(types []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(types) == 0 {
		c.types = nil
		return
	}
	c.types = make(map[string]bool, len(types))
	for _, t := range types {
		c.types[strings.ToLower(strings.TrimSpace(t))] = true
	}
}

// handleCommand применяет команду клиента. Некорректные команды пропускаются.
func (c *Client) handleCommand(payload []byte) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		c.logger.Debug("Ignoring malformed client message", "error", err.Error())
		return
	}

	switch cmd.Action {
	case ActionSubscribe:
		types := make([]string, 0, len(cmd.Types))
		for _, t := range cmd.Types {
			types = append(types, strings.ToLower(strings.TrimSpace(t)))
		}
		if err := validateTypes(types); err != nil {
			c.logger.Debug("Ignoring subscription", "error", err.Error())
			return
		}
		c.setTypes(types)
		c.logger.Debug("Client subscription changed", "types", strings.Join(types, ","))
	default:
		c.logger.Debug("Ignoring unknown client action", "action", cmd.Action)
	}
}

// ReadPump читает команды клиента до закрытия соединения.
// Запускается в отдельной goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error", "error", err.Error())
			}
			return
		}
		if kind == websocket.TextMessage {
			c.handleCommand(payload)
		}
	}
}

// WritePump отправляет события hub'а и ping'и.
// Запускается в отдельной goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// hub закрыл канал: агент останавливается или клиент слишком медленный
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			payload, err := json.Marshal(message)
			if err != nil {
				c.logger.Error("Failed to encode dashboard message", err, "type", message.Type)
				continue
			}
			if err := c.write(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("WebSocket write failed", "type", message.Type, "error", err.Error())
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(kind int, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, payload)
}
