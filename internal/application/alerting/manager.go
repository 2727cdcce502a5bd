package alerting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dreschagin/dbops-agent/internal/application/dto"
	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

// DefaultNotifyTimeout ограничивает одну доставку уведомления
const DefaultNotifyTimeout = 30 * time.Second

const eventPublishTimeout = 2 * time.Second

// Manager владеет активными алертами и историей алертов.
// Наружу отдаются только копии.
type Manager struct {
	mu        sync.Mutex
	active    map[string]*entity.Alert
	history   []*entity.Alert
	lastNanos int64

	sink          port.NotificationSink
	recipients    []string
	notifyTimeout time.Duration
	inflight      sync.WaitGroup

	notifier  port.NotificationService
	events    port.EventPublisher
	telemetry port.Telemetry
	logger    *logger.Logger

	now func() time.Time
}

// NewManager создает менеджер алертов
func NewManager(
	sink port.NotificationSink, // Can be nil if e-mail disabled
	recipients []string,
	notifier port.NotificationService, // Can be nil if dashboard disabled
	events port.EventPublisher, // Can be nil if NATS disabled
	telemetry port.Telemetry, // Can be nil
	logger *logger.Logger,
) *Manager {
	return &Manager{
		active:        make(map[string]*entity.Alert),
		sink:          sink,
		recipients:    append([]string(nil), recipients...),
		notifyTimeout: DefaultNotifyTimeout,
		notifier:      notifier,
		events:        events,
		telemetry:     telemetry,
		logger:        logger,
		now:           time.Now,
	}
}

// SetNotifyTimeout меняет таймаут доставки уведомлений
func (m *Manager) SetNotifyTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	m.mu.Lock()
	m.notifyTimeout = timeout
	m.mu.Unlock()
}

// Create создает алерт без дедупликации и всегда возвращает его копию
func (m *Manager) Create(
	category string,
	metricName string,
	message string,
	current float64,
	threshold float64,
	severity valueobject.Severity,
) *entity.Alert {
	if severity.Validate() != nil {
		m.logger.Warn("Unknown alert severity, using medium", "severity", severity.String())
		severity = valueobject.SeverityMedium
	}
	if strings.TrimSpace(metricName) == "" {
		metricName = "unknown"
	}

	m.mu.Lock()
	now := m.now()
	alert, err := entity.NewAlert(m.nextID(category, metricName, now), now, severity, category, metricName, message, current, threshold)
	if err != nil {
		// входные данные нормализованы выше
		m.mu.Unlock()
		panic(fmt.Sprintf("alerting: invalid alert: %v", err))
	}
	m.active[alert.ID()] = alert
	m.history = append(m.history, alert)
	activeCount := len(m.active)
	snapshot := alert.Clone()
	timeout := m.notifyTimeout
	m.mu.Unlock()

	m.logger.Warn("New alert",
		"severity", strings.ToUpper(severity.String()),
		"category", category,
		"metric", metricName,
		"message", message,
	)

	if m.sink != nil && len(m.recipients) > 0 {
		m.dispatch(snapshot, timeout)
	}

	if m.telemetry != nil {
		m.telemetry.AlertCreated(severity.String(), category)
		m.telemetry.SetActiveAlerts(activeCount)
	}
	m.announce("created", port.SubjectAlertCreated, snapshot)

	return snapshot
}

// nextID вызывается под m.mu
func (m *Manager) nextID(category, metricName string, now time.Time) string {
	nanos := now.UnixNano()
	if nanos <= m.lastNanos {
		nanos = m.lastNanos + 1
	}
	m.lastNanos = nanos
	return fmt.Sprintf("%s_%s_%d", category, metricName, nanos)
}

// Resolve разрешает активный алерт. false для неизвестного или уже разрешенного id.
func (m *Manager) Resolve(id string) bool {
	m.mu.Lock()
	alert, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	alert.Resolve(m.now())
	delete(m.active, id)
	activeCount := len(m.active)
	snapshot := alert.Clone()
	m.mu.Unlock()

	m.logger.Info("Alert resolved", "id", id, "message", snapshot.Message())

	if m.telemetry != nil {
		m.telemetry.AlertResolved(snapshot.Category())
		m.telemetry.SetActiveAlerts(activeCount)
	}
	m.announce("resolved", port.SubjectAlertResolved, snapshot)

	return true
}

// Active возвращает активные алерты, новые первыми. Пустой severity - все уровни.
func (m *Manager) Active(severity valueobject.Severity) []*entity.Alert {
	m.mu.Lock()
	alerts := make([]*entity.Alert, 0, len(m.active))
	for _, alert := range m.active {
		if severity != "" && alert.Severity() != severity {
			continue
		}
		alerts = append(alerts, alert.Clone())
	}
	m.mu.Unlock()

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].CreatedAt().Equal(alerts[j].CreatedAt()) {
			return alerts[i].ID() > alerts[j].ID()
		}
		return alerts[i].CreatedAt().After(alerts[j].CreatedAt())
	})
	return alerts
}

// HasActive сообщает, есть ли активный алерт по метрике
func (m *Manager) HasActive(metricName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, alert := range m.active {
		if alert.MetricName() == metricName {
			return true
		}
	}
	return false
}

// ActiveIDsForMetric возвращает id активных алертов по метрике
func (m *Manager) ActiveIDsForMetric(metricName string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, alert := range m.active {
		if alert.MetricName() == metricName {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ActiveCount возвращает количество активных алертов
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Summary возвращает сводку по активным алертам
func (m *Manager) Summary() *dto.AlertSummaryDTO {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := &dto.AlertSummaryDTO{
		TotalActive: len(m.active),
		BySeverity:  make(map[string]int),
		ByCategory:  make(map[string]int),
	}

	for _, alert := range m.active {
		summary.BySeverity[alert.Severity().String()]++
		summary.ByCategory[alert.Category()]++

		created := alert.CreatedAt()
		if summary.OldestAlert == nil || created.Before(*summary.OldestAlert) {
			t := created
			summary.OldestAlert = &t
		}
		if summary.NewestAlert == nil || created.After(*summary.NewestAlert) {
			t := created
			summary.NewestAlert = &t
		}
	}

	return summary
}

// History возвращает все созданные алерты в порядке создания
func (m *Manager) History() []*entity.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	alerts := make([]*entity.Alert, len(m.history))
	for i, alert := range m.history {
		alerts[i] = alert.Clone()
	}
	return alerts
}

// Wait блокируется до завершения текущих доставок уведомлений
func (m *Manager) Wait() {
	m.inflight.Wait()
}

func (m *Manager) dispatch(alert *entity.Alert, timeout time.Duration) {
	subject, body := FormatNotification(alert)
	recipients := m.recipients

	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := m.sink.Send(ctx, recipients, subject, body); err != nil {
			m.logger.Error("Failed to send alert notification", err, "alert_id", alert.ID())
			return
		}
		m.logger.Info("Alert notification sent", "alert_id", alert.ID(), "recipients", len(recipients))
	}()
}

func (m *Manager) announce(event, subject string, alert *entity.Alert) {
	payload := &dto.AlertEventDTO{Event: event, Alert: dto.FromAlert(alert)}

	if m.notifier != nil {
		m.notifier.BroadcastAlert(payload)
	}

	if m.events != nil {
		ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
		defer cancel()
		if err := m.events.PublishEvent(ctx, subject, payload); err != nil {
			m.logger.Warn("Failed to publish alert event", "subject", subject, "error", err.Error())
		}
	}
}
