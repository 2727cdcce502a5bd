package entity

import (
	"errors"
	"time"

	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
)

// Alert представляет срабатывание порога по метрике (Domain Entity)
// Мутируется только AlertManager'ом, наружу отдаются копии
type Alert struct {
	id         string
	createdAt  time.Time
	severity   valueobject.Severity
	category   string
	message    string
	metricName string
	current    float64
	threshold  float64
	resolved   bool
	resolvedAt *time.Time
}

// NewAlert создает новый алерт с валидацией
func NewAlert(
	id string,
	createdAt time.Time,
	severity valueobject.Severity,
	category string,
	metricName string,
	message string,
	current float64,
	threshold float64,
) (*Alert, error) {
	if id == "" {
		return nil, errors.New("alert id cannot be empty")
	}
	if metricName == "" {
		return nil, errors.New("alert metric name cannot be empty")
	}
	if err := severity.Validate(); err != nil {
		return nil, err
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return &Alert{
		id:         id,
		createdAt:  createdAt,
		severity:   severity,
		category:   category,
		message:    message,
		metricName: metricName,
		current:    current,
		threshold:  threshold,
	}, nil
}

func (a *Alert) ID() string                     { return a.id }
func (a *Alert) CreatedAt() time.Time           { return a.createdAt }
func (a *Alert) Severity() valueobject.Severity { return a.severity }
func (a *Alert) Category() string               { return a.category }
func (a *Alert) Message() string                { return a.message }
func (a *Alert) MetricName() string             { return a.metricName }
func (a *Alert) CurrentValue() float64          { return a.current }
func (a *Alert) ThresholdValue() float64        { return a.threshold }
func (a *Alert) IsResolved() bool               { return a.resolved }

// ResolvedAt возвращает время разрешения (nil для активного алерта)
func (a *Alert) ResolvedAt() *time.Time {
	if a.resolvedAt == nil {
		return nil
	}
	t := *a.resolvedAt
	return &t
}

// Resolve помечает алерт разрешенным. Повторный вызов ничего не меняет.
func (a *Alert) Resolve(at time.Time) bool {
	if a.resolved {
		return false
	}
	a.resolved = true
	a.resolvedAt = &at
	return true
}

// Clone возвращает независимую копию
func (a *Alert) Clone() *Alert {
	c := *a
	c.resolvedAt = a.ResolvedAt()
	return &c
}

// Age возвращает возраст алерта относительно now
func (a *Alert) Age(now time.Time) time.Duration {
	return now.Sub(a.createdAt)
}
