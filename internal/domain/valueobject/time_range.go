package valueobject

import (
	"errors"
	"time"
)

// TimeRange представляет временной диапазон (Value Object)
// Иммутабельный объект
type TimeRange struct {
	start time.Time
	end   time.Time
}

// NewTimeRange создает новый TimeRange с валидацией
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.After(end) {
		return TimeRange{}, errors.New("start time must be before end time")
	}

	if start.IsZero() || end.IsZero() {
		return TimeRange{}, errors.New("start and end times cannot be zero")
	}

	return TimeRange{
		start: start,
		end:   end,
	}, nil
}

// LastHours создает окно [now-hours, now]
func LastHours(now time.Time, hours float64) (TimeRange, error) {
	if hours <= 0 {
		return TimeRange{}, errors.New("hours must be positive")
	}

	return TimeRange{
		start: now.Add(-time.Duration(hours * float64(time.Hour))),
		end:   now,
	}, nil
}

// Start возвращает начальное время
func (tr TimeRange) Start() time.Time {
	return tr.start
}

// End возвращает конечное время
func (tr TimeRange) End() time.Time {
	return tr.end
}

// Duration возвращает длительность диапазона
func (tr TimeRange) Duration() time.Duration {
	return tr.end.Sub(tr.start)
}

// Hours возвращает длительность в часах
func (tr TimeRange) Hours() float64 {
	return tr.Duration().Hours()
}

// Contains проверяет, попадает ли указанное время в диапазон
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.start) && !t.After(tr.end)
}

// IncludesSince проверяет только нижнюю границу (cutoff = start)
func (tr TimeRange) IncludesSince(t time.Time) bool {
	return !t.Before(tr.start)
}
