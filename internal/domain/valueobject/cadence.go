package valueobject

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CadenceKind определяет правило повторения задачи
type CadenceKind string

const (
	CadenceInterval CadenceKind = "interval"
	CadenceDaily    CadenceKind = "daily"
	CadenceWeekly   CadenceKind = "weekly"
	CadenceMonthly  CadenceKind = "monthly"
)

// monthlyCheckPeriod - период ежедневной проверки месячных задач
const monthlyCheckPeriod = 24 * time.Hour

// Cadence описывает когда задача становится due (Value Object)
// Иммутабельный объект
type Cadence struct {
	kind    CadenceKind
	every   time.Duration
	hour    int
	minute  int
	second  int
	weekday time.Weekday
}

// NewIntervalCadence создает cadence "каждые N"
func NewIntervalCadence(every time.Duration) (Cadence, error) {
	if every <= 0 {
		return Cadence{}, errors.New("interval must be positive")
	}
	return Cadence{kind: CadenceInterval, every: every}, nil
}

// NewDailyCadence создает cadence "каждый день в HH:MM[:SS]"
func NewDailyCadence(at string) (Cadence, error) {
	parts := strings.Split(strings.TrimSpace(at), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return Cadence{}, fmt.Errorf("invalid time of day %q, expected HH:MM", at)
	}

	values := make([]int, 3)
	limits := []int{23, 59, 59}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > limits[i] || len(part) != 2 {
			return Cadence{}, fmt.Errorf("invalid time of day %q, expected HH:MM", at)
		}
		values[i] = n
	}

	return Cadence{kind: CadenceDaily, hour: values[0], minute: values[1], second: values[2]}, nil
}

// NewWeeklyCadence создает cadence "раз в неделю в указанный день"
func NewWeeklyCadence(day string) (Cadence, error) {
	normalized := strings.ToLower(strings.TrimSpace(day))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.ToLower(wd.String()) == normalized {
			return Cadence{kind: CadenceWeekly, weekday: wd}, nil
		}
	}
	return Cadence{}, fmt.Errorf("invalid weekday %q", day)
}

// NewMonthlyCadence создает cadence "первого числа каждого месяца"
func NewMonthlyCadence() Cadence {
	return Cadence{kind: CadenceMonthly, every: monthlyCheckPeriod}
}

// ParseCadence восстанавливает cadence из пары (kind, value)
func ParseCadence(kind, value string) (Cadence, error) {
	switch CadenceKind(strings.ToLower(strings.TrimSpace(kind))) {
	case CadenceInterval:
		if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return NewIntervalCadence(time.Duration(seconds) * time.Second)
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return Cadence{}, fmt.Errorf("invalid interval %q", value)
		}
		return NewIntervalCadence(d)
	case CadenceDaily:
		return NewDailyCadence(value)
	case CadenceWeekly:
		return NewWeeklyCadence(value)
	case CadenceMonthly:
		return NewMonthlyCadence(), nil
	default:
		return Cadence{}, fmt.Errorf("unknown cadence kind %q", kind)
	}
}

func (c Cadence) Kind() CadenceKind {
	return c.kind
}

// Value возвращает дескриптор cadence в том виде, как он задается в конфигурации
func (c Cadence) Value() string {
	switch c.kind {
	case CadenceInterval:
		return strconv.FormatInt(int64(c.every/time.Second), 10)
	case CadenceDaily:
		if c.second != 0 {
			return fmt.Sprintf("%02d:%02d:%02d", c.hour, c.minute, c.second)
		}
		return fmt.Sprintf("%02d:%02d", c.hour, c.minute)
	case CadenceWeekly:
		return strings.ToLower(c.weekday.String())
	case CadenceMonthly:
		return "1"
	default:
		return ""
	}
}

func (c Cadence) String() string {
	return string(c.kind) + ":" + c.Value()
}

// IsZero сообщает, что cadence не инициализирован
func (c Cadence) IsZero() bool {
	return c.kind == ""
}

// Next вычисляет следующий момент срабатывания относительно now.
// now - момент постановки (или повторной постановки после запуска).
func (c Cadence) Next(now time.Time) time.Time {
	switch c.kind {
	case CadenceInterval, CadenceMonthly:
		return now.Add(c.every)

	case CadenceDaily:
		candidate := time.Date(now.Year(), now.Month(), now.Day(), c.hour, c.minute, c.second, 0, now.Location())
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate

	case CadenceWeekly:
		// Строго после сегодняшнего дня, время суток сохраняется
		daysAhead := int(c.weekday) - int(now.Weekday())
		if daysAhead <= 0 {
			daysAhead += 7
		}
		return now.AddDate(0, 0, daysAhead)

	default:
		return now
	}
}

// MonthlyDue сообщает, должна ли месячная задача выполниться при проверке в now.
// Пропущенное первое число не догоняется.
func (c Cadence) MonthlyDue(now time.Time, lastRun *time.Time) bool {
	if c.kind != CadenceMonthly || now.Day() != 1 {
		return false
	}
	if lastRun == nil {
		return true
	}
	return lastRun.Year() != now.Year() || lastRun.Month() != now.Month()
}
