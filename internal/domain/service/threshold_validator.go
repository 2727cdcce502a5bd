package service

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
)

// ThresholdValidator проверяет таблицу порогов (Domain Service)
type ThresholdValidator struct{}

// NewThresholdValidator создает новый ThresholdValidator
func NewThresholdValidator() *ThresholdValidator {
	return &ThresholdValidator{}
}

// Validate отклоняет неположительные пороги и проценты больше 100.
// Неизвестные имена не являются ошибкой, их возвращает Unknown.
func (v *ThresholdValidator) Validate(thresholds map[string]float64) error {
	if len(thresholds) == 0 {
		return errors.New("thresholds cannot be empty")
	}

	keys := make([]string, 0, len(thresholds))
	for k := range thresholds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		limit := thresholds[key]
		if limit <= 0 {
			return fmt.Errorf("threshold %s must be positive, got %.2f", key, limit)
		}
		name := valueobject.MetricName(key)
		if name.Validate() == nil && name.IsPercentage() && limit > 100 {
			return fmt.Errorf("threshold %s is a percentage, got %.2f", key, limit)
		}
	}

	return nil
}

// Unknown возвращает имена порогов, которые не входят в схему snapshot'а
func (v *ThresholdValidator) Unknown(thresholds map[string]float64) []string {
	var unknown []string
	for key := range thresholds {
		if valueobject.MetricName(key).Validate() != nil {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// IsReasonable проверяет, что значение метрики лежит в допустимых пределах
func (v *ThresholdValidator) IsReasonable(name valueobject.MetricName, value float64) bool {
	if value < 0 {
		return false
	}
	if name.IsPercentage() {
		return value <= 100
	}
	return true
}
