package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dreschagin/dbops-agent/internal/application/dto"
	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	"github.com/dreschagin/dbops-agent/internal/domain/service"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

// DefaultHistoryHours окно истории по умолчанию
const DefaultHistoryHours = 24.0

// ErrInvalidHours некорректное окно истории
var ErrInvalidHours = errors.New("hours must be a positive finite number")

// HistoryProvider источник истории snapshot'ов
type HistoryProvider interface {
	Latest() (*entity.MetricSnapshot, bool)
	History(hours float64) []*entity.MetricSnapshot
}

// GetMetricsHistoryUseCase возвращает историю метрик с кешированием
type GetMetricsHistoryUseCase struct {
	history    HistoryProvider
	aggregator *service.SnapshotAggregator
	cache      port.Cache
	logger     *logger.Logger
}

// NewGetMetricsHistoryUseCase создает новый use case
func NewGetMetricsHistoryUseCase(
	history HistoryProvider,
	aggregator *service.SnapshotAggregator,
	cache port.Cache, // Can be nil if Redis disabled
	logger *logger.Logger,
) *GetMetricsHistoryUseCase {
	return &GetMetricsHistoryUseCase{
		history:    history,
		aggregator: aggregator,
		cache:      cache,
		logger:     logger,
	}
}

// HistoryCacheKey ключ кеша истории. Привязан к последнему snapshot'у,
// поэтому новый цикл сбора автоматически делает запись неактуальной.
func HistoryCacheKey(hours float64, latest time.Time) string {
	return fmt.Sprintf("metrics:history:%g:%d", hours, latest.UnixNano())
}

// Execute выполняет получение истории за последние hours часов
func (uc *GetMetricsHistoryUseCase) Execute(ctx context.Context, hours float64) (*dto.MetricsResponseDTO, error) {
	if hours <= 0 || math.IsNaN(hours) || math.IsInf(hours, 0) {
		return nil, fmt.Errorf("%w: %g", ErrInvalidHours, hours)
	}

	latest, ok := uc.history.Latest()
	if uc.cache == nil || !ok {
		return uc.executeWithoutCache(hours), nil
	}

	cacheKey := HistoryCacheKey(hours, latest.CapturedAt())

	var cached dto.MetricsResponseDTO
	err := uc.cache.Get(ctx, cacheKey, &cached)
	if err == nil {
		uc.logger.Debug("Cache hit for metrics history", "hours", hours, "count", cached.MetricsCount)
		cached.Timestamp = time.Now()
		return &cached, nil
	}
	if !errors.Is(err, port.ErrCacheMiss) {
		uc.logger.Warn("Cache read failed", "key", cacheKey, "error", err.Error())
	}

	response := uc.executeWithoutCache(hours)

	// Сохраняем в кеш асинхронно, не блокируем ответ
	go func() {
		if err := uc.cache.Set(context.Background(), cacheKey, response); err != nil {
			uc.logger.Warn("Failed to cache metrics history", "error", err.Error())
		}
	}()

	return response, nil
}

func (uc *GetMetricsHistoryUseCase) executeWithoutCache(hours float64) *dto.MetricsResponseDTO {
	snapshots := uc.aggregator.SortByTime(uc.history.History(hours), false)

	metrics := make([]map[string]interface{}, 0, len(snapshots))
	for _, snapshot := range snapshots {
		metrics = append(metrics, snapshot.Flat())
	}

	summary := make(map[string]service.MetricStats)
	for name, stats := range uc.aggregator.Summarize(snapshots) {
		summary[name.String()] = stats
	}

	return &dto.MetricsResponseDTO{
		Timestamp:      time.Now(),
		HoursRequested: hours,
		MetricsCount:   len(metrics),
		Metrics:        metrics,
		Summary:        summary,
	}
}
