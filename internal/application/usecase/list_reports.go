package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/dbops-agent/internal/application/dto"
	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

// ListReportsUseCase возвращает список сгенерированных отчетов, новые первыми
type ListReportsUseCase struct {
	renderer port.ReportRenderer
	logger   *logger.Logger
}

// NewListReportsUseCase создает новый use case
func NewListReportsUseCase(renderer port.ReportRenderer, logger *logger.Logger) *ListReportsUseCase {
	return &ListReportsUseCase{
		renderer: renderer,
		logger:   logger,
	}
}

// Execute выполняет получение списка отчетов
func (uc *ListReportsUseCase) Execute(_ context.Context) (*dto.ReportsResponseDTO, error) {
	files, err := uc.renderer.List()
	if err != nil {
		uc.logger.Error("Failed to list reports", err)
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	reports := make([]dto.ReportDTO, 0, len(files))
	for _, f := range files {
		reports = append(reports, dto.ReportDTO{Name: f.Name, Timestamp: f.CreatedAt, Size: f.SizeBytes})
	}

	return &dto.ReportsResponseDTO{
		Timestamp:   time.Now(),
		ReportCount: len(reports),
		Reports:     reports,
	}, nil
}
