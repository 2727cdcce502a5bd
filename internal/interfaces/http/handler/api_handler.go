package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dreschagin/dbops-agent/internal/application/dto"
	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/application/scheduler"
	"github.com/dreschagin/dbops-agent/internal/application/usecase"
	"github.com/dreschagin/dbops-agent/internal/interfaces/http/middleware"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

// APIHandler обрабатывает JSON API агента
type APIHandler struct {
	statusUC   *usecase.GetStatusUseCase
	historyUC  *usecase.GetMetricsHistoryUseCase
	alertsUC   *usecase.GetAlertsUseCase
	tasksUC    *usecase.ManageTasksUseCase
	listUC     *usecase.ListReportsUseCase
	reportUC   *usecase.GenerateReportUseCase // Can be nil if reports disabled
	backupUC   *usecase.BackupUseCase
	optimizeUC *usecase.OptimizeTablesUseCase
	storage    port.ArtifactStorage // Can be nil if S3 disabled
	logger     *logger.Logger
}

func NewAPIHandler(
	statusUC *usecase.GetStatusUseCase,
	historyUC *usecase.GetMetricsHistoryUseCase,
	alertsUC *usecase.GetAlertsUseCase,
	tasksUC *usecase.ManageTasksUseCase,
	listUC *usecase.ListReportsUseCase,
	reportUC *usecase.GenerateReportUseCase, // Can be nil if reports disabled
	backupUC *usecase.BackupUseCase,
	optimizeUC *usecase.OptimizeTablesUseCase,
	storage port.ArtifactStorage, // Can be nil if S3 disabled
	logger *logger.Logger,
) *APIHandler {
	return &APIHandler{
		statusUC:   statusUC,
		historyUC:  historyUC,
		alertsUC:   alertsUC,
		tasksUC:    tasksUC,
		listUC:     listUC,
		reportUC:   reportUC,
		backupUC:   backupUC,
		optimizeUC: optimizeUC,
		storage:    storage,
		logger:     logger,
	}
}

// Status GET /api/status
func (h *APIHandler) Status(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.statusUC.Execute(r.Context()))
}

// Metrics GET /api/metrics?hours=N
func (h *APIHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	hours := float64(usecase.DefaultHistoryHours)
	if raw := strings.TrimSpace(r.URL.Query().Get("hours")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "hours must be a number")
			return
		}
		hours = parsed
	}

	response, err := h.historyUC.Execute(r.Context(), hours)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidHours) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to get metrics history", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch metrics")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, response)
}

// Alerts GET /api/alerts?severity=S
func (h *APIHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	response, err := h.alertsUC.Execute(strings.TrimSpace(r.URL.Query().Get("severity")))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, response)
}

// Tasks GET /api/tasks
func (h *APIHandler) Tasks(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.tasksUC.Status())
}

// Reports GET /api/reports
func (h *APIHandler) Reports(w http.ResponseWriter, r *http.Request) {
	response, err := h.listUC.Execute(r.Context())
	if err != nil {
		h.logger.Error("Failed to list reports", err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, response)
}

// TaskRuns GET /api/task/{id}/runs?limit=N
func (h *APIHandler) TaskRuns(w http.ResponseWriter, r *http.Request) {
	limit := usecase.DefaultRunHistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	response, err := h.tasksUC.Runs(r.Context(), r.PathValue("id"), limit)
	switch {
	case err == nil:
		middleware.WriteJSON(w, http.StatusOK, response)
	case errors.Is(err, usecase.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, scheduler.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, usecase.ErrRunJournalDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("Failed to list task runs", err, "task_id", r.PathValue("id"))
		writeError(w, http.StatusInternalServerError, "failed to list task runs")
	}
}

// ToggleTask POST /api/task/{id}/toggle
func (h *APIHandler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	writeAction(w, h.tasksUC.Toggle(r.PathValue("id")), http.StatusNotFound)
}

// RunTask POST /api/task/{id}/run
func (h *APIHandler) RunTask(w http.ResponseWriter, r *http.Request) {
	writeAction(w, h.tasksUC.Run(r.PathValue("id")), http.StatusNotFound)
}

// GenerateReport POST /api/generate_report, type=health|performance из формы или JSON
func (h *APIHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	if h.reportUC == nil {
		middleware.WriteJSON(w, http.StatusServiceUnavailable, dto.Failure("Report generation is disabled"))
		return
	}

	reportType, err := readReportType(r)
	if err != nil {
		middleware.WriteJSON(w, http.StatusBadRequest, dto.Failure("Invalid request body"))
		return
	}

	file, err := h.reportUC.Execute(r.Context(), reportType)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, usecase.ErrInvalidReportType) {
			status = http.StatusBadRequest
		}
		middleware.WriteJSON(w, status, dto.Failure(err.Error()))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, &dto.ActionResultDTO{
		Success:  true,
		Message:  "Report generated successfully",
		Filename: file.Name,
	})
}

// Backup POST /api/backup
func (h *APIHandler) Backup(w http.ResponseWriter, r *http.Request) {
	result, err := h.backupUC.Execute(r.Context(), true)
	if err != nil {
		middleware.WriteJSON(w, http.StatusInternalServerError, dto.Failure(err.Error()))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, &dto.ActionResultDTO{
		Success:  true,
		Message:  fmt.Sprintf("Backup completed: %s", result.Filename),
		Filename: result.Filename,
		URL:      h.objectURL(r.Context(), result.ObjectKey),
	})
}

// Optimize POST /api/optimize
func (h *APIHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	result, err := h.optimizeUC.Execute(r.Context())
	if err != nil {
		middleware.WriteJSON(w, http.StatusInternalServerError, dto.Failure(err.Error()))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, &dto.ActionResultDTO{
		Success: true,
		Message: "Optimization completed: " + result.String(),
	})
}

func (h *APIHandler) objectURL(ctx context.Context, key string) string {
	if h.storage == nil || key == "" {
		return ""
	}
	url, err := h.storage.ObjectURL(ctx, key)
	if err != nil {
		h.logger.Warn("Failed to presign artifact URL", "key", key, "error", err.Error())
		return ""
	}
	return url
}

func readReportType(r *http.Request) (string, error) {
	defer r.Body.Close()
	body := http.MaxBytesReader(nil, r.Body, 4096)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Type string `json:"type"`
		}
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return "", err
		}
		return strings.TrimSpace(req.Type), nil
	}

	r.Body = body
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return strings.TrimSpace(r.Form.Get("type")), nil
}

func writeAction(w http.ResponseWriter, result *dto.ActionResultDTO, failureStatus int) {
	status := http.StatusOK
	if !result.Success {
		status = failureStatus
	}
	middleware.WriteJSON(w, status, result)
}

func writeError(w http.ResponseWriter, status int, message string) {
	middleware.WriteJSON(w, status, map[string]string{"error": message})
}
