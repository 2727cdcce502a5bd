package handler

import (
	"net/http"

	"github.com/dreschagin/dbops-agent/internal/application/usecase"
	"github.com/dreschagin/dbops-agent/internal/interfaces/view"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

// DashboardHandler обрабатывает запросы к dashboard
type DashboardHandler struct {
	statusUC *usecase.GetStatusUseCase
	alertsUC *usecase.GetAlertsUseCase
	tasksUC  *usecase.ManageTasksUseCase
	listUC   *usecase.ListReportsUseCase
	logger   *logger.Logger
}

// NewDashboardHandler создает новый handler
func NewDashboardHandler(
	statusUC *usecase.GetStatusUseCase,
	alertsUC *usecase.GetAlertsUseCase,
	tasksUC *usecase.ManageTasksUseCase,
	listUC *usecase.ListReportsUseCase,
	logger *logger.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		statusUC: statusUC,
		alertsUC: alertsUC,
		tasksUC:  tasksUC,
		listUC:   listUC,
		logger:   logger,
	}
}

// ShowDashboard отображает главную страницу dashboard
func (h *DashboardHandler) ShowDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	alerts, err := h.alertsUC.Execute("")
	if err != nil {
		h.logger.Error("Failed to get alerts", err)
		http.Error(w, "Failed to load alerts", http.StatusInternalServerError)
		return
	}

	model := view.DashboardModel{
		Status: h.statusUC.Execute(r.Context()),
		Alerts: alerts,
		Tasks:  h.tasksUC.Status(),
	}

	// Список отчетов не обязателен для отрисовки
	if reports, err := h.listUC.Execute(r.Context()); err == nil {
		model.Reports = reports.Reports
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := view.Dashboard(model).Render(r.Context(), w); err != nil {
		h.logger.Error("Failed to render dashboard", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
}
