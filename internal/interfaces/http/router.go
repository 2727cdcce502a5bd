package http

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreschagin/dbops-agent/internal/infrastructure/observability/agentmetrics"
	"github.com/dreschagin/dbops-agent/internal/interfaces/http/handler"
	"github.com/dreschagin/dbops-agent/internal/interfaces/http/middleware"
	"github.com/dreschagin/dbops-agent/pkg/config"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// ReadinessFunc сообщает, готов ли агент обслуживать запросы
type ReadinessFunc func(ctx context.Context) error

// Handlers набор HTTP handlers агента
type Handlers struct {
	Dashboard *handler.DashboardHandler
	WebSocket *handler.WebSocketHandler
	API       *handler.APIHandler
	Auth      *handler.AuthAPIHandler
	Download  *handler.DownloadHandler
}

// Router настраивает маршруты приложения
type Router struct {
	mux       *http.ServeMux
	handlers  Handlers
	auth      middleware.AuthConfig
	limiter   *middleware.IPRateLimiter
	metrics   *agentmetrics.Metrics // Can be nil
	gatherer  prometheus.Gatherer   // Can be nil
	readiness ReadinessFunc         // Can be nil
	logger    *logger.Logger
}

// NewRouter создает новый router
func NewRouter(
	handlers Handlers,
	security config.SecurityConfig,
	auth middleware.AuthConfig,
	metrics *agentmetrics.Metrics, // Can be nil
	gatherer prometheus.Gatherer, // Can be nil
	readiness ReadinessFunc, // Can be nil
	logger *logger.Logger,
) *Router {
	limiter := middleware.NewIPRateLimiter(security.RateLimitRPS, security.RateLimitBurst)
	if metrics != nil {
		limiter.OnDrop = metrics.RateLimitDropped.Inc
		if auth.OnFailure == nil {
			auth.OnFailure = metrics.AuthFailures.Inc
		}
	}

	return &Router{
		mux:       http.NewServeMux(),
		handlers:  handlers,
		auth:      auth,
		limiter:   limiter,
		metrics:   metrics,
		gatherer:  gatherer,
		readiness: readiness,
		logger:    logger,
	}
}

// Limiter возвращает rate limiter управляющих endpoints (для периодической очистки)
func (rt *Router) Limiter() *middleware.IPRateLimiter {
	return rt.limiter
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	// Пробы и /metrics без авторизации
	rt.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rt.mux.HandleFunc("GET /readyz", rt.ready)
	if rt.gatherer != nil {
		rt.mux.Handle("GET /metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))
	}

	protect := middleware.Auth(rt.auth, rt.logger)
	limit := middleware.RateLimit(rt.limiter)
	read := func(h http.HandlerFunc) http.Handler { return protect(h) }
	write := func(h http.HandlerFunc) http.Handler { return protect(limit(h)) }

	h := rt.handlers

	// Dashboard
	rt.mux.Handle("GET /{$}", read(h.Dashboard.ShowDashboard))

	// WebSocket проверяет токен сам, браузер не передает заголовки при upgrade
	rt.mux.HandleFunc("GET /ws", h.WebSocket.HandleConnection)

	// Auth
	rt.mux.Handle("POST /api/auth/login", limit(http.HandlerFunc(h.Auth.Login)))
	rt.mux.HandleFunc("POST /api/auth/logout", h.Auth.Logout)
	rt.mux.HandleFunc("GET /api/auth/status", h.Auth.Status)

	// Чтение
	rt.mux.Handle("GET /api/status", read(h.API.Status))
	rt.mux.Handle("GET /api/metrics", read(h.API.Metrics))
	rt.mux.Handle("GET /api/alerts", read(h.API.Alerts))
	rt.mux.Handle("GET /api/tasks", read(h.API.Tasks))
	rt.mux.Handle("GET /api/reports", read(h.API.Reports))
	rt.mux.Handle("GET /api/task/{id}/runs", read(h.API.TaskRuns))

	// Действия
	rt.mux.Handle("POST /api/task/{id}/toggle", write(h.API.ToggleTask))
	rt.mux.Handle("POST /api/task/{id}/run", write(h.API.RunTask))
	rt.mux.Handle("POST /api/generate_report", write(h.API.GenerateReport))
	rt.mux.Handle("POST /api/backup", write(h.API.Backup))
	rt.mux.Handle("POST /api/optimize", write(h.API.Optimize))

	// Файлы
	rt.mux.Handle("GET /download/report/{name}", read(h.Download.Report))
	rt.mux.Handle("GET /download/backup/{name}", read(h.Download.Backup))

	// Применяем middleware
	var handler http.Handler = rt.mux
	handler = middleware.Recovery(rt.logger)(handler)
	handler = middleware.Logger(rt.logger)(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = middleware.Compression(handler)

	return handler
}

func (rt *Router) ready(w http.ResponseWriter, r *http.Request) {
	if rt.readiness != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := rt.readiness(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", "error", err.Error())
			middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
