package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	httpInterface "github.com/dreschagin/dbops-agent/internal/interfaces/http"
	"github.com/dreschagin/dbops-agent/internal/interfaces/http/handler"
	"github.com/dreschagin/dbops-agent/internal/interfaces/http/middleware"
	"github.com/dreschagin/dbops-agent/pkg/config"
)

const rateLimiterCleanupEvery = 5 * time.Minute

func main() {
	app := kingpin.New("dbops-agent", "PostgreSQL monitoring and maintenance agent.")
	app.HelpFlag.Short('h')

	logLevel := app.Flag("log-level", "Override LOG_LEVEL (debug, info, warn, error).").String()
	exportDir := app.Flag("export-dir", "Directory for JSON exports.").Default("exports").String()

	daemonCmd := app.Command("daemon", "Run the scheduler, monitoring and dashboard until a signal is received.").Default()

	oneshotCmd := app.Command("oneshot", "Run a single task synchronously and exit.")
	oneshotTask := oneshotCmd.Flag("task", "Task id, e.g. daily_backup.").Required().String()

	exportCmd := app.Command("export", "Collect a snapshot and export metrics history and task log as JSON.")
	exportHours := exportCmd.Flag("hours", "History window in hours.").Default("24").Float64()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// 1. Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Dependency Injection
	a, err := buildAgent(ctx, cfg, *exportDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start agent: %v\n", err)
		os.Exit(1)
	}

	var exitCode int
	switch command {
	case daemonCmd.FullCommand():
		exitCode = runDaemon(ctx, a)
	case oneshotCmd.FullCommand():
		exitCode = runOneshot(ctx, a, *oneshotTask)
	case exportCmd.FullCommand():
		exitCode = runExport(ctx, a, *exportHours)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	a.close(shutdownCtx)
	cancel()

	os.Exit(exitCode)
}

func runDaemon(ctx context.Context, a *agent) int {
	a.log.Info("Starting dbops agent",
		"database", a.cfg.Database.Database,
		"monitoring", a.cfg.Monitoring.Enabled,
		"dashboard", a.cfg.Server.Enabled,
	)

	// Scheduler запускает и движок мониторинга
	a.scheduler.Start()

	var server *http.Server
	if a.cfg.Server.Enabled {
		go a.hub.Run(ctx)
		server = newHTTPServer(ctx, a)

		go func() {
			a.log.Info("HTTP server starting", "port", a.cfg.Server.Port)
			a.log.Info("Dashboard available at http://localhost:" + a.cfg.Server.Port)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("HTTP server failed", err)
			}
		}()
	}

	<-ctx.Done()
	a.log.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.log.Error("Server shutdown error", err)
		}
	}
	a.scheduler.Stop()

	a.log.Info("Agent stopped gracefully")
	return 0
}

func newHTTPServer(ctx context.Context, a *agent) *http.Server {
	cfg := a.cfg
	authConfig := middleware.AuthConfig{
		Enabled:     cfg.Security.AuthEnabled,
		BearerToken: cfg.Security.AuthToken,
		OnFailure:   a.metrics.AuthFailures.Inc,
	}

	handlers := httpInterface.Handlers{
		Dashboard: handler.NewDashboardHandler(a.statusUC, a.alertsUC, a.tasksUC, a.listUC, a.log),
		WebSocket: handler.NewWebSocketHandler(a.hub, cfg.Security.AllowedOrigins, authConfig, a.log),
		API: handler.NewAPIHandler(
			a.statusUC,
			a.historyUC,
			a.alertsUC,
			a.tasksUC,
			a.listUC,
			a.reportUC,
			a.backupUC,
			a.optimizeUC,
			a.storage, // Can be nil if S3 disabled
			a.log,
		),
		Auth:     handler.NewAuthAPIHandler(authConfig, a.log),
		Download: handler.NewDownloadHandler(cfg.Reports.OutputDir, cfg.Backup.Dir, a.log),
	}

	readiness := func(ctx context.Context) error {
		if !a.source.Reachable(ctx) {
			return errors.New("database is not reachable")
		}
		return nil
	}

	router := httpInterface.NewRouter(handlers, cfg.Security, authConfig, a.metrics, a.registry, readiness, a.log)
	go router.Limiter().RunCleanup(ctx, rateLimiterCleanupEvery)

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func runOneshot(ctx context.Context, a *agent, taskID string) int {
	run, err := a.scheduler.RunSync(ctx, taskID)
	if err != nil {
		a.log.Error("Oneshot task failed to start", err, "task_id", taskID)
		return 2
	}

	if run.Outcome != entity.RunSucceeded {
		fmt.Fprintf(os.Stderr, "task %s failed: %s\n", taskID, run.Error)
		return 1
	}
	fmt.Printf("task %s completed in %s", taskID, run.Duration().Round(time.Millisecond))
	if run.Result != "" {
		fmt.Printf(": %s", run.Result)
	}
	fmt.Println()
	return 0
}

func runExport(ctx context.Context, a *agent, hours float64) int {
	if _, err := a.engine.CollectOnce(ctx); err != nil {
		a.log.Warn("Failed to collect snapshot before export", "error", err.Error())
	}

	paths, err := a.exportUC.Execute(ctx, hours)
	if err != nil {
		a.log.Error("Export failed", err)
		return 1
	}
	for _, path := range paths {
		fmt.Println(path)
	}
	return 0
}
