package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	// Application
	"github.com/dreschagin/dbops-agent/internal/application/alerting"
	"github.com/dreschagin/dbops-agent/internal/application/monitoring"
	applicationPort "github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/application/scheduler"
	"github.com/dreschagin/dbops-agent/internal/application/usecase"

	// Domain
	"github.com/dreschagin/dbops-agent/internal/domain/repository"
	"github.com/dreschagin/dbops-agent/internal/domain/service"

	// Infrastructure
	redisCache "github.com/dreschagin/dbops-agent/internal/infrastructure/cache/redis"
	"github.com/dreschagin/dbops-agent/internal/infrastructure/collector"
	"github.com/dreschagin/dbops-agent/internal/infrastructure/filesystem"
	natsInfra "github.com/dreschagin/dbops-agent/internal/infrastructure/messaging/nats"
	"github.com/dreschagin/dbops-agent/internal/infrastructure/notification/email"
	wsInfra "github.com/dreschagin/dbops-agent/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/dbops-agent/internal/infrastructure/observability/agentmetrics"
	"github.com/dreschagin/dbops-agent/internal/infrastructure/observability/cloudwatch"
	dynamodbRepo "github.com/dreschagin/dbops-agent/internal/infrastructure/persistence/dynamodb"
	"github.com/dreschagin/dbops-agent/internal/infrastructure/persistence/postgres"
	"github.com/dreschagin/dbops-agent/internal/infrastructure/report"
	s3storage "github.com/dreschagin/dbops-agent/internal/infrastructure/storage/s3"

	// Shared
	"github.com/dreschagin/dbops-agent/pkg/config"
	"github.com/dreschagin/dbops-agent/pkg/logger"

	_ "github.com/lib/pq"
)

// agent держит собранные зависимости для всех режимов запуска
type agent struct {
	cfg *config.Config
	log *logger.Logger
	db  *sql.DB

	registry *prometheus.Registry
	metrics  *agentmetrics.Metrics
	hub      *wsInfra.Hub

	source      *postgres.MetricSource
	alerts      *alerting.Manager
	engine      *monitoring.Engine
	scheduler   *scheduler.Scheduler
	storage     applicationPort.ArtifactStorage
	cache       applicationPort.Cache
	events      applicationPort.EventPublisher
	cwMetrics   *cloudwatch.MetricsPublisher
	cwLogs      *cloudwatch.LogsPublisher
	renderer    *report.HTMLRenderer
	exportDir   string
	statusUC    *usecase.GetStatusUseCase
	historyUC   *usecase.GetMetricsHistoryUseCase
	alertsUC    *usecase.GetAlertsUseCase
	tasksUC     *usecase.ManageTasksUseCase
	listUC      *usecase.ListReportsUseCase
	reportUC    *usecase.GenerateReportUseCase
	backupUC    *usecase.BackupUseCase
	optimizeUC  *usecase.OptimizeTablesUseCase
	exportUC    *usecase.ExportDataUseCase
	withMonitor bool
}

// buildAgent выполняет dependency injection. Внешние интеграции опциональны.
func buildAgent(ctx context.Context, cfg *config.Config, exportDir string) (*agent, error) {
	// 1. Logger
	log := logger.NewWithFile(cfg.Logging.Level, logger.FileOptions{
		Path:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.BackupCount,
		CompressOld: true,
	})

	a := &agent{cfg: cfg, log: log, exportDir: exportDir}

	// 2. Пороги
	validator := service.NewThresholdValidator()
	if err := validator.Validate(cfg.Monitoring.Thresholds); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	if unknown := validator.Unknown(cfg.Monitoring.Thresholds); len(unknown) > 0 {
		log.Warn("Thresholds for unknown metrics are ignored", "metrics", unknown)
	}

	// 3. CloudWatch Logs подключаем первым, чтобы WARN/ERROR старта ушли в облако
	if cfg.CloudWatch.LogsEnabled {
		publisher, err := cloudwatch.NewLogsPublisher(ctx, cloudwatch.LogsPublisherConfig{
			LogGroupName:    cfg.CloudWatch.LogGroupName,
			LogStreamName:   cfg.CloudWatch.LogStreamName,
			Region:          cfg.CloudWatch.Region,
			Endpoint:        cfg.CloudWatch.Endpoint,
			AccessKeyID:     cfg.CloudWatch.AccessKeyID,
			SecretAccessKey: cfg.CloudWatch.SecretAccessKey,
			BufferSize:      cfg.CloudWatch.LogsBufferSize,
			FlushInterval:   cfg.CloudWatch.LogsFlushInterval,
			AutoCreate:      true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize CloudWatch logs publisher: %w", err)
		}
		a.cwLogs = publisher
		log.SetLogPublisher(publisher)
		log.Info("CloudWatch logs publisher initialized", "group", cfg.CloudWatch.LogGroupName)
	}

	// 4. PostgreSQL
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)
	a.db = db

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		// Недоступность базы фиксирует connection_check, агент продолжает работу
		log.Warn("Database is not reachable at startup", "host", cfg.Database.Host, "error", err.Error())
	} else {
		log.Info("Database connected successfully", "database", cfg.Database.Database)
	}
	cancel()

	source := postgres.NewMetricSource(db, cfg.Database.SlowQueryThreshold, log)
	maintenance := postgres.NewMaintenance(db, postgres.DumpConfig{
		Host:       cfg.Database.Host,
		Port:       cfg.Database.Port,
		User:       cfg.Database.User,
		Password:   cfg.Database.Password,
		Database:   cfg.Database.Database,
		PgDumpPath: cfg.Database.PgDumpPath,
	}, log)
	a.source = source

	// 5. Prometheus self-metrics
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = agentmetrics.New(a.registry)

	// 6. Опциональные интеграции
	var notifier applicationPort.NotificationService
	if cfg.Server.Enabled {
		a.hub = wsInfra.NewHub(log)
		notifier = a.hub
	}

	var metricsPublisher applicationPort.MetricsPublisher
	if cfg.CloudWatch.MetricsEnabled {
		publisher, err := cloudwatch.NewMetricsPublisher(ctx, cloudwatch.MetricsPublisherConfig{
			Namespace:         cfg.CloudWatch.MetricsNamespace,
			Region:            cfg.CloudWatch.Region,
			Endpoint:          cfg.CloudWatch.Endpoint,
			AccessKeyID:       cfg.CloudWatch.AccessKeyID,
			SecretAccessKey:   cfg.CloudWatch.SecretAccessKey,
			DefaultDimensions: cfg.CloudWatch.MetricsDimensions,
			BufferSize:        cfg.CloudWatch.MetricsBufferSize,
			FlushInterval:     cfg.CloudWatch.MetricsFlushInterval,
			StorageResolution: cfg.CloudWatch.MetricsStorageResolution,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize CloudWatch metrics publisher: %w", err)
		}
		a.cwMetrics = publisher
		metricsPublisher = publisher
		log.Info("CloudWatch metrics publisher initialized", "namespace", cfg.CloudWatch.MetricsNamespace)
	} else {
		log.Debug("CloudWatch metrics publishing is disabled")
	}

	if cfg.NATS.Enabled {
		publisher, err := natsInfra.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, log)
		if err != nil {
			log.Warn("Failed to connect to NATS, continuing without event publishing", "error", err.Error())
		} else {
			a.events = publisher
			log.Info("NATS event publisher initialized", "url", cfg.NATS.URL)
		}
	}

	if cfg.Redis.Enabled {
		cache, err := redisCache.NewRedisCache(ctx, redisCache.Options{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			log.Warn("Failed to connect to Redis, history cache disabled", "error", err.Error())
		} else {
			a.cache = cache
			log.Info("Redis cache initialized", "host", cfg.Redis.Host)
		}
	}

	if cfg.S3.Enabled {
		storage, err := s3storage.NewArtifactStorage(ctx, s3storage.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
			KeyPrefix:       cfg.S3.KeyPrefix,
			PresignedTTL:    cfg.S3.PresignedTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize artifact storage: %w", err)
		}
		a.storage = storage
		log.Info("S3 artifact storage initialized", "bucket", cfg.S3.Bucket)
	}

	var runs repository.TaskRunRepository
	if cfg.Dynamo.Enabled {
		repo, err := dynamodbRepo.NewTaskRunRepository(ctx, dynamodbRepo.Config{
			TableName:       cfg.Dynamo.TableTaskRuns,
			Region:          cfg.Dynamo.Region,
			Endpoint:        cfg.Dynamo.Endpoint,
			AccessKeyID:     cfg.Dynamo.AccessKeyID,
			SecretAccessKey: cfg.Dynamo.SecretAccessKey,
			TTLDays:         cfg.Dynamo.RunTTLDays,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize task run journal: %w", err)
		}
		runs = repo
		log.Info("Task run journal initialized", "provider", "dynamodb", "table", cfg.Dynamo.TableTaskRuns)
	}

	var sink applicationPort.NotificationSink
	if cfg.Email.Enabled {
		sesSink, err := email.NewSESSink(ctx, email.Config{
			Region:          cfg.Email.Region,
			Endpoint:        cfg.Email.Endpoint,
			AccessKeyID:     cfg.Email.AccessKeyID,
			SecretAccessKey: cfg.Email.SecretAccessKey,
			From:            cfg.Email.From,
			SendTimeout:     cfg.Email.SendTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize e-mail notifications: %w", err)
		}
		sink = sesSink
		log.Info("E-mail notifications enabled", "recipients", len(cfg.Email.To))
	}

	// 7. Application Layer
	a.alerts = alerting.NewManager(sink, cfg.Email.To, notifier, a.events, a.metrics, log)
	a.alerts.SetNotifyTimeout(cfg.Email.SendTimeout)

	a.engine = monitoring.NewEngine(
		source,
		collector.NewSystemMetricsCollector("/", log),
		a.alerts,
		metricsPublisher, // Can be nil if CloudWatch disabled
		notifier,         // Can be nil if dashboard disabled
		a.metrics,
		monitoring.Config{
			Interval:        cfg.Monitoring.Interval,
			ErrorBackoff:    cfg.Monitoring.ErrorBackoff,
			HistoryCapacity: cfg.Monitoring.HistoryCapacity,
			Thresholds:      cfg.Monitoring.Thresholds,
		},
		log,
	)
	a.engine.AddCustomCheck("database_growth", monitoring.DatabaseGrowthCheck(cfg.Monitoring.GrowthLimitMB))
	a.engine.AddCustomCheck("query_pattern", monitoring.QueryPatternCheck(cfg.Monitoring.SlowQueryRatio))

	a.scheduler = scheduler.NewScheduler(a.engine, cfg.Monitoring.Enabled, runs, a.events, notifier, a.metrics, log)

	a.renderer = report.NewHTMLRenderer(cfg.Reports.OutputDir)
	a.reportUC = usecase.NewGenerateReportUseCase(a.engine, postgres.NewReportData(db), a.renderer, a.alerts,
		a.storage, cfg.Reports.PerformanceDays, log)
	a.backupUC = usecase.NewBackupUseCase(maintenance, a.storage, cfg.Backup.Dir, log)
	a.optimizeUC = usecase.NewOptimizeTablesUseCase(maintenance, log)
	cleanupUC := usecase.NewCleanupUseCase(filesystem.NewJanitor(log), []usecase.CleanupTarget{
		{Dir: cfg.Backup.Dir, Pattern: "*.sql"},
		{Dir: cfg.Reports.OutputDir, Pattern: "*.html"},
	}, cfg.Backup.RetentionDays, log)
	connectionUC := usecase.NewConnectionCheckUseCase(source, a.alerts, log)

	jobs := scheduler.DefaultJobs{
		Backup:          a.backupUC.Job(),
		Optimize:        a.optimizeUC.Job(),
		Cleanup:         cleanupUC.Job(),
		ConnectionCheck: connectionUC.Job(),
	}
	if cfg.Reports.Enabled {
		jobs.HealthReport = a.reportUC.Job(usecase.ReportHealth)
		jobs.PerformanceReport = a.reportUC.Job(usecase.ReportPerformance)
	}
	if err := scheduler.RegisterDefaults(a.scheduler, scheduler.DefaultsConfig{
		ReportsEnabled:          cfg.Reports.Enabled,
		BackupEnabled:           cfg.Backup.Enabled,
		BackupSchedule:          cfg.Backup.Schedule,
		HealthReportAt:          cfg.Schedule.HealthReportAt,
		PerformanceReportDay:    cfg.Schedule.PerformanceReportDay,
		BackupAt:                cfg.Schedule.BackupAt,
		BackupDay:               cfg.Schedule.BackupDay,
		OptimizationDay:         cfg.Schedule.OptimizationDay,
		CleanupAt:               cfg.Schedule.CleanupAt,
		ConnectionCheckInterval: cfg.Schedule.ConnectionCheckInterval,
	}, jobs); err != nil {
		return nil, fmt.Errorf("failed to register default tasks: %w", err)
	}

	a.statusUC = usecase.NewGetStatusUseCase(source, a.engine, a.scheduler)
	a.historyUC = usecase.NewGetMetricsHistoryUseCase(a.engine, service.NewSnapshotAggregator(), a.cache, log)
	a.alertsUC = usecase.NewGetAlertsUseCase(a.alerts)
	a.tasksUC = usecase.NewManageTasksUseCase(a.scheduler, runs, log)
	a.listUC = usecase.NewListReportsUseCase(a.renderer, log)
	a.exportUC = usecase.NewExportDataUseCase(a.engine, a.scheduler, a.storage, exportDir, log)

	return a, nil
}

// close сбрасывает буферы и закрывает соединения в обратном порядке
func (a *agent) close(ctx context.Context) {
	a.scheduler.Wait()
	a.alerts.Wait()

	if a.cwMetrics != nil {
		a.log.Info("Flushing CloudWatch metrics buffer...")
		if err := a.cwMetrics.Close(ctx); err != nil {
			a.log.Error("Failed to flush CloudWatch metrics", err)
		}
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.log.Warn("Failed to close NATS connection", "error", err.Error())
		}
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}

	// Логи закрываем последними
	if a.cwLogs != nil {
		a.log.Info("Flushing CloudWatch logs buffer...")
		a.log.SetLogPublisher(nil)
		if err := a.cwLogs.Close(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to flush CloudWatch logs: %v\n", err)
		}
	}
}
