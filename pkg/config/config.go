package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v2"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Email      EmailConfig
	Monitoring MonitoringConfig
	Reports    ReportsConfig
	Backup     BackupConfig
	Schedule   ScheduleConfig
	Security   SecurityConfig
	Redis      RedisConfig
	NATS       NATSConfig
	CloudWatch CloudWatchConfig
	S3         S3Config
	Dynamo     DynamoConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Enabled         bool
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	SlowQueryThreshold time.Duration
	PgDumpPath         string
}

type EmailConfig struct {
	Enabled         bool
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	From            string
	To              []string
	SendTimeout     time.Duration
}

type MonitoringConfig struct {
	Enabled         bool
	Interval        time.Duration
	ErrorBackoff    time.Duration
	HistoryCapacity int
	Thresholds      map[string]float64
	GrowthLimitMB   float64
	SlowQueryRatio  float64
}

type ReportsConfig struct {
	Enabled         bool
	OutputDir       string
	PerformanceDays int
}

type BackupConfig struct {
	Enabled       bool
	Schedule      string // daily | weekly
	RetentionDays int
	Dir           string
}

// ScheduleConfig задает cadence для задач по умолчанию
type ScheduleConfig struct {
	HealthReportAt          string
	PerformanceReportDay    string
	BackupAt                string
	BackupDay               string
	OptimizationDay         string
	CleanupAt               string
	ConnectionCheckInterval time.Duration
}

type SecurityConfig struct {
	AllowedOrigins []string
	AuthEnabled    bool
	AuthToken      string
	RateLimitRPS   float64
	RateLimitBurst int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

type NATSConfig struct {
	Enabled       bool
	URL           string
	SubjectPrefix string
}

type CloudWatchConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string

	MetricsEnabled           bool
	MetricsNamespace         string
	MetricsDimensions        map[string]string
	MetricsBufferSize        int
	MetricsFlushInterval     time.Duration
	MetricsStorageResolution int32

	LogsEnabled       bool
	LogGroupName      string
	LogStreamName     string
	LogsBufferSize    int
	LogsFlushInterval time.Duration
}

type S3Config struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	KeyPrefix       string
	PresignedTTL    time.Duration
}

type DynamoConfig struct {
	Enabled         bool
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	TableTaskRuns   string
	RunTTLDays      int
}

type LoggingConfig struct {
	Level       string
	File        string
	MaxSizeMB   int
	BackupCount int
}

// DefaultThresholds возвращает пороги алертов по умолчанию
func DefaultThresholds() map[string]float64 {
	return map[string]float64{
		"connection_count":   100,
		"cpu_usage":          80,
		"memory_usage":       85,
		"disk_usage":         90,
		"slow_queries_count": 10,
	}
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	monitoringInterval, err := parseSeconds(getEnv("MONITORING_INTERVAL", "300"))
	if err != nil {
		return nil, fmt.Errorf("invalid MONITORING_INTERVAL: %w", err)
	}

	errorBackoff, err := parseSeconds(getEnv("MONITORING_ERROR_BACKOFF", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid MONITORING_ERROR_BACKOFF: %w", err)
	}

	connectionCheckInterval, err := parseSeconds(getEnv("CONNECTION_CHECK_INTERVAL", "300"))
	if err != nil {
		return nil, fmt.Errorf("invalid CONNECTION_CHECK_INTERVAL: %w", err)
	}

	slowQueryThreshold, err := parseDuration(getEnv("DB_SLOW_QUERY_THRESHOLD", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_SLOW_QUERY_THRESHOLD: %w", err)
	}

	redisTTL, err := parseDuration(getEnv("REDIS_TTL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_TTL: %w", err)
	}

	metricsFlushInterval, err := parseDuration(getEnv("CLOUDWATCH_METRICS_FLUSH_INTERVAL", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLOUDWATCH_METRICS_FLUSH_INTERVAL: %w", err)
	}

	logsFlushInterval, err := parseDuration(getEnv("CLOUDWATCH_LOGS_FLUSH_INTERVAL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLOUDWATCH_LOGS_FLUSH_INTERVAL: %w", err)
	}

	presignedTTL, err := parseDuration(getEnv("S3_PRESIGNED_TTL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid S3_PRESIGNED_TTL: %w", err)
	}

	emailTimeout, err := parseDuration(getEnv("EMAIL_SEND_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid EMAIL_SEND_TIMEOUT: %w", err)
	}

	historyCapacity, err := getEnvInt("MONITORING_HISTORY_CAPACITY", 1000)
	if err != nil {
		return nil, err
	}
	retentionDays, err := getEnvInt("BACKUP_RETENTION_DAYS", 30)
	if err != nil {
		return nil, err
	}
	performanceDays, err := getEnvInt("REPORTS_PERFORMANCE_DAYS", 7)
	if err != nil {
		return nil, err
	}
	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	runTTLDays, err := getEnvInt("DYNAMODB_RUN_TTL_DAYS", 90)
	if err != nil {
		return nil, err
	}
	logMaxSize, err := getEnvInt("LOG_MAX_SIZE_MB", 10)
	if err != nil {
		return nil, err
	}
	logBackups, err := getEnvInt("LOG_BACKUP_COUNT", 5)
	if err != nil {
		return nil, err
	}
	metricsBuffer, err := getEnvInt("CLOUDWATCH_METRICS_BUFFER_SIZE", 20)
	if err != nil {
		return nil, err
	}
	logsBuffer, err := getEnvInt("CLOUDWATCH_LOGS_BUFFER_SIZE", 50)
	if err != nil {
		return nil, err
	}
	rateBurst, err := getEnvInt("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, err
	}

	rateRPS, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "2"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	growthLimit, err := strconv.ParseFloat(getEnv("ALERT_DATABASE_SIZE_MB", "10240"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_DATABASE_SIZE_MB: %w", err)
	}

	slowRatio, err := strconv.ParseFloat(getEnv("ALERT_SLOW_QUERY_RATIO", "0.5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_SLOW_QUERY_RATIO: %w", err)
	}

	resolution, err := getEnvInt("CLOUDWATCH_METRICS_STORAGE_RESOLUTION", 60)
	if err != nil {
		return nil, err
	}

	thresholds, err := loadThresholds()
	if err != nil {
		return nil, err
	}

	awsRegion := getEnv("AWS_REGION", "us-east-1")
	awsEndpoint := getEnv("AWS_ENDPOINT", "")
	awsKey := getEnv("AWS_ACCESS_KEY_ID", "")
	awsSecret := getEnv("AWS_SECRET_ACCESS_KEY", "")

	cfg := &Config{
		Server: ServerConfig{
			Enabled:         getEnvBool("DASHBOARD_ENABLED", true),
			Port:            getEnv("SERVER_PORT", "5000"),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", "postgres"),
			Password:           getEnv("DB_PASSWORD", ""),
			Database:           getEnv("DB_NAME", "automation_db"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       10,
			MaxIdleConns:       5,
			ConnMaxLifetime:    5 * time.Minute,
			ConnMaxIdleTime:    10 * time.Minute,
			SlowQueryThreshold: slowQueryThreshold,
			PgDumpPath:         getEnv("PG_DUMP_PATH", "pg_dump"),
		},
		Email: EmailConfig{
			Enabled:         getEnvBool("EMAIL_ENABLED", false),
			Region:          getEnv("EMAIL_REGION", awsRegion),
			Endpoint:        awsEndpoint,
			AccessKeyID:     awsKey,
			SecretAccessKey: awsSecret,
			From:            getEnv("EMAIL_FROM", ""),
			To:              splitCSV(getEnv("EMAIL_TO", "")),
			SendTimeout:     emailTimeout,
		},
		Monitoring: MonitoringConfig{
			Enabled:         getEnvBool("MONITORING_ENABLED", true),
			Interval:        monitoringInterval,
			ErrorBackoff:    errorBackoff,
			HistoryCapacity: historyCapacity,
			Thresholds:      thresholds,
			GrowthLimitMB:   growthLimit,
			SlowQueryRatio:  slowRatio,
		},
		Reports: ReportsConfig{
			Enabled:         getEnvBool("REPORTS_ENABLED", true),
			OutputDir:       getEnv("REPORTS_OUTPUT_DIR", "reports"),
			PerformanceDays: performanceDays,
		},
		Backup: BackupConfig{
			Enabled:       getEnvBool("BACKUP_ENABLED", true),
			Schedule:      strings.ToLower(getEnv("BACKUP_SCHEDULE", "daily")),
			RetentionDays: retentionDays,
			Dir:           getEnv("BACKUP_DIR", "backups"),
		},
		Schedule: ScheduleConfig{
			HealthReportAt:          getEnv("SCHEDULE_HEALTH_REPORT_AT", "08:00"),
			PerformanceReportDay:    getEnv("SCHEDULE_PERFORMANCE_REPORT_DAY", "monday"),
			BackupAt:                getEnv("SCHEDULE_BACKUP_AT", "02:00"),
			BackupDay:               getEnv("SCHEDULE_BACKUP_DAY", "sunday"),
			OptimizationDay:         getEnv("SCHEDULE_OPTIMIZATION_DAY", "sunday"),
			CleanupAt:               getEnv("SCHEDULE_CLEANUP_AT", "03:00"),
			ConnectionCheckInterval: connectionCheckInterval,
		},
		Security: SecurityConfig{
			AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:5000,http://127.0.0.1:5000")),
			AuthEnabled:    getEnvBool("AUTH_ENABLED", false),
			AuthToken:      getEnv("AUTH_BEARER_TOKEN", ""),
			RateLimitRPS:   rateRPS,
			RateLimitBurst: rateBurst,
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			TTL:      redisTTL,
		},
		NATS: NATSConfig{
			Enabled:       getEnvBool("NATS_ENABLED", false),
			URL:           getEnv("NATS_URL", "nats://localhost:4222"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "dbops"),
		},
		CloudWatch: CloudWatchConfig{
			Region:                   awsRegion,
			Endpoint:                 awsEndpoint,
			AccessKeyID:              awsKey,
			SecretAccessKey:          awsSecret,
			MetricsEnabled:           getEnvBool("CLOUDWATCH_METRICS_ENABLED", false),
			MetricsNamespace:         getEnv("CLOUDWATCH_METRICS_NAMESPACE", "DBOpsAgent"),
			MetricsDimensions:        parseDimensions(getEnv("CLOUDWATCH_METRICS_DIMENSIONS", "")),
			MetricsBufferSize:        metricsBuffer,
			MetricsFlushInterval:     metricsFlushInterval,
			MetricsStorageResolution: int32(resolution),
			LogsEnabled:              getEnvBool("CLOUDWATCH_LOGS_ENABLED", false),
			LogGroupName:             getEnv("CLOUDWATCH_LOG_GROUP", "/dbops-agent"),
			LogStreamName:            getEnv("CLOUDWATCH_LOG_STREAM", hostname()),
			LogsBufferSize:           logsBuffer,
			LogsFlushInterval:        logsFlushInterval,
		},
		S3: S3Config{
			Enabled:         getEnvBool("S3_ENABLED", false),
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", awsRegion),
			Endpoint:        getEnv("S3_ENDPOINT", awsEndpoint),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", awsKey),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", awsSecret),
			UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", true),
			KeyPrefix:       getEnv("S3_KEY_PREFIX", "dbops-agent"),
			PresignedTTL:    presignedTTL,
		},
		Dynamo: DynamoConfig{
			Enabled:         getEnvBool("DYNAMODB_ENABLED", false),
			Region:          getEnv("DYNAMODB_REGION", awsRegion),
			Endpoint:        getEnv("DYNAMODB_ENDPOINT", awsEndpoint),
			AccessKeyID:     awsKey,
			SecretAccessKey: awsSecret,
			TableTaskRuns:   getEnv("DYNAMODB_TABLE_TASK_RUNS", "dbops_task_runs"),
			RunTTLDays:      runTTLDays,
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			File:        getEnv("LOG_FILE", ""),
			MaxSizeMB:   logMaxSize,
			BackupCount: logBackups,
		},
	}

	if cfg.Security.AuthEnabled && cfg.Security.AuthToken == "" {
		return nil, fmt.Errorf("AUTH_BEARER_TOKEN is required when AUTH_ENABLED=true")
	}
	if cfg.Backup.Schedule != "daily" && cfg.Backup.Schedule != "weekly" {
		return nil, fmt.Errorf("invalid BACKUP_SCHEDULE: %q (expected daily or weekly)", cfg.Backup.Schedule)
	}
	if cfg.Monitoring.HistoryCapacity <= 0 {
		return nil, fmt.Errorf("MONITORING_HISTORY_CAPACITY must be positive")
	}
	if cfg.S3.Enabled && cfg.S3.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when S3_ENABLED=true")
	}

	return cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// thresholdsFile описывает YAML файл с переопределением порогов
type thresholdsFile struct {
	Thresholds map[string]float64 `yaml:"thresholds"`
}

func loadThresholds() (map[string]float64, error) {
	thresholds := DefaultThresholds()

	envKeys := map[string]string{
		"ALERT_CONNECTION_COUNT": "connection_count",
		"ALERT_CPU_USAGE":        "cpu_usage",
		"ALERT_MEMORY_USAGE":     "memory_usage",
		"ALERT_DISK_USAGE":       "disk_usage",
		"ALERT_SLOW_QUERIES":     "slow_queries_count",
	}
	for envKey, metric := range envKeys {
		raw := os.Getenv(envKey)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envKey, err)
		}
		thresholds[metric] = value
	}

	path := os.Getenv("THRESHOLDS_FILE")
	if path == "" {
		return thresholds, nil
	}

	overrides, err := LoadThresholdsFile(path)
	if err != nil {
		return nil, err
	}
	for metric, value := range overrides {
		thresholds[metric] = value
	}

	return thresholds, nil
}

// LoadThresholdsFile читает пороги из YAML файла
func LoadThresholdsFile(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read thresholds file: %w", err)
	}

	var parsed thresholdsFile
	if err := yaml.UnmarshalStrict(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse thresholds file: %w", err)
	}
	if parsed.Thresholds == nil {
		return map[string]float64{}, nil
	}

	return parsed.Thresholds, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return parsed, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func splitCSV(raw string) []string {
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// parseDimensions разбирает строку вида "Env=prod,Service=db"
func parseDimensions(raw string) map[string]string {
	dims := make(map[string]string)
	for _, item := range splitCSV(raw) {
		key, value, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		dims[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return dims
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

// parseSeconds принимает как целое число секунд, так и duration строку
func parseSeconds(s string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		if seconds <= 0 {
			return 0, fmt.Errorf("must be positive, got %d", seconds)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "dbops-agent"
	}
	return name
}
