package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Directory    DirectoryConfig
	Sync         SyncConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters for the admin endpoints.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// DirectoryConfig points at the external directory API.
type DirectoryConfig struct {
	BaseURL           string
	CorpID            string
	CorpSecret        string
	RootParentID      string
	TimeoutSeconds    int
	RequestIntervalMs int
	FetchUserDetails  bool
}

// SyncConfig tunes the synchronization engine and its scheduler.
type SyncConfig struct {
	LockName        string
	LockTTLMinutes  int
	BatchSize       int
	BatchDelayMs    int
	IntervalMinutes int
	FullEvery       int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailTo    string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "directory-sync"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Directory: DirectoryConfig{
			BaseURL:           getEnv("DIRECTORY_BASE_URL", "https://qyapi.weixin.qq.com/cgi-bin"),
			CorpID:            os.Getenv("DIRECTORY_CORP_ID"),
			CorpSecret:        os.Getenv("DIRECTORY_CORP_SECRET"),
			RootParentID:      getEnv("DIRECTORY_ROOT_PARENT_ID", "0"),
			TimeoutSeconds:    getEnvAsInt("DIRECTORY_TIMEOUT_SECONDS", 15),
			RequestIntervalMs: getEnvAsInt("DIRECTORY_REQUEST_INTERVAL_MS", 100),
			FetchUserDetails:  getEnvAsBool("DIRECTORY_FETCH_USER_DETAILS", false),
		},
		Sync: SyncConfig{
			LockName:        getEnv("SYNC_LOCK_NAME", "directory_sync:lock"),
			LockTTLMinutes:  getEnvAsInt("SYNC_LOCK_TTL_MINUTES", 60),
			BatchSize:       getEnvAsInt("SYNC_BATCH_SIZE", 50),
			BatchDelayMs:    getEnvAsInt("SYNC_BATCH_DELAY_MS", 100),
			IntervalMinutes: getEnvAsInt("SYNC_INTERVAL_MINUTES", 0),
			FullEvery:       getEnvAsInt("SYNC_FULL_EVERY", 24),
		},
		Notification: NotificationConfig{
			EmailTo:    getEnv("NOTIFY_EMAIL_TO", ""),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the per-request HTTP timeout for directory calls.
func (d DirectoryConfig) Timeout() time.Duration {
	if d.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// RequestInterval is the minimum spacing between paced directory calls.
func (d DirectoryConfig) RequestInterval() time.Duration {
	if d.RequestIntervalMs <= 0 {
		return 0
	}
	return time.Duration(d.RequestIntervalMs) * time.Millisecond
}

// LockTTL bounds how long a crashed run can block later runs.
func (s SyncConfig) LockTTL() time.Duration {
	if s.LockTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(s.LockTTLMinutes) * time.Minute
}

// BatchDelay returns the pause between user batches.
func (s SyncConfig) BatchDelay() time.Duration {
	if s.BatchDelayMs <= 0 {
		return 0
	}
	return time.Duration(s.BatchDelayMs) * time.Millisecond
}

// Interval returns the scheduler period; zero disables scheduling.
func (s SyncConfig) Interval() time.Duration {
	if s.IntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(s.IntervalMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
