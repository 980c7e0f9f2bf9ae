package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Configuration struct {
	Server    ServerConfig    `json:"server"`
	Security  SecurityConfig  `json:"security"`
	Logging   LoggingConfig   `json:"logging"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Realtime  RealtimeConfig  `json:"realtime"`
	Catalog   CatalogConfig   `json:"catalog"`
	Render    RenderConfig    `json:"render"`
	Archive   ArchiveConfig   `json:"archive"`
	Jobs      JobsConfig      `json:"jobs"`
	Workspace WorkspaceConfig `json:"workspace"`
}

type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	// PublicOrigin is the base URL printed into sign-off QR codes.
	PublicOrigin string `json:"public_origin"`
}

type SecurityConfig struct {
	JWTSecret         string        `json:"jwt_secret"`
	JWTIssuer         string        `json:"jwt_issuer"`
	SessionTimeout    time.Duration `json:"session_timeout"`
	CookieSecure      bool          `json:"cookie_secure"`
	PasswordMinLength int           `json:"password_min_length"`
	PasswordMaxLength int           `json:"password_max_length"`
	SignOffRate       float64       `json:"sign_off_rate"`
	SignOffBurst      int           `json:"sign_off_burst"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type DatabaseConfig struct {
	Driver          string `json:"driver"`
	DSN             string `json:"dsn"`
	Host            string `json:"host"`
	Port            string `json:"port"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	Name            string `json:"name"`
	SSLMode         string `json:"ssl_mode"`
	MaxIdleConns    int    `json:"max_idle_conns"`
	MaxOpenConns    int    `json:"max_open_conns"`
	ConnMaxLifetime int    `json:"conn_max_lifetime"`
	SeedDemo        bool   `json:"seed_demo"`
}

type RedisConfig struct {
	URL      string `json:"url"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type RealtimeConfig struct {
	// Broker is "memory" or "redis".
	Broker  string `json:"broker"`
	Channel string `json:"channel"`
}

type CatalogConfig struct {
	// Path, when set, replaces the built-in templates and is watched for changes.
	Path  string `json:"path"`
	Watch bool   `json:"watch"`
}

type RenderConfig struct {
	// QRProvider is "remote" or "local".
	QRProvider   string        `json:"qr_provider"`
	QRServiceURL string        `json:"qr_service_url"`
	QRSize       int           `json:"qr_size"`
	QRTimeout    time.Duration `json:"qr_timeout"`
}

type ArchiveConfig struct {
	// Driver is "none", "local" or "s3".
	Driver        string        `json:"driver"`
	Dir           string        `json:"dir"`
	Bucket        string        `json:"bucket"`
	Prefix        string        `json:"prefix"`
	Region        string        `json:"region"`
	Endpoint      string        `json:"endpoint"`
	PresignExpiry time.Duration `json:"presign_expiry"`
	// Static keys are optional; the default AWS credential chain is used otherwise.
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

type JobsConfig struct {
	Enabled        bool   `json:"enabled"`
	OrphanAudit    string `json:"orphan_audit"`
	WorkspaceSweep string `json:"workspace_sweep"`
	SessionCleanup string `json:"session_cleanup"`
}

type WorkspaceConfig struct {
	IdleTTL time.Duration `json:"idle_ttl"`
}

var (
	config     *Configuration
	configOnce sync.Once
	configLock sync.RWMutex
)

// LoadConfig reads a JSON config file over the defaults, then applies .env
// and environment overrides.
func LoadConfig(filePath string) (*Configuration, error) {
	var err error

	configOnce.Do(func() {
		cfg := defaults()

		if filePath != "" {
			var file *os.File
			file, err = os.Open(filePath)
			if err != nil {
				err = fmt.Errorf("failed to open config file: %w", err)
				return
			}
			defer file.Close()

			if err = json.NewDecoder(file).Decode(cfg); err != nil {
				err = fmt.Errorf("failed to decode config file: %w", err)
				return
			}
		}

		// .env is optional; variables may already be set by the environment
		_ = godotenv.Load()
		applyEnv(cfg)

		configLock.Lock()
		config = cfg
		configLock.Unlock()
	})

	return GetConfig(), err
}

func GetConfig() *Configuration {
	configLock.RLock()
	defer configLock.RUnlock()
	return config
}

func UpdateConfig(updater func(*Configuration)) {
	configLock.Lock()
	defer configLock.Unlock()
	updater(config)
}

func InitializeDefaultConfig() *Configuration {
	configLock.Lock()
	defer configLock.Unlock()

	config = defaults()
	return config
}

func defaults() *Configuration {
	return &Configuration{
		Server: ServerConfig{
			Port:         "8000",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
			PublicOrigin: "http://localhost:8000",
		},
		Security: SecurityConfig{
			JWTSecret:         "swms-manager-secret-key",
			JWTIssuer:         "swms-manager",
			SessionTimeout:    24 * time.Hour,
			PasswordMinLength: 8,
			PasswordMaxLength: 72,
			SignOffRate:       1,
			SignOffBurst:      10,
		},
		Logging: LoggingConfig{
			Level:  "development",
			Format: "console",
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            "5432",
			Username:        "postgres",
			Password:        "password",
			Name:            "swms",
			SSLMode:         "disable",
			MaxIdleConns:    10,
			MaxOpenConns:    50,
			ConnMaxLifetime: 300,
		},
		Redis: RedisConfig{
			URL:      "redis://localhost:6379/0",
			PoolSize: 10,
		},
		Realtime: RealtimeConfig{
			Broker:  "memory",
			Channel: "swms_changes",
		},
		Render: RenderConfig{
			QRProvider:   "remote",
			QRServiceURL: "https://api.qrserver.com/v1/create-qr-code/",
			QRSize:       600,
			QRTimeout:    10 * time.Second,
		},
		Archive: ArchiveConfig{
			Driver:        "none",
			Dir:           "exports",
			Prefix:        "exports/",
			Region:        "ap-southeast-2",
			PresignExpiry: 15 * time.Minute,
		},
		Jobs: JobsConfig{
			Enabled:        true,
			OrphanAudit:    "@every 1h",
			WorkspaceSweep: "@every 10m",
			SessionCleanup: "@every 30m",
		},
		Workspace: WorkspaceConfig{
			IdleTTL: 2 * time.Hour,
		},
	}
}

func applyEnv(cfg *Configuration) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.PublicOrigin, "PUBLIC_ORIGIN")
	setString(&cfg.Logging.Level, "APP_ENV")
	setString(&cfg.Security.JWTSecret, "JWT_SECRET")
	setBool(&cfg.Security.CookieSecure, "COOKIE_SECURE")
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setString(&cfg.Database.Host, "DB_HOST")
	setString(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.Username, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Name, "DB_NAME")
	setBool(&cfg.Database.SeedDemo, "SEED_DEMO")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Realtime.Broker, "REALTIME_BROKER")
	setString(&cfg.Catalog.Path, "CATALOG_PATH")
	setBool(&cfg.Catalog.Watch, "CATALOG_WATCH")
	setString(&cfg.Render.QRProvider, "QR_PROVIDER")
	setString(&cfg.Archive.Driver, "ARCHIVE_DRIVER")
	setString(&cfg.Archive.Dir, "ARCHIVE_DIR")
	setString(&cfg.Archive.Bucket, "ARCHIVE_BUCKET")
	setString(&cfg.Archive.Region, "AWS_REGION")
	setString(&cfg.Archive.Endpoint, "ARCHIVE_ENDPOINT")
	setString(&cfg.Archive.AccessKeyID, "ARCHIVE_ACCESS_KEY_ID")
	setString(&cfg.Archive.SecretAccessKey, "ARCHIVE_SECRET_ACCESS_KEY")
	setBool(&cfg.Jobs.Enabled, "JOBS_ENABLED")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func LogConfig(logger *zap.Logger) {
	configLock.RLock()
	defer configLock.RUnlock()

	redacted := *config
	redacted.Security.JWTSecret = "[REDACTED]"
	redacted.Database.Password = "[REDACTED]"
	redacted.Redis.Password = "[REDACTED]"
	redacted.Archive.SecretAccessKey = "[REDACTED]"

	logger.Info("Application configuration",
		zap.String("port", redacted.Server.Port),
		zap.String("public_origin", redacted.Server.PublicOrigin),
		zap.Duration("read_timeout", redacted.Server.ReadTimeout),
		zap.Duration("write_timeout", redacted.Server.WriteTimeout),
		zap.Duration("session_timeout", redacted.Security.SessionTimeout),
		zap.String("database_driver", redacted.Database.Driver),
		zap.String("database_host", redacted.Database.Host),
		zap.String("database_name", redacted.Database.Name),
		zap.String("realtime_broker", redacted.Realtime.Broker),
		zap.String("qr_provider", redacted.Render.QRProvider),
		zap.String("archive_driver", redacted.Archive.Driver),
		zap.Bool("jobs_enabled", redacted.Jobs.Enabled),
	)
}
