package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"sparkclean/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Auth       AuthConfig       `yaml:"auth"`
	Admins     []string         `yaml:"admins"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Storage    StorageConfig    `yaml:"storage"`
	Realtime   RealtimeConfig   `yaml:"realtime"`
	Worker     WorkerConfig     `yaml:"worker"`
	Exports    ExportConfig     `yaml:"exports"`
	Supabase   SupabaseConfig   `yaml:"supabase"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	SiteURL     string `yaml:"site_url"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

// DSN builds a libpq-style connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP           APIHTTPConfig      `yaml:"http"`
	GRPC           APIGRPCConfig      `yaml:"grpc"`
	RateLimit      APIRateLimitConfig `yaml:"rate_limit"`
	AllowedOrigins []string           `yaml:"allowed_origins"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AuthConfig struct {
	JWTSecret                string        `yaml:"jwt_secret"`
	AccessTokenTTL           time.Duration `yaml:"access_token_ttl"`
	ConfirmationTokenTTL     time.Duration `yaml:"confirmation_token_ttl"`
	ResetTokenTTL            time.Duration `yaml:"reset_token_ttl"`
	RequireEmailConfirmation bool          `yaml:"require_email_confirmation"`
	LoginRateLimit           int           `yaml:"login_rate_limit"`
	LoginRateWindow          time.Duration `yaml:"login_rate_window"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Enabled reports whether enough SMTP settings are present to send mail.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != ""
}

type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
}

type GoogleConfig struct {
	CredentialsFile       string `yaml:"credentials_file"`
	BookingsSpreadsheetID string `yaml:"bookings_spreadsheet_id"`
}

type StorageConfig struct {
	Type      string `yaml:"type"`
	LocalPath string `yaml:"local_path"`
	S3Bucket  string `yaml:"s3_bucket"`
	S3Region  string `yaml:"s3_region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
}

type RealtimeConfig struct {
	BufferSize   int    `yaml:"buffer_size"`
	RelayEnabled bool   `yaml:"relay_enabled"`
	RedisChannel string `yaml:"redis_channel"`
}

type WorkerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxRetries   int           `yaml:"max_retries"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// SupabaseConfig points the dashboard at a hosted Supabase project instead of
// the sparkclean API.
type SupabaseConfig struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anon_key"`
}

func (s SupabaseConfig) Enabled() bool {
	return s.URL != "" && s.AnonKey != ""
}

func Load(configPath string) (*Config, error) {
	// .env is optional; variables may come from the environment directly.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// ${VAR} references are expanded before parsing.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" || c.Database.Postgres.DBName == "" {
			return errors.New("postgres host and dbname are required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "CHANGE_ME" {
		return errors.New("auth jwt_secret is required")
	}

	switch c.Storage.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3Bucket == "" {
		return errors.New("storage s3_bucket is required for s3 storage")
	}
	if (c.Supabase.URL == "") != (c.Supabase.AnonKey == "") {
		return errors.New("supabase url and anon_key must be set together")
	}

	return ValidateAdmins(c.Admins)
}

func ValidateAdmins(admins []string) error {
	seen := make(map[string]bool)
	for _, email := range admins {
		normalized := strings.ToLower(strings.TrimSpace(email))
		if !strings.Contains(normalized, "@") {
			return fmt.Errorf("admin %q is not an email address", email)
		}
		if seen[normalized] {
			return fmt.Errorf("duplicate admin email: %s", normalized)
		}
		seen[normalized] = true
	}
	return nil
}

// IsAdminEmail reports whether the email is listed in admins.
func (c *Config) IsAdminEmail(email string) bool {
	normalized := strings.ToLower(strings.TrimSpace(email))
	for _, admin := range c.Admins {
		if strings.ToLower(strings.TrimSpace(admin)) == normalized {
			return true
		}
	}
	return false
}

func (c *Config) applyDefaults() {
	// Unset ${ADMIN_EMAIL}-style entries expand to blanks.
	admins := c.Admins[:0]
	for _, email := range c.Admins {
		if strings.TrimSpace(email) != "" {
			admins = append(admins, email)
		}
	}
	c.Admins = admins

	if c.App.Name == "" {
		c.App.Name = "sparkclean"
	}
	if c.App.SiteURL == "" {
		c.App.SiteURL = "http://localhost:5173"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite3"
	}
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = 5432
	}
	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = "disable"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	// Auth defaults
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = time.Duration(models.DefaultSessionTTL) * time.Second
	}
	if c.Auth.ConfirmationTokenTTL == 0 {
		c.Auth.ConfirmationTokenTTL = 48 * time.Hour
	}
	if c.Auth.ResetTokenTTL == 0 {
		c.Auth.ResetTokenTTL = time.Hour
	}
	if c.Auth.LoginRateLimit == 0 {
		c.Auth.LoginRateLimit = models.LoginRateLimitAttempts
	}
	if c.Auth.LoginRateWindow == 0 {
		c.Auth.LoginRateWindow = time.Duration(models.LoginRateLimitWindow) * time.Second
	}

	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.LocalPath == "" {
		c.Storage.LocalPath = "./data/gallery"
	}
	if c.Storage.S3Region == "" {
		c.Storage.S3Region = "us-east-1"
	}
	if c.Realtime.BufferSize == 0 {
		c.Realtime.BufferSize = models.RealtimeBufferSize
	}
	if c.Realtime.RedisChannel == "" {
		c.Realtime.RedisChannel = "sparkclean:changes"
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 2 * time.Second
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 20
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "./data/exports"
	}
}
