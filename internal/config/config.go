package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"

	EnvTelegramToken      = "TELEGRAM_TOKEN"
	EnvTelegramWebhookURL = "TELEGRAM_WEBHOOK_URL"
	EnvTelegramDebug      = "TELEGRAM_DEBUG"

	EnvTwitterBearerToken = "TWITTER_BEARER_TOKEN"
	EnvTwitterAPIBaseURL  = "TWITTER_API_BASE_URL"

	EnvAdminUsername     = "ADMIN_USERNAME"
	EnvAdminPasswordHash = "ADMIN_PASSWORD_HASH"

	EnvLogLevel = "LOG_LEVEL"
	EnvLogFile  = "LOG_FILE"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// LoadDotEnv loads a .env file next to the working directory when present.
// Variables already set in the environment win.
func LoadDotEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = ".env"
	}
	if _, errStat := os.Stat(path); errStat != nil {
		if errors.Is(errStat, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", errStat)
	}
	if errLoad := godotenv.Load(path); errLoad != nil {
		return fmt.Errorf("load env file: %w", errLoad)
	}
	return nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false
	}
	return true
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// ErrMissingTelegramToken indicates the bot token was not supplied.
var ErrMissingTelegramToken = errors.New("missing telegram token (set TELEGRAM_TOKEN or `telegram.token`)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// TelegramConfig holds the bot transport settings.
type TelegramConfig struct {
	Token      string `yaml:"token"`
	WebhookURL string `yaml:"webhook-url"` // Public base URL; empty selects long polling.
	Debug      bool   `yaml:"debug"`
}

// UseWebhook reports whether updates arrive through the HTTP webhook.
func (c TelegramConfig) UseWebhook() bool {
	return strings.TrimSpace(c.WebhookURL) != ""
}

// XAPIConfig holds the lookup source settings.
type XAPIConfig struct {
	BearerToken       string        `yaml:"bearer-token"`
	BaseURL           string        `yaml:"base-url"`
	RequestTimeout    time.Duration `yaml:"request-timeout"`
	RequestsPerMinute int           `yaml:"requests-per-minute"`
	MentionLimit      int           `yaml:"mention-limit"`
	TimelineLimit     int           `yaml:"timeline-limit"`
	RepliesPerThread  int           `yaml:"replies-per-thread"`
	ReplyConcurrency  int           `yaml:"reply-concurrency"`
}

// AdminConfig holds the admin API login.
type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password-hash"` // bcrypt hash.
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// fileConfig maps the YAML config file.
type fileConfig struct {
	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Telegram TelegramConfig `yaml:"telegram"`
	XAPI     XAPIConfig     `yaml:"x-api"`
	Admin    AdminConfig    `yaml:"admin"`
	Log      LogConfig      `yaml:"log"`
}

// readFileConfig parses the config file. A missing file yields an empty config.
func readFileConfig(configPath string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return cfg, fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	return cfg, nil
}

// LoadDatabaseDSN reads the database DSN from the environment or YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	cfg, err := readFileConfig(configPath)
	if err != nil {
		return "", err
	}
	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	result := JWTConfig{Expiry: defaultJWTExpiry}

	if cfg, errRead := readFileConfig(configPath); errRead == nil {
		result = cfg.JWT
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// LoadTelegramConfig loads bot transport settings; the token is required.
func LoadTelegramConfig(configPath string) (TelegramConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return TelegramConfig{}, err
	}
	result := cfg.Telegram

	if token := strings.TrimSpace(os.Getenv(EnvTelegramToken)); token != "" {
		result.Token = token
	}
	if webhookURL := strings.TrimSpace(os.Getenv(EnvTelegramWebhookURL)); webhookURL != "" {
		result.WebhookURL = webhookURL
	}
	if debugRaw := strings.TrimSpace(os.Getenv(EnvTelegramDebug)); debugRaw != "" {
		if debug, errParse := strconv.ParseBool(debugRaw); errParse == nil {
			result.Debug = debug
		}
	}
	result.Token = strings.TrimSpace(result.Token)
	result.WebhookURL = strings.TrimRight(strings.TrimSpace(result.WebhookURL), "/")
	if result.Token == "" {
		return result, ErrMissingTelegramToken
	}
	return result, nil
}

// Defaults for the X API section.
const (
	defaultXRequestTimeout    = 15 * time.Second
	defaultXRequestsPerMinute = 300
	defaultXMentionLimit      = 100
	defaultXTimelineLimit     = 100
	defaultXRepliesPerThread  = 10
	defaultXReplyConcurrency  = 4
)

// LoadXAPIConfig loads lookup source settings with defaults applied.
func LoadXAPIConfig(configPath string) (XAPIConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return XAPIConfig{}, err
	}
	result := cfg.XAPI

	if token := strings.TrimSpace(os.Getenv(EnvTwitterBearerToken)); token != "" {
		result.BearerToken = token
	}
	if baseURL := strings.TrimSpace(os.Getenv(EnvTwitterAPIBaseURL)); baseURL != "" {
		result.BaseURL = baseURL
	}

	if result.RequestTimeout <= 0 {
		result.RequestTimeout = defaultXRequestTimeout
	}
	if result.RequestsPerMinute < 0 {
		result.RequestsPerMinute = 0
	} else if result.RequestsPerMinute == 0 {
		result.RequestsPerMinute = defaultXRequestsPerMinute
	}
	result.MentionLimit = boundedOrDefault(result.MentionLimit, 100, defaultXMentionLimit)
	result.TimelineLimit = boundedOrDefault(result.TimelineLimit, 100, defaultXTimelineLimit)
	result.RepliesPerThread = boundedOrDefault(result.RepliesPerThread, 100, defaultXRepliesPerThread)
	result.ReplyConcurrency = boundedOrDefault(result.ReplyConcurrency, 32, defaultXReplyConcurrency)
	return result, nil
}

// LoadAdminConfig loads the admin API login.
func LoadAdminConfig(configPath string) (AdminConfig, error) {
	cfg, err := readFileConfig(configPath)
	if err != nil {
		return AdminConfig{}, err
	}
	result := cfg.Admin
	if username := strings.TrimSpace(os.Getenv(EnvAdminUsername)); username != "" {
		result.Username = username
	}
	if hash := strings.TrimSpace(os.Getenv(EnvAdminPasswordHash)); hash != "" {
		result.PasswordHash = hash
	}
	result.Username = strings.TrimSpace(result.Username)
	result.PasswordHash = strings.TrimSpace(result.PasswordHash)
	return result, nil
}

// LoadLogConfig loads logging settings. Errors reading the file are ignored so
// logging can be configured before anything else is validated.
func LoadLogConfig(configPath string) LogConfig {
	cfg, _ := readFileConfig(configPath)
	result := cfg.Log
	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		result.Level = level
	}
	if file := strings.TrimSpace(os.Getenv(EnvLogFile)); file != "" {
		result.File = file
	}
	if strings.TrimSpace(result.Level) == "" {
		result.Level = "info"
	}
	return result
}

func boundedOrDefault(value, max, fallback int) int {
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}
