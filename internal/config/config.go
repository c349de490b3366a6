package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. YAML provides defaults and
// environment variables override them.
type Config struct {
	LogLevel       string `yaml:"log_level"`
	RequestTimeout int    `yaml:"request_timeout"` // seconds
	RequestsPerSec int    `yaml:"requests_per_sec"`
	NewsAPIKey     string `yaml:"news_api_key"`

	CacheBackend  string `yaml:"cache_backend"` // memory | redis
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	HTTPCachePath string `yaml:"http_cache_path"`
	HTTPCacheTTL  int    `yaml:"http_cache_ttl"` // seconds, 0 disables

	LedgerBackend   string `yaml:"ledger_backend"` // file | postgres | sqlite
	TradesPath      string `yaml:"trades_path"`
	PredictionsPath string `yaml:"predictions_path"`
	DBDSN           string `yaml:"db_dsn"`

	RetryAttempts   int     `yaml:"retry_attempts"`
	RetryBaseDelay  int     `yaml:"retry_base_delay"` // milliseconds
	RetryMultiplier float64 `yaml:"retry_multiplier"`

	BacktestCash       float64 `yaml:"backtest_cash"`
	BacktestCommission float64 `yaml:"backtest_commission"`

	DefaultAlgo string `yaml:"default_algo"`

	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   int64  `yaml:"telegram_chat_id"`

	HTTPAddr      string   `yaml:"http_addr"`
	CORSOrigins   []string `yaml:"cors_origins"`
	ReconcileCron string   `yaml:"reconcile_cron"`
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		LogLevel:           "info",
		RequestTimeout:     30,
		RequestsPerSec:     5,
		CacheBackend:       "memory",
		RedisAddr:          "localhost:6379",
		HTTPCachePath:      "data/http_cache.db",
		HTTPCacheTTL:       3600,
		LedgerBackend:      "file",
		TradesPath:         "data/trades.csv",
		PredictionsPath:    "data/predictions.csv",
		RetryAttempts:      3,
		RetryBaseDelay:     1000,
		RetryMultiplier:    2,
		BacktestCash:       10000,
		BacktestCommission: 0.002,
		DefaultAlgo:        "XGBoost",
		HTTPAddr:           ":8080",
		CORSOrigins:        []string{"*"},
		ReconcileCron:      "0 30 22 * * 1-5",
	}
}

// Load initializes configuration from .env, an optional YAML file and the
// environment. An empty path reads CONFIG_FILE, then config.yaml.
func Load(path string) (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	if path == "" {
		path = getEnvWithDefault("CONFIG_FILE", "config.yaml")
	}

	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.RequestsPerSec = getEnvIntWithDefault("REQUESTS_PER_SEC", cfg.RequestsPerSec)
	cfg.NewsAPIKey = getEnvWithDefault("NEWS_API_KEY", cfg.NewsAPIKey)

	cfg.CacheBackend = strings.ToLower(getEnvWithDefault("CACHE_BACKEND", cfg.CacheBackend))
	cfg.RedisAddr = getEnvWithDefault("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnvWithDefault("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvIntWithDefault("REDIS_DB", cfg.RedisDB)
	cfg.HTTPCachePath = getEnvWithDefault("HTTP_CACHE_PATH", cfg.HTTPCachePath)
	cfg.HTTPCacheTTL = getEnvIntWithDefault("HTTP_CACHE_TTL", cfg.HTTPCacheTTL)

	cfg.LedgerBackend = strings.ToLower(getEnvWithDefault("LEDGER_BACKEND", cfg.LedgerBackend))
	cfg.TradesPath = getEnvWithDefault("TRADES_PATH", cfg.TradesPath)
	cfg.PredictionsPath = getEnvWithDefault("PREDICTIONS_PATH", cfg.PredictionsPath)
	cfg.DBDSN = getEnvWithDefault("DB_DSN", cfg.DBDSN)

	cfg.RetryAttempts = getEnvIntWithDefault("RETRY_ATTEMPTS", cfg.RetryAttempts)
	cfg.RetryBaseDelay = getEnvIntWithDefault("RETRY_BASE_DELAY", cfg.RetryBaseDelay)
	cfg.RetryMultiplier = getEnvFloatWithDefault("RETRY_MULTIPLIER", cfg.RetryMultiplier)

	cfg.BacktestCash = getEnvFloatWithDefault("BACKTEST_CASH", cfg.BacktestCash)
	cfg.BacktestCommission = getEnvFloatWithDefault("BACKTEST_COMMISSION", cfg.BacktestCommission)
	cfg.DefaultAlgo = getEnvWithDefault("DEFAULT_ALGO", cfg.DefaultAlgo)

	cfg.TelegramBotToken = getEnvWithDefault("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	cfg.TelegramChatID = getEnvInt64WithDefault("TELEGRAM_CHAT_ID", cfg.TelegramChatID)

	cfg.HTTPAddr = getEnvWithDefault("HTTP_ADDR", cfg.HTTPAddr)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	cfg.ReconcileCron = getEnvWithDefault("RECONCILE_CRON", cfg.ReconcileCron)

	return &cfg, nil
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	switch {
	case c.RequestTimeout <= 0:
		return fmt.Errorf("request_timeout must be positive")
	case c.RequestsPerSec <= 0:
		return fmt.Errorf("requests_per_sec must be positive")
	case c.CacheBackend != "memory" && c.CacheBackend != "redis":
		return fmt.Errorf("cache_backend must be memory or redis, got %q", c.CacheBackend)
	case c.LedgerBackend != "file" && c.LedgerBackend != "postgres" && c.LedgerBackend != "sqlite":
		return fmt.Errorf("ledger_backend must be file, postgres or sqlite, got %q", c.LedgerBackend)
	case c.LedgerBackend != "file" && c.DBDSN == "":
		return fmt.Errorf("db_dsn is required for the %s ledger", c.LedgerBackend)
	case c.RetryAttempts < 1:
		return fmt.Errorf("retry_attempts must be at least 1")
	case c.RetryBaseDelay < 0 || c.RetryMultiplier < 1:
		return fmt.Errorf("retry delay must be non-negative with a multiplier of at least 1")
	case c.BacktestCash <= 0:
		return fmt.Errorf("backtest_cash must be positive")
	case c.BacktestCommission < 0 || c.BacktestCommission >= 1:
		return fmt.Errorf("backtest_commission must be in [0, 1)")
	}
	return nil
}

// Timeout is RequestTimeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// TelegramEnabled reports whether notifications can be sent
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
