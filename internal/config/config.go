package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=restopos port=5432 sslmode=disable"

type Config struct {
	Environment string
	HTTPPort    string
	LogLevel    string

	DatabaseType string // postgres | sqlite
	DatabaseDSN  string

	JWTSecret   string
	CORSOrigins string

	// Business dates (order numbering, CAI expiry) are computed in this zone.
	BusinessTimezone string
	Location         *time.Location

	RedisAddr          string
	RedisPassword      string
	RedisChannelPrefix string

	TelegramBotToken string
	TelegramChatID   int64
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] .env not found, using process environment")
	}

	cfg := &Config{
		Environment:        getEnv("ENVIRONMENT", "development"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseType:       strings.ToLower(getEnv("DATABASE_TYPE", "postgres")),
		DatabaseDSN:        getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:          strings.TrimSpace(getEnv("JWT_SECRET", "")),
		CORSOrigins:        getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		BusinessTimezone:   getEnv("BUSINESS_TIMEZONE", "America/Tegucigalpa"),
		RedisAddr:          strings.TrimSpace(getEnv("REDIS_ADDR", "")),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "restopos:"),
		TelegramBotToken:   strings.TrimSpace(getEnv("TELEGRAM_BOT_TOKEN", "")),
		TelegramChatID:     getEnvInt64("TELEGRAM_CHAT_ID", 0),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		return nil, fmt.Errorf("BUSINESS_TIMEZONE %q: %w", cfg.BusinessTimezone, err)
	}
	cfg.Location = loc

	if cfg.DatabaseType == "postgres" && cfg.DatabaseDSN == defaultDSN {
		if cfg.IsProduction() {
			return nil, errors.New("DATABASE_DSN must be set in production")
		}
		log.Println("[WARN] DATABASE_DSN default value in use, set your own Postgres connection for production")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	switch c.DatabaseType {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_TYPE %q", c.DatabaseType)
	}
	if c.TelegramBotToken != "" && c.TelegramChatID == 0 {
		return errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
