package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from the environment.
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Pagination PaginationConfig
	Auth       AuthConfig
	Stock      StockConfig
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnectTimeout  time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	ShutdownTimeout time.Duration
}

// RedisConfig holds Redis settings. When Addr is empty the cache layer
// falls back to its in-memory implementation.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// PaginationConfig holds list-endpoint pagination settings
type PaginationConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	SessionTTL time.Duration
}

// StockConfig holds reconciliation engine settings
type StockConfig struct {
	// PercentSumTolerance is the allowed deviation of a composition's
	// percentage sum from 100.
	PercentSumTolerance float64

	// LowStockCheckInterval is how often the low-stock monitor scans
	// raw materials against their reorder levels.
	LowStockCheckInterval time.Duration
}

// LoadConfig loads configuration from environment variables.
// A .env file is loaded first if present (development convenience).
func LoadConfig(logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using environment variables only")
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "chemstock"),
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     time.Duration(getEnvAsInt("SERVER_READ_TIMEOUT_SECONDS", 15)) * time.Second,
			WriteTimeout:    time.Duration(getEnvAsInt("SERVER_WRITE_TIMEOUT_SECONDS", 30)) * time.Second,
			IdleTimeout:     time.Duration(getEnvAsInt("SERVER_IDLE_TIMEOUT_SECONDS", 60)) * time.Second,
			ShutdownTimeout: time.Duration(getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        int32(getEnvAsInt("DB_MAX_CONNS", 10)),
			MinConns:        int32(getEnvAsInt("DB_MIN_CONNS", 2)),
			ConnectTimeout:  time.Duration(getEnvAsInt("DB_CONNECT_TIMEOUT_SECONDS", 10)) * time.Second,
			MaxRetries:      getEnvAsInt("DB_MAX_RETRIES", 3),
			RetryDelay:      time.Duration(getEnvAsInt("DB_RETRY_DELAY_MS", 1000)) * time.Millisecond,
			ShutdownTimeout: time.Duration(getEnvAsInt("DB_SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "*")),
			AllowedMethods: splitAndTrim(getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")),
			AllowedHeaders: splitAndTrim(getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization,X-Request-ID")),
			MaxAge:         getEnvAsInt("CORS_MAX_AGE", 300),
		},
		Pagination: PaginationConfig{
			DefaultLimit: getEnvAsInt("PAGINATION_DEFAULT_LIMIT", 50),
			MaxLimit:     getEnvAsInt("PAGINATION_MAX_LIMIT", 200),
		},
		Auth: AuthConfig{
			SessionTTL: time.Duration(getEnvAsInt("AUTH_SESSION_TTL_MINUTES", 480)) * time.Minute,
		},
		Stock: StockConfig{
			PercentSumTolerance:   getEnvAsFloat("STOCK_PERCENT_SUM_TOLERANCE", 0.01),
			LowStockCheckInterval: time.Duration(getEnvAsInt("STOCK_LOW_STOCK_CHECK_SECONDS", 300)) * time.Second,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("configuration loaded",
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
		"server_port", cfg.Server.Port,
		"redis_enabled", cfg.Redis.Addr != "",
	)

	return cfg, nil
}

// Validate checks configuration for required values and sane ranges.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Stock.PercentSumTolerance <= 0 {
		return fmt.Errorf("STOCK_PERCENT_SUM_TOLERANCE must be positive, got %g", c.Stock.PercentSumTolerance)
	}
	if c.Pagination.DefaultLimit < 1 || c.Pagination.DefaultLimit > c.Pagination.MaxLimit {
		return fmt.Errorf("PAGINATION_DEFAULT_LIMIT must be between 1 and PAGINATION_MAX_LIMIT")
	}
	return nil
}

// IsProduction returns true when running in the production environment.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Addr returns the host:port the HTTP server binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
